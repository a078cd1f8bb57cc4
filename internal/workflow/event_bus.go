package workflow

import (
	"sync"
	"time"
)

// JournalEvent 描述一次日记账审批状态变化
type JournalEvent struct {
	JournalID  string
	RouteCode  string
	Status     string
	Step       int
	ActorID    string
	Decision   Decision
	OccurredAt time.Time
}

// EventBusConfig 控制事件总线行为
type EventBusConfig struct {
	BufferSize int
}

// JournalEventBus 简单本地事件总线，按日记账 ID 订阅
type JournalEventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan JournalEvent
	seq    uint64
	buffer int
}

// NewJournalEventBus 创建事件总线
func NewJournalEventBus(cfg *EventBusConfig) *JournalEventBus {
	buffer := 1
	if cfg != nil && cfg.BufferSize > 0 {
		buffer = cfg.BufferSize
	}
	return &JournalEventBus{
		subs:   make(map[string]map[uint64]chan JournalEvent),
		buffer: buffer,
	}
}

// Publish 发布事件
func (b *JournalEventBus) Publish(evt JournalEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	listeners := b.subs[evt.JournalID]
	b.mu.RUnlock()
	for _, ch := range listeners {
		select {
		case ch <- evt:
		default:
			// 如果接收方处理慢则丢弃，保持非阻塞
		}
	}
}

// Subscribe 订阅指定日记账的事件，返回取消函数
func (b *JournalEventBus) Subscribe(journalID string) (<-chan JournalEvent, func()) {
	if b == nil {
		return nil, nil
	}
	ch := make(chan JournalEvent, b.buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	if _, ok := b.subs[journalID]; !ok {
		b.subs[journalID] = make(map[uint64]chan JournalEvent)
	}
	b.subs[journalID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if listeners, ok := b.subs[journalID]; ok {
			delete(listeners, id)
			if len(listeners) == 0 {
				delete(b.subs, journalID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
