package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/journal"
	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Coordinator is the only component allowed to cause a durable approval state
// transition. It validates actions with the state machine, appends ledger
// records and updates the journal's aggregate status inside one transaction
// guarded by an optimistic version check on the journal row.
type Coordinator struct {
	db        *gorm.DB
	routes    RouteLoader
	directory Directory
	notifier  Notifier
	bus       *JournalEventBus
	logger    *zap.Logger
	autoSkip  bool
}

// CoordinatorOption 自定义配置
type CoordinatorOption func(*Coordinator)

// WithNotifier 注入通知器
func WithNotifier(n Notifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = n }
}

// WithEventBus 注入事件总线
func WithEventBus(bus *JournalEventBus) CoordinatorOption {
	return func(c *Coordinator) { c.bus = bus }
}

// WithCoordinatorLogger 注入自定义日志器
func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithAutoSkip enables auto-advancing past optional steps whose organization
// has no active members.
func WithAutoSkip(enabled bool) CoordinatorOption {
	return func(c *Coordinator) { c.autoSkip = enabled }
}

// NewCoordinator 创建审批协调器
func NewCoordinator(db *gorm.DB, routes RouteLoader, directory Directory, opts ...CoordinatorOption) *Coordinator {
	coord := &Coordinator{
		db:        db,
		routes:    routes,
		directory: directory,
		logger:    logger.Get(),
		autoSkip:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(coord)
		}
	}
	return coord
}

// TransitionResult describes the state reached by a successful action.
type TransitionResult struct {
	JournalID    string `json:"journalId"`
	Status       string `json:"status"`
	CurrentStep  int    `json:"currentStep"`
	ResolvedStep int    `json:"resolvedStep"`
	SkippedSteps []int  `json:"skippedSteps,omitempty"`
}

// Submit moves a draft journal onto an approval route: it records the
// synthetic submit action and advances to Pending(step=1).
func (c *Coordinator) Submit(ctx context.Context, journalID, routeCode, actorID string) (*TransitionResult, error) {
	entry, err := c.loadJournal(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if routeCode == "" {
		routeCode = entry.RouteCode
	}
	if routeCode == "" {
		return nil, fmt.Errorf("%w: journal %s has no route", ErrRouteNotFound, journalID)
	}

	graph, err := c.routes.Graph(ctx, routeCode)
	if err != nil {
		return nil, err
	}
	history, err := c.History(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if _, err := CanAct(graph, history, nil, DecisionSubmit); err != nil {
		return nil, err
	}

	rec := &ApprovalRecord{
		ID:        uuid.New().String(),
		JournalID: journalID,
		ActorID:   actorID,
		Decision:  DecisionSubmit,
	}
	result, err := c.applyTransition(ctx, entry, graph, history, rec, routeCode)
	if err != nil {
		return nil, err
	}

	if result.Status == StatusPending {
		metrics.ApprovalPendingGauge.Inc()
	}
	c.emit(ctx, entry, graph, rec, result)
	return result, nil
}

// Act applies an approve or reject decision by actorID against the journal's
// current step. Eligibility and transition legality are decided by the state
// machine over fresh history; a double-submitted action therefore fails with
// ErrIllegalTransition once the step has advanced.
func (c *Coordinator) Act(ctx context.Context, journalID, actorID string, decision Decision, comment string) (*TransitionResult, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%w: decision %q is not actionable", ErrIllegalTransition, decision)
	}

	entry, err := c.loadJournal(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if entry.RouteCode == "" {
		return nil, fmt.Errorf("%w: journal %s was never submitted", ErrIllegalTransition, journalID)
	}
	graph, err := c.routes.Graph(ctx, entry.RouteCode)
	if err != nil {
		return nil, err
	}
	history, err := c.History(ctx, journalID)
	if err != nil {
		return nil, err
	}

	actorOrgs, err := c.directory.OrganizationsOf(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolve actor organizations: %w", err)
	}
	step, err := CanAct(graph, history, actorOrgs, decision)
	if err != nil {
		return nil, err
	}

	rec := &ApprovalRecord{
		ID:         uuid.New().String(),
		JournalID:  journalID,
		StepNumber: step,
		ActorID:    actorID,
		Decision:   decision,
		Comment:    comment,
	}
	result, err := c.applyTransition(ctx, entry, graph, history, rec, "")
	if err != nil {
		return nil, err
	}

	if result.Status == StatusApproved || result.Status == StatusRejected {
		metrics.ApprovalPendingGauge.Dec()
	}
	c.emit(ctx, entry, graph, rec, result)
	return result, nil
}

// Recall returns a pending journal to draft. Only possible while nothing past
// origination has been approved (current step 1), and only by the original
// submitter.
func (c *Coordinator) Recall(ctx context.Context, journalID, actorID string) (*TransitionResult, error) {
	entry, err := c.loadJournal(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if entry.RouteCode == "" {
		return nil, fmt.Errorf("%w: journal %s was never submitted", ErrIllegalTransition, journalID)
	}
	graph, err := c.routes.Graph(ctx, entry.RouteCode)
	if err != nil {
		return nil, err
	}
	history, err := c.History(ctx, journalID)
	if err != nil {
		return nil, err
	}

	step, err := CanAct(graph, history, nil, DecisionRecall)
	if err != nil {
		return nil, err
	}
	if entry.SubmittedBy != actorID {
		return nil, fmt.Errorf("%w: only the submitter may recall", ErrNotEligible)
	}

	rec := &ApprovalRecord{
		ID:         uuid.New().String(),
		JournalID:  journalID,
		StepNumber: step,
		ActorID:    actorID,
		Decision:   DecisionRecall,
	}
	result, err := c.applyTransition(ctx, entry, graph, history, rec, "")
	if err != nil {
		return nil, err
	}

	metrics.ApprovalPendingGauge.Dec()
	c.emit(ctx, entry, graph, rec, result)
	return result, nil
}

// History returns the journal's ordered action ledger. Order follows the
// coordinator-assigned sequence, not timestamps: records appended inside one
// transaction can share a wall-clock instant.
func (c *Coordinator) History(ctx context.Context, journalID string) ([]ApprovalRecord, error) {
	var records []ApprovalRecord
	if err := c.db.WithContext(ctx).
		Where("journal_id = ?", journalID).
		Order("seq ASC").
		Find(&records).Error; err != nil {
		return nil, &PersistenceError{Op: "load approval history", Err: err}
	}
	return records, nil
}

// CurrentState replays the ledger and returns the journal's derived state.
func (c *Coordinator) CurrentState(ctx context.Context, journalID string) (State, error) {
	entry, err := c.loadJournal(ctx, journalID)
	if err != nil {
		return State{}, err
	}
	if entry.RouteCode == "" {
		return State{Status: StatusDraft}, nil
	}
	graph, err := c.routes.Graph(ctx, entry.RouteCode)
	if err != nil {
		return State{}, err
	}
	history, err := c.History(ctx, journalID)
	if err != nil {
		return State{}, err
	}
	return Replay(graph, history), nil
}

// PendingStep describes one journal awaiting a user's decision.
type PendingStep struct {
	JournalID   string `json:"journalId"`
	EntryNumber string `json:"entryNumber"`
	RouteCode   string `json:"routeCode"`
	StepNumber  int    `json:"stepNumber"`
	StepName    string `json:"stepName"`
}

// PendingForUser returns the journals whose current step is bound to one of
// the user's organizations.
func (c *Coordinator) PendingForUser(ctx context.Context, userID string) ([]PendingStep, error) {
	orgs, err := c.directory.OrganizationsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolve actor organizations: %w", err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}

	var pending []PendingStep
	err = c.db.WithContext(ctx).
		Model(&journal.JournalEntry{}).
		Select("journal_entries.id AS journal_id, journal_entries.entry_number, journal_entries.route_code, route_steps.step_number, route_steps.step_name").
		Joins("JOIN route_steps ON route_steps.route_code = journal_entries.route_code AND route_steps.step_number = journal_entries.current_step").
		Where("journal_entries.status = ?", StatusPending).
		Where("journal_entries.deleted_at IS NULL").
		Where("route_steps.organization_code IN ?", orgs).
		Order("journal_entries.submitted_at ASC").
		Scan(&pending).Error
	if err != nil {
		return nil, &PersistenceError{Op: "list pending approvals", Err: err}
	}
	return pending, nil
}

// ============================================================================
// 内部实现
// ============================================================================

// applyTransition appends the action (plus any synthetic skips), recomputes
// the journal's state and persists it, all inside one transaction. The update
// is guarded by the version the journal carried when the caller read it; a
// competing transaction that already advanced the journal makes this one fail
// with ErrConcurrencyConflict and no partial writes.
func (c *Coordinator) applyTransition(ctx context.Context, entry *journal.JournalEntry, graph *RouteGraph, history []ApprovalRecord, rec *ApprovalRecord, routeCode string) (*TransitionResult, error) {
	expectedVersion := entry.Version

	nextSeq := ledgerTail(history) + 1
	rec.Seq = nextSeq

	newHistory := make([]ApprovalRecord, 0, len(history)+2)
	newHistory = append(newHistory, history...)
	newHistory = append(newHistory, *rec)
	state := Replay(graph, newHistory)

	records := []*ApprovalRecord{rec}
	var skipped []int
	if c.autoSkip && (rec.Decision == DecisionSubmit || rec.Decision == DecisionApprove) {
		for state.Status == StatusPending {
			step, stepErr := graph.StepAt(state.CurrentStep)
			if stepErr != nil || step.Required {
				break
			}
			members, memErr := c.directory.MembersOf(ctx, step.OrganizationCode)
			if memErr != nil {
				return nil, fmt.Errorf("workflow: resolve members of %s: %w", step.OrganizationCode, memErr)
			}
			if !IsSkippable(graph, state.CurrentStep, len(members)) {
				break
			}
			nextSeq++
			skipRec := &ApprovalRecord{
				ID:         uuid.New().String(),
				JournalID:  entry.ID,
				Seq:        nextSeq,
				StepNumber: state.CurrentStep,
				ActorID:    SystemActorID,
				Decision:   DecisionSkip,
			}
			records = append(records, skipRec)
			newHistory = append(newHistory, *skipRec)
			skipped = append(skipped, state.CurrentStep)
			state = Replay(graph, newHistory)
		}
	}

	// 全段跳过会让提交不经任何人审批直接终了，视为路由配置错误拒绝
	if rec.Decision == DecisionSubmit && state.Status != StatusPending {
		return nil, fmt.Errorf("%w: submitting on route %s would resolve it without any decision",
			ErrNoActionableSteps, graph.RouteCode())
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":       state.Status,
			"current_step": state.CurrentStep,
			"version":      expectedVersion + 1,
		}
		if rec.Decision == DecisionSubmit {
			now := time.Now().UTC()
			updates["route_code"] = routeCode
			updates["submitted_by"] = rec.ActorID
			updates["submitted_at"] = now
		}

		// 先做版本检查，落败的写入方在触碰台账之前就以冲突退出
		result := tx.Model(&journal.JournalEntry{}).
			Where("id = ? AND version = ?", entry.ID, expectedVersion).
			Updates(updates)
		if result.Error != nil {
			return &PersistenceError{Op: "update journal status", Err: result.Error}
		}
		if result.RowsAffected == 0 {
			return ErrConcurrencyConflict
		}

		for _, r := range records {
			if err := tx.Create(r).Error; err != nil {
				return &PersistenceError{Op: "append approval record", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			metrics.ApprovalConflictsTotal.Inc()
		}
		return nil, err
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues(string(rec.Decision), state.Status).Inc()
	return &TransitionResult{
		JournalID:    entry.ID,
		Status:       state.Status,
		CurrentStep:  state.CurrentStep,
		ResolvedStep: rec.StepNumber,
		SkippedSteps: skipped,
	}, nil
}

// emit publishes the status change to the notifier and the local bus.
// Notification is best-effort: failures are logged and absorbed.
func (c *Coordinator) emit(ctx context.Context, entry *journal.JournalEntry, graph *RouteGraph, rec *ApprovalRecord, result *TransitionResult) {
	now := time.Now().UTC()
	if c.bus != nil {
		c.bus.Publish(JournalEvent{
			JournalID:  entry.ID,
			RouteCode:  graph.RouteCode(),
			Status:     result.Status,
			Step:       result.CurrentStep,
			ActorID:    rec.ActorID,
			Decision:   rec.Decision,
			OccurredAt: now,
		})
	}
	if c.notifier == nil {
		return
	}
	submittedBy := entry.SubmittedBy
	if rec.Decision == DecisionSubmit {
		submittedBy = rec.ActorID
	}
	payload := map[string]any{
		"journal_id":   entry.ID,
		"entry_number": entry.EntryNumber,
		"route_code":   graph.RouteCode(),
		"status":       result.Status,
		"current_step": result.CurrentStep,
		"actor_id":     rec.ActorID,
		"submitted_by": submittedBy,
		"decision":     string(rec.Decision),
		"occurred_at":  now.Format(time.RFC3339),
	}
	if err := c.notifier.Notify(ctx, "journal.status_changed", payload); err != nil {
		c.logger.Warn("status change notification failed",
			zap.String("journal_id", entry.ID),
			zap.Error(err),
		)
	}
}

// ledgerTail returns the highest sequence number in the ordered history.
func ledgerTail(history []ApprovalRecord) int {
	tail := 0
	for _, rec := range history {
		if rec.Seq > tail {
			tail = rec.Seq
		}
	}
	return tail
}

func (c *Coordinator) loadJournal(ctx context.Context, journalID string) (*journal.JournalEntry, error) {
	var entry journal.JournalEntry
	err := c.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", journalID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJournalNotFound, journalID)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load journal", Err: err}
	}
	return &entry, nil
}
