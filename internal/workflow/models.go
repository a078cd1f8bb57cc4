package workflow

import "time"

// Journal approval status values. The journal entity owns the aggregate
// status; it is recomputed from the action ledger on every transition.
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Decision 审批动作类型
type Decision string

const (
	DecisionSubmit  Decision = "submit"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionRecall  Decision = "recall"
	// DecisionSkip is recorded by the coordinator when an optional step with
	// no eligible actors is auto-advanced. Never issued by a user.
	DecisionSkip Decision = "skip"
)

// SystemActorID is the actor recorded on synthetic skip actions.
const SystemActorID = "system"

// WorkflowRoute is a named, versioned approval path. The owned step list is
// authoritative for execution; Layout only backs the editing UI.
type WorkflowRoute struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	Code        string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`

	// 状态
	Active  bool `json:"active" gorm:"default:false"`
	Version int  `json:"version" gorm:"default:1"`

	// 步骤（1:N，路由删除时级联）
	Steps []RouteStep `json:"steps" gorm:"foreignKey:RouteCode;references:Code;constraint:OnDelete:CASCADE"`

	// 可视化布局，仅供编辑器使用
	Layout *RouteLayout `json:"layout,omitempty" gorm:"type:jsonb;serializer:json"`

	CreatedBy string    `json:"createdBy" gorm:"size:100"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (WorkflowRoute) TableName() string { return "workflow_routes" }

// RouteStep is one stored position in a route. Step numbers within a route
// form a contiguous 1..N sequence; that invariant is checked by the validator
// before activation and again by NewRouteGraph at load time.
type RouteStep struct {
	ID               string `json:"id" gorm:"primaryKey;type:uuid"`
	RouteCode        string `json:"routeCode" gorm:"size:50;not null;index:idx_route_step,unique,priority:1"`
	StepNumber       int    `json:"stepNumber" gorm:"not null;index:idx_route_step,unique,priority:2"`
	OrganizationCode string `json:"organizationCode" gorm:"size:50;not null;index"`
	StepName         string `json:"stepName" gorm:"size:255"`
	Required         bool   `json:"required" gorm:"default:true"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (RouteStep) TableName() string { return "route_steps" }

// ToStep converts the stored row into its execution representation.
func (s RouteStep) ToStep() Step {
	return Step{
		Number:           s.StepNumber,
		OrganizationCode: s.OrganizationCode,
		Name:             s.StepName,
		Required:         s.Required,
	}
}

// RouteLayout 路由编辑器的节点/边布局
type RouteLayout struct {
	Nodes []LayoutNode `json:"nodes,omitempty"`
	Edges []LayoutEdge `json:"edges,omitempty"`
}

// NodeKind 布局节点类型
type NodeKind string

const (
	NodeKindStart        NodeKind = "start"
	NodeKindOrganization NodeKind = "organization"
	NodeKindEnd          NodeKind = "end"
)

// LayoutNode 布局节点
type LayoutNode struct {
	ID               string   `json:"id"`
	Kind             NodeKind `json:"kind"`
	OrganizationCode string   `json:"organizationCode,omitempty"`
	Label            string   `json:"label,omitempty"`
	X                float64  `json:"x"`
	Y                float64  `json:"y"`
}

// LayoutEdge 布局连接线
type LayoutEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ApprovalRecord is one immutable entry of the append-only action ledger.
// Records are never updated or deleted; the journal's state is always a pure
// replay of its ordered records.
type ApprovalRecord struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	JournalID string `json:"journalId" gorm:"type:uuid;not null;index;index:idx_journal_seq,unique,priority:1"`

	// Seq is the record's position in the journal's ledger, assigned by the
	// coordinator. Replay order depends on it alone, never on timestamp
	// precision: records written inside one transaction share a wall-clock
	// instant. The unique (journal_id, seq) index doubles as a second guard
	// against two writers appending at the same ledger position.
	Seq int `json:"seq" gorm:"not null;index:idx_journal_seq,unique,priority:2"`

	StepNumber int      `json:"stepNumber" gorm:"not null"`
	ActorID    string   `json:"actorId" gorm:"size:100;not null"`
	Decision   Decision `json:"decision" gorm:"size:20;not null"`
	Comment    string   `json:"comment" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

func (ApprovalRecord) TableName() string { return "approval_records" }

// RouteRule selects an approval route for a journal at submit time. Rules are
// evaluated in priority order; the first matching condition wins.
type RouteRule struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string `json:"name" gorm:"size:255;not null"`
	Priority  int    `json:"priority" gorm:"default:0"` // 越高越先匹配
	Condition string `json:"condition" gorm:"type:text;not null"`
	RouteCode string `json:"routeCode" gorm:"size:50;not null"`
	Active    bool   `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (RouteRule) TableName() string { return "route_rules" }
