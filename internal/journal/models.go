package journal

import (
	"time"

	"gorm.io/datatypes"
)

// Entry status values. Status is owned by the entry but always recomputed by
// the approval coordinator from the action ledger; it is never hand-edited.
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Line sides.
const (
	SideDebit  = "debit"
	SideCredit = "credit"
)

// JournalEntry 仕訳。One balanced double-entry bookkeeping event.
type JournalEntry struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	EntryNumber string    `json:"entryNumber" gorm:"size:50;not null;uniqueIndex"`
	EntryDate   time.Time `json:"entryDate" gorm:"not null;index"`
	Description string    `json:"description" gorm:"type:text"`

	// 审批状态（由审批协调器维护）
	RouteCode   string     `json:"routeCode" gorm:"size:50;index"`
	Status      string     `json:"status" gorm:"size:20;not null;default:draft;index"`
	CurrentStep int        `json:"currentStep" gorm:"default:0"`
	SubmittedBy string     `json:"submittedBy" gorm:"size:100"`
	SubmittedAt *time.Time `json:"submittedAt"`

	// Version backs the optimistic concurrency check on every status
	// transition; a stale writer loses with a conflict error.
	Version int `json:"version" gorm:"not null;default:1"`

	// Free-form attributes (department, project, ...) fed to route-selection
	// rule conditions.
	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	Lines []JournalLine `json:"lines" gorm:"foreignKey:JournalID;constraint:OnDelete:CASCADE"`

	CreatedBy string     `json:"createdBy" gorm:"size:100"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// DebitTotal returns the sum of debit-side line amounts in minor units.
func (e *JournalEntry) DebitTotal() int64 {
	var total int64
	for _, l := range e.Lines {
		if l.Side == SideDebit {
			total += l.Amount
		}
	}
	return total
}

// CreditTotal returns the sum of credit-side line amounts in minor units.
func (e *JournalEntry) CreditTotal() int64 {
	var total int64
	for _, l := range e.Lines {
		if l.Side == SideCredit {
			total += l.Amount
		}
	}
	return total
}

// JournalLine 仕訳明細。One debit or credit posting.
type JournalLine struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	JournalID   string `json:"journalId" gorm:"type:uuid;not null;index"`
	LineNumber  int    `json:"lineNumber" gorm:"not null"`
	AccountCode string `json:"accountCode" gorm:"size:50;not null;index"`
	Side        string `json:"side" gorm:"size:10;not null"` // debit, credit
	Amount      int64  `json:"amount" gorm:"not null"`       // 最小货币单位
	Memo        string `json:"memo" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

func (JournalLine) TableName() string { return "journal_lines" }
