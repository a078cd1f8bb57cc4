package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("journal: entry not found")

	// ErrNotEditable is returned when a caller tries to modify an entry that
	// has left draft. Pending and resolved entries are frozen; their content
	// is part of the approval audit trail.
	ErrNotEditable = errors.New("journal: entry is not editable")

	ErrUnbalanced  = errors.New("journal: debit and credit totals differ")
	ErrTooFewLines = errors.New("journal: an entry needs at least two lines")
)

// Service manages journal entry CRUD. Only draft entries may be edited or
// deleted; every status transition goes through the approval coordinator.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService 创建仕訳服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, logger: logger.Get()}
}

// CreateEntryParams describes a new draft entry.
type CreateEntryParams struct {
	EntryNumber string
	EntryDate   time.Time
	Description string
	Attributes  map[string]any
	Lines       []LineParams
	CreatedBy   string
}

// LineParams describes one posting line.
type LineParams struct {
	AccountCode string
	Side        string
	Amount      int64
	Memo        string
}

// Create validates the double-entry invariant and stores a draft entry.
func (s *Service) Create(ctx context.Context, params CreateEntryParams) (*JournalEntry, error) {
	lines, err := buildLines(params.Lines)
	if err != nil {
		return nil, err
	}

	entry := &JournalEntry{
		ID:          uuid.New().String(),
		EntryNumber: params.EntryNumber,
		EntryDate:   params.EntryDate,
		Description: params.Description,
		Status:      StatusDraft,
		Version:     1,
		Attributes:  datatypes.JSONMap(params.Attributes),
		Lines:       lines,
		CreatedBy:   params.CreatedBy,
	}
	for i := range entry.Lines {
		entry.Lines[i].JournalID = entry.ID
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create journal entry: %w", err)
	}

	s.logger.Info("journal entry created",
		zap.String("journal_id", entry.ID),
		zap.String("entry_number", entry.EntryNumber),
	)
	return entry, nil
}

// Update replaces a draft entry's content. Non-draft entries are frozen.
func (s *Service) Update(ctx context.Context, id string, params CreateEntryParams) (*JournalEntry, error) {
	lines, err := buildLines(params.Lines)
	if err != nil {
		return nil, err
	}

	var entry *JournalEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err = getForUpdate(tx, id)
		if err != nil {
			return err
		}
		if entry.Status != StatusDraft {
			return fmt.Errorf("%w: status is %s", ErrNotEditable, entry.Status)
		}

		entry.EntryDate = params.EntryDate
		entry.Description = params.Description
		entry.Attributes = datatypes.JSONMap(params.Attributes)
		if err := tx.Where("journal_id = ?", id).Delete(&JournalLine{}).Error; err != nil {
			return fmt.Errorf("replace journal lines: %w", err)
		}
		for i := range lines {
			lines[i].JournalID = id
		}
		entry.Lines = lines
		if err := tx.Save(entry).Error; err != nil {
			return fmt.Errorf("update journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, id string) (*JournalEntry, error) {
	var entry JournalEntry
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return &entry, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// List returns entries ordered by entry date, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*JournalEntry, int64, error) {
	query := s.db.WithContext(ctx).Model(&JournalEntry{}).Where("deleted_at IS NULL")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("entry_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("entry_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count journal entries: %w", err)
	}

	var entries []*JournalEntry
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Order("entry_date DESC, entry_number DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, total, nil
}

// Delete soft-deletes a draft entry.
func (s *Service) Delete(ctx context.Context, id, deletedBy string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := getForUpdate(tx, id)
		if err != nil {
			return err
		}
		if entry.Status != StatusDraft {
			return fmt.Errorf("%w: status is %s", ErrNotEditable, entry.Status)
		}
		now := time.Now().UTC()
		if err := tx.Model(entry).Updates(map[string]any{"deleted_at": now}).Error; err != nil {
			return fmt.Errorf("delete journal entry: %w", err)
		}
		s.logger.Info("journal entry deleted",
			zap.String("journal_id", id),
			zap.String("deleted_by", deletedBy),
		)
		return nil
	})
}

func getForUpdate(tx *gorm.DB, id string) (*JournalEntry, error) {
	var entry JournalEntry
	err := tx.Where("id = ? AND deleted_at IS NULL", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load journal entry: %w", err)
	}
	return &entry, nil
}

// buildLines validates the double-entry invariant and assigns line numbers.
func buildLines(params []LineParams) ([]JournalLine, error) {
	if len(params) < 2 {
		return nil, ErrTooFewLines
	}

	var debit, credit int64
	lines := make([]JournalLine, 0, len(params))
	for i, p := range params {
		if p.Side != SideDebit && p.Side != SideCredit {
			return nil, fmt.Errorf("journal: line %d has invalid side %q", i+1, p.Side)
		}
		if p.Amount <= 0 {
			return nil, fmt.Errorf("journal: line %d amount must be positive", i+1)
		}
		if p.Side == SideDebit {
			debit += p.Amount
		} else {
			credit += p.Amount
		}
		lines = append(lines, JournalLine{
			ID:          uuid.New().String(),
			LineNumber:  i + 1,
			AccountCode: p.AccountCode,
			Side:        p.Side,
			Amount:      p.Amount,
			Memo:        p.Memo,
		})
	}
	if debit != credit {
		return nil, fmt.Errorf("%w: debit %d, credit %d", ErrUnbalanced, debit, credit)
	}
	return lines, nil
}
