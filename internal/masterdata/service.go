package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend/internal/logger"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("masterdata: not found")
	ErrCodeExists = errors.New("masterdata: code already exists")

	// ErrOrganizationInUse is returned when an organization referenced by a
	// route step would be deactivated or deleted. Referential integrity:
	// routed organizations stay.
	ErrOrganizationInUse = errors.New("masterdata: organization is referenced by a route step")
)

// Service 基础数据维护服务（组织、科目）
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService 创建服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, logger: logger.Get()}
}

// ============================================================
// 组织
// ============================================================

// CreateOrganization stores a new approval organization.
func (s *Service) CreateOrganization(ctx context.Context, code, name string, sortOrder int) (*Organization, error) {
	org := &Organization{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      name,
		Active:    true,
		SortOrder: sortOrder,
	}
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// UpdateOrganization edits name/sort order and the active flag. Deactivating
// an organization still bound to a route step is refused.
func (s *Service) UpdateOrganization(ctx context.Context, code string, name *string, active *bool, sortOrder *int) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load organization: %w", err)
		}
		if active != nil && !*active && org.Active {
			inUse, err := s.referencedByRouteStep(tx, code)
			if err != nil {
				return err
			}
			if inUse {
				return ErrOrganizationInUse
			}
			org.Active = false
		}
		if active != nil && *active {
			org.Active = true
		}
		if name != nil {
			org.Name = *name
		}
		if sortOrder != nil {
			org.SortOrder = *sortOrder
		}
		return tx.Save(&org).Error
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// DeleteOrganization removes an organization that no route step references.
func (s *Service) DeleteOrganization(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inUse, err := s.referencedByRouteStep(tx, code)
		if err != nil {
			return err
		}
		if inUse {
			return ErrOrganizationInUse
		}
		result := tx.Where("code = ?", code).Delete(&Organization{})
		if result.Error != nil {
			return fmt.Errorf("delete organization: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListOrganizations returns organizations in sort order.
func (s *Service) ListOrganizations(ctx context.Context, activeOnly bool) ([]*Organization, error) {
	query := s.db.WithContext(ctx).Model(&Organization{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var orgs []*Organization
	if err := query.Order("sort_order ASC, code ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// GetOrganization returns one organization with its members.
func (s *Service) GetOrganization(ctx context.Context, code string) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Preload("Members").Where("code = ?", code).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// AddMember binds a user to an organization.
func (s *Service) AddMember(ctx context.Context, orgCode, userID string) (*OrganizationMember, error) {
	var org Organization
	if err := s.db.WithContext(ctx).Where("code = ?", orgCode).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load organization: %w", err)
	}
	member := &OrganizationMember{
		ID:               uuid.New().String(),
		OrganizationCode: orgCode,
		UserID:           userID,
		Active:           true,
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	return member, nil
}

// RemoveMember unbinds a user from an organization.
func (s *Service) RemoveMember(ctx context.Context, orgCode, userID string) error {
	result := s.db.WithContext(ctx).
		Where("organization_code = ? AND user_id = ?", orgCode, userID).
		Delete(&OrganizationMember{})
	if result.Error != nil {
		return fmt.Errorf("remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================
// 科目
// ============================================================

// CreateAccount stores a new bookkeeping account.
func (s *Service) CreateAccount(ctx context.Context, code, name, accountType string, sortOrder int) (*Account, error) {
	switch accountType {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
	default:
		return nil, fmt.Errorf("masterdata: invalid account type %q", accountType)
	}
	acct := &Account{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      name,
		Type:      accountType,
		Active:    true,
		SortOrder: sortOrder,
	}
	if err := s.db.WithContext(ctx).Create(acct).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// ListAccounts returns accounts in sort order.
func (s *Service) ListAccounts(ctx context.Context, activeOnly bool) ([]*Account, error) {
	query := s.db.WithContext(ctx).Model(&Account{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var accts []*Account
	if err := query.Order("sort_order ASC, code ASC").Find(&accts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accts, nil
}

// UpdateAccount edits name/active/sort order.
func (s *Service) UpdateAccount(ctx context.Context, code string, name *string, active *bool, sortOrder *int) (*Account, error) {
	var acct Account
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if name != nil {
		acct.Name = *name
	}
	if active != nil {
		acct.Active = *active
	}
	if sortOrder != nil {
		acct.SortOrder = *sortOrder
	}
	if err := s.db.WithContext(ctx).Save(&acct).Error; err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return &acct, nil
}

// ============================================================
// 内部辅助
// ============================================================

func (s *Service) referencedByRouteStep(tx *gorm.DB, orgCode string) (bool, error) {
	var count int64
	if err := tx.Model(&workflow.RouteStep{}).
		Where("organization_code = ?", orgCode).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count route steps: %w", err)
	}
	return count > 0, nil
}

// isUniqueViolation matches duplicate-key failures across postgres and the
// sqlite test driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
