package masterdata

import (
	"context"
	"fmt"
)

// Directory answers the workflow engine's organization questions. It satisfies
// workflow.Directory; the engine holds only the interface.
type Directory struct {
	svc *Service
}

// NewDirectory 创建组织目录
func NewDirectory(svc *Service) *Directory {
	return &Directory{svc: svc}
}

// IsActiveOrganization reports whether the organization exists and is active.
func (d *Directory) IsActiveOrganization(ctx context.Context, code string) (bool, error) {
	var count int64
	err := d.svc.db.WithContext(ctx).
		Model(&Organization{}).
		Where("code = ? AND active = ?", code, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("masterdata: resolve organization %s: %w", code, err)
	}
	return count > 0, nil
}

// MembersOf returns the active member user IDs of an active organization.
func (d *Directory) MembersOf(ctx context.Context, code string) ([]string, error) {
	var userIDs []string
	err := d.svc.db.WithContext(ctx).
		Model(&OrganizationMember{}).
		Joins("JOIN workflow_organizations ON workflow_organizations.code = organization_members.organization_code").
		Where("organization_members.organization_code = ?", code).
		Where("organization_members.active = ? AND workflow_organizations.active = ?", true, true).
		Pluck("organization_members.user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("masterdata: members of %s: %w", code, err)
	}
	return userIDs, nil
}

// OrganizationsOf returns the active organizations a user belongs to.
func (d *Directory) OrganizationsOf(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := d.svc.db.WithContext(ctx).
		Model(&OrganizationMember{}).
		Joins("JOIN workflow_organizations ON workflow_organizations.code = organization_members.organization_code").
		Where("organization_members.user_id = ?", userID).
		Where("organization_members.active = ? AND workflow_organizations.active = ?", true, true).
		Pluck("organization_members.organization_code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("masterdata: organizations of %s: %w", userID, err)
	}
	return codes, nil
}
