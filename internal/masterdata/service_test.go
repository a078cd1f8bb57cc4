package masterdata

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:masterdata_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&Organization{}, &OrganizationMember{}, &Account{},
		&workflow.RouteStep{},
	))
	return db
}

func TestOrganizationCRUD(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "K001", "申請部門", 1)
	require.NoError(t, err)
	require.True(t, org.Active)

	_, err = svc.CreateOrganization(ctx, "K001", "重複", 2)
	require.ErrorIs(t, err, ErrCodeExists)

	newName := "経理部"
	updated, err := svc.UpdateOrganization(ctx, "K001", &newName, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "経理部", updated.Name)

	orgs, err := svc.ListOrganizations(ctx, false)
	require.NoError(t, err)
	require.Len(t, orgs, 1)

	require.NoError(t, svc.DeleteOrganization(ctx, "K001"))
	require.ErrorIs(t, svc.DeleteOrganization(ctx, "K001"), ErrNotFound)
}

func TestOrganizationInUseByRouteStep(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.CreateOrganization(ctx, "K002", "承認部門", 2)
	require.NoError(t, err)
	require.NoError(t, db.Create(&workflow.RouteStep{
		ID:               uuid.New().String(),
		RouteCode:        "K-001",
		StepNumber:       2,
		OrganizationCode: "K002",
		StepName:         "承認",
		Required:         true,
	}).Error)

	// A routed organization can be renamed but not deactivated or removed.
	inactive := false
	_, err = svc.UpdateOrganization(ctx, "K002", nil, &inactive, nil)
	require.ErrorIs(t, err, ErrOrganizationInUse)
	require.ErrorIs(t, svc.DeleteOrganization(ctx, "K002"), ErrOrganizationInUse)

	newName := "役員会"
	_, err = svc.UpdateOrganization(ctx, "K002", &newName, nil, nil)
	require.NoError(t, err)
}

func TestMembership(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	_, err := svc.CreateOrganization(ctx, "K001", "申請部門", 1)
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, "K001", "applicant")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "K001", "applicant")
	require.ErrorIs(t, err, ErrCodeExists)
	_, err = svc.AddMember(ctx, "NO-SUCH", "applicant")
	require.ErrorIs(t, err, ErrNotFound)

	org, err := svc.GetOrganization(ctx, "K001")
	require.NoError(t, err)
	require.Len(t, org.Members, 1)

	require.NoError(t, svc.RemoveMember(ctx, "K001", "applicant"))
	require.ErrorIs(t, svc.RemoveMember(ctx, "K001", "applicant"), ErrNotFound)
}

func TestDirectoryQueries(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	dir := NewDirectory(svc)
	ctx := context.Background()

	_, err := svc.CreateOrganization(ctx, "K001", "申請部門", 1)
	require.NoError(t, err)
	_, err = svc.CreateOrganization(ctx, "K002", "承認部門", 2)
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "K001", "applicant")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "K002", "applicant")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "K002", "approver")
	require.NoError(t, err)

	active, err := dir.IsActiveOrganization(ctx, "K001")
	require.NoError(t, err)
	require.True(t, active)
	active, err = dir.IsActiveOrganization(ctx, "NO-SUCH")
	require.NoError(t, err)
	require.False(t, active)

	members, err := dir.MembersOf(ctx, "K002")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"applicant", "approver"}, members)

	orgs, err := dir.OrganizationsOf(ctx, "applicant")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"K001", "K002"}, orgs)

	// Deactivating an organization hides it and its members from the engine.
	inactive := false
	_, err = svc.UpdateOrganization(ctx, "K002", nil, &inactive, nil)
	require.NoError(t, err)

	active, err = dir.IsActiveOrganization(ctx, "K002")
	require.NoError(t, err)
	require.False(t, active)
	members, err = dir.MembersOf(ctx, "K002")
	require.NoError(t, err)
	require.Empty(t, members)
	orgs, err = dir.OrganizationsOf(ctx, "applicant")
	require.NoError(t, err)
	require.Equal(t, []string{"K001"}, orgs)
}

func TestAccountCRUD(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, "1001", "現金", AccountTypeAsset, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, "6001", "消耗品費", AccountTypeExpense, 10)
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, "9999", "謎", "mystery", 99)
	require.Error(t, err)
	_, err = svc.CreateAccount(ctx, "1001", "重複", AccountTypeAsset, 1)
	require.ErrorIs(t, err, ErrCodeExists)

	accts, err := svc.ListAccounts(ctx, false)
	require.NoError(t, err)
	require.Len(t, accts, 2)
	require.Equal(t, "1001", accts[0].Code)

	inactive := false
	_, err = svc.UpdateAccount(ctx, "6001", nil, &inactive, nil)
	require.NoError(t, err)
	accts, err = svc.ListAccounts(ctx, true)
	require.NoError(t, err)
	require.Len(t, accts, 1)
}
