package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:journal_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&JournalEntry{}, &JournalLine{}))
	return db
}

func balancedParams(number string, amount int64) CreateEntryParams {
	return CreateEntryParams{
		EntryNumber: number,
		EntryDate:   time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Description: "消耗品購入",
		Lines: []LineParams{
			{AccountCode: "6001", Side: SideDebit, Amount: amount, Memo: "事務用品"},
			{AccountCode: "1001", Side: SideCredit, Amount: amount},
		},
		CreatedBy: "applicant",
	}
}

func TestCreateBalancedEntry(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	entry, err := svc.Create(ctx, balancedParams("JE-0001", 12000))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, entry.Status)
	require.Equal(t, 1, entry.Version)

	got, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	require.Equal(t, 1, got.Lines[0].LineNumber)
	require.EqualValues(t, 12000, got.DebitTotal())
	require.EqualValues(t, 12000, got.CreditTotal())
}

func TestCreateRejectsUnbalancedEntry(t *testing.T) {
	svc := NewService(openTestDB(t))

	params := balancedParams("JE-0002", 10000)
	params.Lines[1].Amount = 9000
	_, err := svc.Create(context.Background(), params)
	require.ErrorIs(t, err, ErrUnbalanced)
}

func TestCreateRejectsSingleLine(t *testing.T) {
	svc := NewService(openTestDB(t))

	params := balancedParams("JE-0003", 10000)
	params.Lines = params.Lines[:1]
	_, err := svc.Create(context.Background(), params)
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestCreateRejectsBadLine(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	params := balancedParams("JE-0004", 10000)
	params.Lines[0].Side = "both"
	_, err := svc.Create(ctx, params)
	require.Error(t, err)

	params = balancedParams("JE-0005", 10000)
	params.Lines[0].Amount = -10000
	_, err = svc.Create(ctx, params)
	require.Error(t, err)
}

func TestUpdateDraftOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	entry, err := svc.Create(ctx, balancedParams("JE-0006", 10000))
	require.NoError(t, err)

	updated := balancedParams("JE-0006", 25000)
	updated.Description = "金額修正"
	got, err := svc.Update(ctx, entry.ID, updated)
	require.NoError(t, err)
	require.Equal(t, "金額修正", got.Description)
	require.EqualValues(t, 25000, got.DebitTotal())

	// Once submitted the entry is frozen.
	require.NoError(t, db.Model(&JournalEntry{}).
		Where("id = ?", entry.ID).
		Update("status", StatusPending).Error)
	_, err = svc.Update(ctx, entry.ID, updated)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestDeleteDraftOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	entry, err := svc.Create(ctx, balancedParams("JE-0007", 10000))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, entry.ID, "applicant"))
	_, err = svc.Get(ctx, entry.ID)
	require.ErrorIs(t, err, ErrNotFound)

	approved, err := svc.Create(ctx, balancedParams("JE-0008", 10000))
	require.NoError(t, err)
	require.NoError(t, db.Model(&JournalEntry{}).
		Where("id = ?", approved.ID).
		Update("status", StatusApproved).Error)
	require.ErrorIs(t, svc.Delete(ctx, approved.ID, "applicant"), ErrNotEditable)
}

func TestListFilters(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first, err := svc.Create(ctx, balancedParams("JE-0009", 10000))
	require.NoError(t, err)
	second := balancedParams("JE-0010", 20000)
	second.EntryDate = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, second)
	require.NoError(t, err)
	require.NoError(t, db.Model(&JournalEntry{}).
		Where("id = ?", first.ID).
		Update("status", StatusApproved).Error)

	entries, total, err := svc.List(ctx, ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	// Newest entry date first.
	require.Equal(t, "JE-0010", entries[0].EntryNumber)

	entries, total, err = svc.List(ctx, ListFilter{Status: StatusApproved}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "JE-0009", entries[0].EntryNumber)

	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	entries, total, err = svc.List(ctx, ListFilter{DateFrom: &from}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "JE-0010", entries[0].EntryNumber)
}

func TestTrialBalanceAggregatesApprovedOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	approved, err := svc.Create(ctx, balancedParams("JE-0011", 30000))
	require.NoError(t, err)
	require.NoError(t, db.Model(&JournalEntry{}).
		Where("id = ?", approved.ID).
		Update("status", StatusApproved).Error)

	// A draft within the period must not count.
	_, err = svc.Create(ctx, balancedParams("JE-0012", 99999))
	require.NoError(t, err)

	other := balancedParams("JE-0013", 5000)
	other.Lines[0].AccountCode = "6002"
	entry, err := svc.Create(ctx, other)
	require.NoError(t, err)
	require.NoError(t, db.Model(&JournalEntry{}).
		Where("id = ?", entry.ID).
		Update("status", StatusApproved).Error)

	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	rows, err := svc.TrialBalance(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 3) // 1001, 6001, 6002 sorted

	require.Equal(t, "1001", rows[0].AccountCode)
	require.EqualValues(t, 35000, rows[0].CreditTotal)
	require.EqualValues(t, -35000, rows[0].Balance)
	require.Equal(t, "6001", rows[1].AccountCode)
	require.EqualValues(t, 30000, rows[1].DebitTotal)
	require.Equal(t, "6002", rows[2].AccountCode)
	require.EqualValues(t, 5000, rows[2].DebitTotal)

	// Debits and credits cancel across the whole balance.
	var sum int64
	for _, r := range rows {
		sum += r.Balance
	}
	require.Zero(t, sum)
}
