package journal

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TrialBalanceRow aggregates one account's postings over a period.
type TrialBalanceRow struct {
	AccountCode string `json:"accountCode"`
	DebitTotal  int64  `json:"debitTotal"`
	CreditTotal int64  `json:"creditTotal"`
	Balance     int64  `json:"balance"` // debit minus credit
}

// TrialBalance sums debit and credit postings per account over approved
// entries in the date range. Computation only; rendering is the caller's
// business.
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) ([]TrialBalanceRow, error) {
	type rawRow struct {
		AccountCode string
		Side        string
		Total       int64
	}
	var rows []rawRow
	err := s.db.WithContext(ctx).
		Model(&JournalLine{}).
		Select("journal_lines.account_code, journal_lines.side, SUM(journal_lines.amount) AS total").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_id").
		Where("journal_entries.status = ?", StatusApproved).
		Where("journal_entries.deleted_at IS NULL").
		Where("journal_entries.entry_date >= ? AND journal_entries.entry_date <= ?", from, to).
		Group("journal_lines.account_code, journal_lines.side").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate trial balance: %w", err)
	}

	byAccount := make(map[string]*TrialBalanceRow)
	for _, r := range rows {
		row, ok := byAccount[r.AccountCode]
		if !ok {
			row = &TrialBalanceRow{AccountCode: r.AccountCode}
			byAccount[r.AccountCode] = row
		}
		if r.Side == SideDebit {
			row.DebitTotal += r.Total
		} else {
			row.CreditTotal += r.Total
		}
	}

	result := make([]TrialBalanceRow, 0, len(byAccount))
	for _, row := range byAccount {
		row.Balance = row.DebitTotal - row.CreditTotal
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountCode < result[j].AccountCode })
	return result, nil
}
