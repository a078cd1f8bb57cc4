package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"backend/internal/journal"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// staticRoutes is an in-memory RouteLoader for coordinator tests.
type staticRoutes map[string]*RouteGraph

func (r staticRoutes) Graph(_ context.Context, routeCode string) (*RouteGraph, error) {
	g, ok := r[routeCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeCode)
	}
	return g, nil
}

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []map[string]any
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, payload)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&WorkflowRoute{}, &RouteStep{}, &ApprovalRecord{}, &RouteRule{},
		&journal.JournalEntry{}, &journal.JournalLine{},
	))
	return db
}

func seedJournal(t *testing.T, db *gorm.DB, routeCode string) *journal.JournalEntry {
	t.Helper()
	entry := &journal.JournalEntry{
		ID:          uuid.New().String(),
		EntryNumber: "JE-" + uuid.New().String()[:8],
		RouteCode:   routeCode,
		Status:      journal.StatusDraft,
		Version:     1,
		CreatedBy:   "applicant",
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

// generalLedgerFixture wires a coordinator over the standard two-step route:
// step 1 is handled by K001 (申請), step 2 by K002 (承認).
func generalLedgerFixture(t *testing.T) (*Coordinator, *gorm.DB, *journal.JournalEntry) {
	t.Helper()
	db := openTestDB(t)
	graph, err := NewRouteGraph("K-001", []Step{
		{Number: 1, OrganizationCode: "K001", Name: "申請", Required: true},
		{Number: 2, OrganizationCode: "K002", Name: "承認", Required: true},
	})
	require.NoError(t, err)
	dir := &fakeDirectory{
		orgs: map[string]bool{"K001": true, "K002": true},
		members: map[string][]string{
			"K001": {"applicant"},
			"K002": {"approver"},
		},
	}
	coord := NewCoordinator(db, staticRoutes{"K-001": graph}, dir)
	entry := seedJournal(t, db, "K-001")
	return coord, db, entry
}

func TestCoordinatorFullApprovalScenario(t *testing.T) {
	coord, db, entry := generalLedgerFixture(t)
	ctx := context.Background()

	// Submit: draft -> pending at step 1.
	result, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Status)
	require.Equal(t, 1, result.CurrentStep)

	// An outsider belonging to neither organization cannot decide.
	_, err = coord.Act(ctx, entry.ID, "outsider", DecisionApprove, "")
	require.ErrorIs(t, err, ErrNotEligible)

	// Step 1 approval by a K001 member advances to step 2.
	result, err = coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "起票確認")
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Status)
	require.Equal(t, 2, result.CurrentStep)

	// The step 1 actor is no longer eligible at step 2.
	_, err = coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.ErrorIs(t, err, ErrNotEligible)

	// Final approval by a K002 member terminates the chain.
	result, err = coord.Act(ctx, entry.ID, "approver", DecisionApprove, "承認")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, result.Status)

	// Terminal: no further decisions accepted.
	_, err = coord.Act(ctx, entry.ID, "approver", DecisionApprove, "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	// Persisted aggregate matches the replayed state.
	var persisted journal.JournalEntry
	require.NoError(t, db.First(&persisted, "id = ?", entry.ID).Error)
	require.Equal(t, journal.StatusApproved, persisted.Status)
	require.Equal(t, "applicant", persisted.SubmittedBy)
	require.NotNil(t, persisted.SubmittedAt)
	require.Equal(t, 4, persisted.Version) // submit + 2 approvals

	// Ledger: submit, approve@1, approve@2, all immutable appends.
	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, DecisionSubmit, history[0].Decision)
	require.Equal(t, DecisionApprove, history[1].Decision)
	require.Equal(t, 1, history[1].StepNumber)
	require.Equal(t, DecisionApprove, history[2].Decision)
	require.Equal(t, 2, history[2].StepNumber)
	require.Equal(t, "起票確認", history[1].Comment)
}

func TestCoordinatorRejectIsTerminal(t *testing.T) {
	coord, db, entry := generalLedgerFixture(t)
	ctx := context.Background()

	_, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)
	_, err = coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.NoError(t, err)

	result, err := coord.Act(ctx, entry.ID, "approver", DecisionReject, "金額不一致")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, result.Status)

	// Nothing moves a rejected journal: no approve, no recall, no resubmit.
	_, err = coord.Act(ctx, entry.ID, "approver", DecisionApprove, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
	_, err = coord.Recall(ctx, entry.ID, "applicant")
	require.ErrorIs(t, err, ErrIllegalTransition)
	_, err = coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.ErrorIs(t, err, ErrIllegalTransition)

	var persisted journal.JournalEntry
	require.NoError(t, db.First(&persisted, "id = ?", entry.ID).Error)
	require.Equal(t, journal.StatusRejected, persisted.Status)
}

func TestCoordinatorRecall(t *testing.T) {
	coord, _, entry := generalLedgerFixture(t)
	ctx := context.Background()

	_, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)

	// Only the submitter may pull the journal back.
	_, err = coord.Recall(ctx, entry.ID, "approver")
	require.ErrorIs(t, err, ErrNotEligible)

	result, err := coord.Recall(ctx, entry.ID, "applicant")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Status)

	// Recalled journal can be re-submitted; the ledger keeps the full history.
	result, err = coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Status)
	require.Equal(t, 1, result.CurrentStep)

	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 3) // submit, recall, submit
	require.Equal(t, DecisionRecall, history[1].Decision)
}

func TestCoordinatorRecallBlockedAfterFirstApproval(t *testing.T) {
	coord, _, entry := generalLedgerFixture(t)
	ctx := context.Background()

	_, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)
	_, err = coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.NoError(t, err)

	// Past step 1 the journal belongs to the approvers.
	_, err = coord.Recall(ctx, entry.ID, "applicant")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCoordinatorAutoSkipsVacantOptionalStep(t *testing.T) {
	db := openTestDB(t)
	graph, err := NewRouteGraph("K-003", []Step{
		{Number: 1, OrganizationCode: "K001", Name: "申請", Required: true},
		{Number: 2, OrganizationCode: "K005", Name: "経理確認", Required: false},
		{Number: 3, OrganizationCode: "K002", Name: "承認", Required: true},
	})
	require.NoError(t, err)
	dir := &fakeDirectory{
		orgs: map[string]bool{"K001": true, "K002": true, "K005": true},
		members: map[string][]string{
			"K001": {"applicant"},
			"K002": {"approver"},
			// K005 has no members: the optional step is vacant.
		},
	}
	coord := NewCoordinator(db, staticRoutes{"K-003": graph}, dir)
	entry := seedJournal(t, db, "K-003")
	ctx := context.Background()

	_, err = coord.Submit(ctx, entry.ID, "K-003", "applicant")
	require.NoError(t, err)

	// Approving step 1 lands on step 3 directly; step 2 is skipped by the
	// system inside the same transaction.
	result, err := coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Status)
	require.Equal(t, 3, result.CurrentStep)
	require.Equal(t, []int{2}, result.SkippedSteps)

	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	skip := history[2]
	require.Equal(t, DecisionSkip, skip.Decision)
	require.Equal(t, 2, skip.StepNumber)
	require.Equal(t, SystemActorID, skip.ActorID)

	// Ledger positions are contiguous even though the approve and the skip
	// were written in the same transaction.
	for i, rec := range history {
		require.Equal(t, i+1, rec.Seq)
	}
}

func TestCoordinatorAutoSkipDisabled(t *testing.T) {
	db := openTestDB(t)
	graph, err := NewRouteGraph("K-003", []Step{
		{Number: 1, OrganizationCode: "K001", Name: "申請", Required: true},
		{Number: 2, OrganizationCode: "K005", Name: "経理確認", Required: false},
	})
	require.NoError(t, err)
	dir := &fakeDirectory{
		orgs:    map[string]bool{"K001": true, "K005": true},
		members: map[string][]string{"K001": {"applicant"}},
	}
	coord := NewCoordinator(db, staticRoutes{"K-003": graph}, dir, WithAutoSkip(false))
	entry := seedJournal(t, db, "K-003")
	ctx := context.Background()

	_, err = coord.Submit(ctx, entry.ID, "K-003", "applicant")
	require.NoError(t, err)
	result, err := coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.NoError(t, err)

	// With auto-skip off the journal waits on the vacant step.
	require.Equal(t, StatusPending, result.Status)
	require.Equal(t, 2, result.CurrentStep)
	require.Empty(t, result.SkippedSteps)
}

func TestCoordinatorSubmitRefusesFullyVacantRoute(t *testing.T) {
	db := openTestDB(t)
	graph, err := NewRouteGraph("K-VAC", []Step{
		{Number: 1, OrganizationCode: "K005", Name: "経理確認", Required: false},
		{Number: 2, OrganizationCode: "K006", Name: "総務確認", Required: false},
	})
	require.NoError(t, err)
	dir := &fakeDirectory{
		orgs:    map[string]bool{"K005": true, "K006": true},
		members: map[string][]string{}, // 全ステップ空席
	}
	coord := NewCoordinator(db, staticRoutes{"K-VAC": graph}, dir)
	entry := seedJournal(t, db, "K-VAC")
	ctx := context.Background()

	// Every step would be skipped, so the journal would go straight to
	// Approved with zero human decisions. That is a route configuration
	// error and the submission must be refused with nothing written.
	_, err = coord.Submit(ctx, entry.ID, "K-VAC", "applicant")
	require.ErrorIs(t, err, ErrNoActionableSteps)

	var persisted journal.JournalEntry
	require.NoError(t, db.First(&persisted, "id = ?", entry.ID).Error)
	require.Equal(t, journal.StatusDraft, persisted.Status)
	require.Equal(t, 1, persisted.Version)

	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestHistoryOrderIndependentOfTimestampTies(t *testing.T) {
	coord, db, entry := generalLedgerFixture(t)
	ctx := context.Background()

	// Three records carrying the same wall-clock instant, inserted in an
	// order that disagrees with their ledger positions. This is what a
	// timestamp-truncating backend can hand back for records written inside
	// one transaction.
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ledger := []*ApprovalRecord{
		{ID: uuid.New().String(), JournalID: entry.ID, Seq: 3, StepNumber: 2, ActorID: SystemActorID, Decision: DecisionSkip, CreatedAt: now},
		{ID: uuid.New().String(), JournalID: entry.ID, Seq: 1, StepNumber: 0, ActorID: "applicant", Decision: DecisionSubmit, CreatedAt: now},
		{ID: uuid.New().String(), JournalID: entry.ID, Seq: 2, StepNumber: 1, ActorID: "applicant", Decision: DecisionApprove, CreatedAt: now},
	}
	for _, rec := range ledger {
		require.NoError(t, db.Create(rec).Error)
	}

	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, DecisionSubmit, history[0].Decision)
	require.Equal(t, DecisionApprove, history[1].Decision)
	require.Equal(t, DecisionSkip, history[2].Decision)

	// Replayed in ledger order the skip resolves the final step. In
	// insertion or timestamp order the skip would precede the approve,
	// Replay would drop it, and the derived state would still be pending.
	graph, err := coord.routes.Graph(ctx, "K-001")
	require.NoError(t, err)
	require.Equal(t, State{Status: StatusApproved}, Replay(graph, history))
}

func TestCoordinatorConcurrentApproveConflict(t *testing.T) {
	coord, db, entry := generalLedgerFixture(t)
	ctx := context.Background()

	_, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)

	// Two sessions read the journal at the same version and both pass the
	// state-machine check before either commits.
	var snapA, snapB journal.JournalEntry
	require.NoError(t, db.First(&snapA, "id = ?", entry.ID).Error)
	require.NoError(t, db.First(&snapB, "id = ?", entry.ID).Error)
	require.Equal(t, snapA.Version, snapB.Version)

	graph, err := coord.routes.Graph(ctx, "K-001")
	require.NoError(t, err)
	history, err := coord.History(ctx, entry.ID)
	require.NoError(t, err)

	recA := &ApprovalRecord{ID: uuid.New().String(), JournalID: entry.ID, StepNumber: 1, ActorID: "applicant", Decision: DecisionApprove}
	recB := &ApprovalRecord{ID: uuid.New().String(), JournalID: entry.ID, StepNumber: 1, ActorID: "applicant", Decision: DecisionApprove}

	// First commit wins.
	_, err = coord.applyTransition(ctx, &snapA, graph, history, recA, "")
	require.NoError(t, err)

	// Second commit carries the stale version and must lose without writing.
	_, err = coord.applyTransition(ctx, &snapB, graph, history, recB, "")
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	// Exactly one approve record for step 1 made it into the ledger.
	var count int64
	require.NoError(t, db.Model(&ApprovalRecord{}).
		Where("journal_id = ? AND step_number = ? AND decision = ?", entry.ID, 1, DecisionApprove).
		Count(&count).Error)
	require.EqualValues(t, 1, count)

	var persisted journal.JournalEntry
	require.NoError(t, db.First(&persisted, "id = ?", entry.ID).Error)
	require.Equal(t, 2, persisted.CurrentStep)
	require.Equal(t, snapA.Version+1, persisted.Version)
}

func TestCoordinatorCurrentStateReplaysLedger(t *testing.T) {
	coord, _, entry := generalLedgerFixture(t)
	ctx := context.Background()

	state, err := coord.CurrentState(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, state.Status)

	_, err = coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)
	state, err = coord.CurrentState(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, State{Status: StatusPending, CurrentStep: 1}, state)
}

func TestCoordinatorSubmitUnknownJournal(t *testing.T) {
	coord, _, _ := generalLedgerFixture(t)

	_, err := coord.Submit(context.Background(), uuid.New().String(), "K-001", "applicant")
	require.ErrorIs(t, err, ErrJournalNotFound)
}

func TestCoordinatorEmitsNotifications(t *testing.T) {
	db := openTestDB(t)
	graph, err := NewRouteGraph("K-001", []Step{
		{Number: 1, OrganizationCode: "K001", Name: "申請", Required: true},
	})
	require.NoError(t, err)
	dir := &fakeDirectory{
		orgs:    map[string]bool{"K001": true},
		members: map[string][]string{"K001": {"applicant"}},
	}
	notifier := &recordingNotifier{}
	bus := NewJournalEventBus(nil)
	coord := NewCoordinator(db, staticRoutes{"K-001": graph}, dir,
		WithNotifier(notifier), WithEventBus(bus))
	entry := seedJournal(t, db, "K-001")
	ctx := context.Background()

	events, cancel := bus.Subscribe(entry.ID)
	defer cancel()

	_, err = coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)

	ev := <-events
	require.Equal(t, entry.ID, ev.JournalID)
	require.Equal(t, StatusPending, ev.Status)
	require.Equal(t, DecisionSubmit, ev.Decision)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.events, 1)
	require.Equal(t, StatusPending, notifier.events[0]["status"])
}

func TestCoordinatorPendingForUser(t *testing.T) {
	coord, _, entry := generalLedgerFixture(t)
	ctx := context.Background()

	_, err := coord.Submit(ctx, entry.ID, "K-001", "applicant")
	require.NoError(t, err)

	pending, err := coord.PendingForUser(ctx, "applicant")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, entry.ID, pending[0].JournalID)
	require.Equal(t, 1, pending[0].StepNumber)
	require.Equal(t, "申請", pending[0].StepName)

	// The step 2 approver has nothing yet.
	pending, err = coord.PendingForUser(ctx, "approver")
	require.NoError(t, err)
	require.Empty(t, pending)

	// Advance to step 2: queues swap.
	_, err = coord.Act(ctx, entry.ID, "applicant", DecisionApprove, "")
	require.NoError(t, err)
	pending, err = coord.PendingForUser(ctx, "approver")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	pending, err = coord.PendingForUser(ctx, "applicant")
	require.NoError(t, err)
	require.Empty(t, pending)
}
