package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rec(step int, decision Decision) ApprovalRecord {
	return ApprovalRecord{StepNumber: step, ActorID: "someone", Decision: decision}
}

func TestReplayFullApproval(t *testing.T) {
	g := threeStepGraph(t)

	// N consecutive approves, one per step in order, end in Approved.
	records := []ApprovalRecord{
		rec(0, DecisionSubmit),
		rec(1, DecisionApprove),
		rec(2, DecisionApprove),
		rec(3, DecisionApprove),
	}
	st := Replay(g, records)
	require.Equal(t, StatusApproved, st.Status)
	require.Equal(t, 0, st.CurrentStep)
}

func TestReplayIntermediateSteps(t *testing.T) {
	g := threeStepGraph(t)

	st := Replay(g, nil)
	require.Equal(t, State{Status: StatusDraft}, st)

	st = Replay(g, []ApprovalRecord{rec(0, DecisionSubmit)})
	require.Equal(t, State{Status: StatusPending, CurrentStep: 1}, st)

	st = Replay(g, []ApprovalRecord{rec(0, DecisionSubmit), rec(1, DecisionApprove)})
	require.Equal(t, State{Status: StatusPending, CurrentStep: 2}, st)
}

func TestReplayRejectIsTerminalFromAnyStep(t *testing.T) {
	g := threeStepGraph(t)

	for step := 1; step <= 3; step++ {
		records := []ApprovalRecord{rec(0, DecisionSubmit)}
		for k := 1; k < step; k++ {
			records = append(records, rec(k, DecisionApprove))
		}
		records = append(records, rec(step, DecisionReject))

		st := Replay(g, records)
		require.Equal(t, StatusRejected, st.Status, "reject at step %d", step)

		// Terminal: nothing further is accepted.
		_, err := CanAct(g, records, []string{"K001", "K002", "K003"}, DecisionApprove)
		require.ErrorIs(t, err, ErrIllegalTransition)
		_, err = CanAct(g, records, nil, DecisionRecall)
		require.ErrorIs(t, err, ErrIllegalTransition)
	}
}

func TestReplayRecallOnlyAtStepOne(t *testing.T) {
	g := threeStepGraph(t)

	// Recall while pending at step 1 returns to draft.
	records := []ApprovalRecord{rec(0, DecisionSubmit), rec(1, DecisionRecall)}
	st := Replay(g, records)
	require.Equal(t, State{Status: StatusDraft}, st)

	// Recall past step 1 is illegal.
	advanced := []ApprovalRecord{rec(0, DecisionSubmit), rec(1, DecisionApprove)}
	_, err := CanAct(g, advanced, nil, DecisionRecall)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReplayIsPure(t *testing.T) {
	g := threeStepGraph(t)
	records := []ApprovalRecord{rec(0, DecisionSubmit), rec(1, DecisionApprove), rec(2, DecisionReject)}

	first := Replay(g, records)
	second := Replay(g, records)
	require.Equal(t, first, second)

	// A fresh replay of the same ledger reproduces the same state.
	require.Equal(t, first, Replay(g, append([]ApprovalRecord(nil), records...)))
}

func TestCanActEligibility(t *testing.T) {
	g := threeStepGraph(t)
	pending1 := []ApprovalRecord{rec(0, DecisionSubmit)}

	// Actor in the step-1 organization may act and resolves step 1.
	step, err := CanAct(g, pending1, []string{"K001"}, DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, 1, step)

	// Actor outside the organization is not eligible.
	_, err = CanAct(g, pending1, []string{"K002"}, DecisionApprove)
	require.ErrorIs(t, err, ErrNotEligible)

	// Same for reject.
	_, err = CanAct(g, pending1, []string{"K099"}, DecisionReject)
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestCanActTerminalStates(t *testing.T) {
	g := threeStepGraph(t)
	approved := []ApprovalRecord{
		rec(0, DecisionSubmit),
		rec(1, DecisionApprove),
		rec(2, DecisionApprove),
		rec(3, DecisionApprove),
	}

	_, err := CanAct(g, approved, []string{"K001", "K002", "K003"}, DecisionApprove)
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = CanAct(g, approved, nil, DecisionRecall)
	require.ErrorIs(t, err, ErrIllegalTransition)

	// Submitting an already-pending journal is illegal too.
	_, err = CanAct(g, []ApprovalRecord{rec(0, DecisionSubmit)}, nil, DecisionSubmit)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCanActStaleStep(t *testing.T) {
	g := threeStepGraph(t)

	// Journal advanced to step 2; a second approve by the step-1 actor must
	// fail: their organization no longer matches the current step.
	records := []ApprovalRecord{rec(0, DecisionSubmit), rec(1, DecisionApprove)}
	_, err := CanAct(g, records, []string{"K001"}, DecisionApprove)
	require.ErrorIs(t, err, ErrNotEligible)
}

func TestIsSkippable(t *testing.T) {
	g, err := NewRouteGraph("R-OPT", []Step{
		{Number: 1, OrganizationCode: "K001", Required: true},
		{Number: 2, OrganizationCode: "K002", Required: false},
	})
	require.NoError(t, err)

	require.False(t, IsSkippable(g, 1, 0), "required steps never skip")
	require.True(t, IsSkippable(g, 2, 0))
	require.False(t, IsSkippable(g, 2, 3), "members present, no skip")
	require.False(t, IsSkippable(g, 9, 0), "unknown step")
}
