package workflow

import "fmt"

// State is the derived approval state of a journal: its aggregate status and,
// while pending, the step awaiting a decision.
type State struct {
	Status      string `json:"status"`
	CurrentStep int    `json:"currentStep"`
}

// Replay computes the journal's state as a pure function of the route graph
// and the ordered action ledger. No hidden counters are kept anywhere; calling
// Replay twice with the same inputs always yields the same state, which makes
// the machine replayable for audit.
//
// Transitions:
//
//	Draft        --submit-->        Pending(1)
//	Pending(k)   --approve/skip-->  Pending(k+1), or Approved when k == N
//	Pending(k)   --reject-->        Rejected (terminal)
//	Pending(1)   --recall-->        Draft
//
// Records that are not legal in the state reached so far do not transition;
// the coordinator is the only writer of the ledger and never appends them.
func Replay(g *RouteGraph, records []ApprovalRecord) State {
	st := State{Status: StatusDraft}

	for _, rec := range records {
		switch rec.Decision {
		case DecisionSubmit:
			if st.Status == StatusDraft {
				st = State{Status: StatusPending, CurrentStep: 1}
			}
		case DecisionApprove, DecisionSkip:
			if st.Status != StatusPending || rec.StepNumber != st.CurrentStep {
				continue
			}
			if g.IsTerminal(st.CurrentStep) {
				st = State{Status: StatusApproved}
			} else {
				st = State{Status: StatusPending, CurrentStep: st.CurrentStep + 1}
			}
		case DecisionReject:
			if st.Status == StatusPending {
				st = State{Status: StatusRejected}
			}
		case DecisionRecall:
			if st.Status == StatusPending && st.CurrentStep == 1 {
				st = State{Status: StatusDraft}
			}
		}
	}

	return st
}

// CanAct decides whether an actor belonging to actorOrgs may apply the given
// decision against the journal's current state. On success it returns the step
// number the action will resolve. It fails with ErrIllegalTransition when the
// state does not admit the decision (terminal states admit nothing), and with
// ErrNotEligible when the actor is not a member of the organization bound to
// the current step. Purely advisory: no storage is touched.
func CanAct(g *RouteGraph, records []ApprovalRecord, actorOrgs []string, decision Decision) (int, error) {
	st := Replay(g, records)

	switch decision {
	case DecisionSubmit:
		if st.Status != StatusDraft {
			return 0, fmt.Errorf("%w: cannot submit a %s journal", ErrIllegalTransition, st.Status)
		}
		return 0, nil

	case DecisionApprove, DecisionReject:
		if st.Status != StatusPending {
			return 0, fmt.Errorf("%w: cannot %s a %s journal", ErrIllegalTransition, decision, st.Status)
		}
		step, err := g.StepAt(st.CurrentStep)
		if err != nil {
			return 0, err
		}
		if !containsString(actorOrgs, step.OrganizationCode) {
			return 0, fmt.Errorf("%w: step %d requires membership of organization %s",
				ErrNotEligible, step.Number, step.OrganizationCode)
		}
		return st.CurrentStep, nil

	case DecisionRecall:
		// Recall is only possible before anyone past origination has approved.
		if st.Status != StatusPending || st.CurrentStep != 1 {
			return 0, fmt.Errorf("%w: recall is only possible while pending at step 1", ErrIllegalTransition)
		}
		return st.CurrentStep, nil

	default:
		return 0, fmt.Errorf("%w: unknown decision %q", ErrIllegalTransition, decision)
	}
}

// IsSkippable reports whether step n may be auto-advanced: the step is marked
// not-required and its organization currently has no active members. The
// membership count is injected by the coordinator; the state machine itself
// performs no I/O.
func IsSkippable(g *RouteGraph, n, activeMembers int) bool {
	step, err := g.StepAt(n)
	if err != nil {
		return false
	}
	return !step.Required && activeMembers == 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
