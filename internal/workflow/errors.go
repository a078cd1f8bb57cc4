package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRouteNotFound is returned when a route code does not resolve to a
	// stored route, or the route is not active.
	ErrRouteNotFound = errors.New("workflow: route not found")

	// ErrStepNotFound is returned when a step number is outside the route's
	// 1..N range.
	ErrStepNotFound = errors.New("workflow: step not found")

	// ErrJournalNotFound is returned when a journal reference does not exist.
	ErrJournalNotFound = errors.New("workflow: journal not found")

	// ErrIllegalTransition is returned when an action is attempted against a
	// terminal or mismatched state. Not retryable without re-fetching state.
	ErrIllegalTransition = errors.New("workflow: illegal state transition")

	// ErrNotEligible is returned when the actor does not belong to the
	// organization bound to the current step, or is not the original
	// submitter on recall.
	ErrNotEligible = errors.New("workflow: actor not eligible")

	// ErrConcurrencyConflict is returned when a competing transaction already
	// advanced the journal. Callers should re-fetch and retry.
	ErrConcurrencyConflict = errors.New("workflow: concurrent update conflict")

	// ErrNoRouteMatched is returned by the route selector when no rule
	// condition matches the journal and no explicit route was given.
	ErrNoRouteMatched = errors.New("workflow: no route rule matched")

	// ErrNoActionableSteps rejects a submission that would auto-skip every
	// step and resolve the journal without a single human decision. Such a
	// route is a configuration error, not an approval.
	ErrNoActionableSteps = errors.New("workflow: route has no actionable steps")
)

// StructureError reports a malformed route configuration (missing steps, gaps
// or duplicates in step numbers). It is surfaced to the route editor and never
// silently repaired.
type StructureError struct {
	RouteCode string
	Issues    []string
}

func (e *StructureError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("workflow: route %s has an invalid structure", e.RouteCode)
	}
	return fmt.Sprintf("workflow: route %s has an invalid structure: %s", e.RouteCode, strings.Join(e.Issues, "; "))
}

// PersistenceError wraps a storage failure during a transition. The journal's
// prior state is untouched when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("workflow: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
