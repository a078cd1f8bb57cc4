package workflow

import "fmt"

// Step is one position in an approval chain, bound to the organization whose
// members may act on it.
type Step struct {
	Number           int    `json:"stepNumber"`
	OrganizationCode string `json:"organizationCode"`
	Name             string `json:"stepName"`
	Required         bool   `json:"required"`
}

// RouteGraph is the immutable execution view of one approval route: steps
// ordered by step number, validated to be a contiguous 1..N sequence.
// Execution order is always derived from step numbers, never from the visual
// layout, which exists only for the editor.
type RouteGraph struct {
	routeCode string
	steps     []Step
}

// NewRouteGraph builds the execution graph for a route. It fails with a
// *StructureError when the step list is empty, or when the step numbers do
// not form a contiguous sequence starting at 1.
func NewRouteGraph(routeCode string, steps []Step) (*RouteGraph, error) {
	if len(steps) == 0 {
		return nil, &StructureError{RouteCode: routeCode, Issues: []string{"route has no steps"}}
	}

	ordered := make([]Step, len(steps))
	seen := make(map[int]bool, len(steps))
	var issues []string

	for _, s := range steps {
		if s.Number < 1 || s.Number > len(steps) {
			issues = append(issues, fmt.Sprintf("step number %d is outside 1..%d", s.Number, len(steps)))
			continue
		}
		if seen[s.Number] {
			issues = append(issues, fmt.Sprintf("duplicate step number %d", s.Number))
			continue
		}
		seen[s.Number] = true
		ordered[s.Number-1] = s
	}
	for n := 1; n <= len(steps); n++ {
		if !seen[n] {
			issues = append(issues, fmt.Sprintf("missing step number %d", n))
		}
	}
	if len(issues) > 0 {
		return nil, &StructureError{RouteCode: routeCode, Issues: issues}
	}

	return &RouteGraph{routeCode: routeCode, steps: ordered}, nil
}

// RouteCode returns the code of the route this graph was built from.
func (g *RouteGraph) RouteCode() string { return g.routeCode }

// StepCount returns N, the number of steps in the route.
func (g *RouteGraph) StepCount() int { return len(g.steps) }

// StepAt returns the step with the given number, or ErrStepNotFound when n is
// out of range.
func (g *RouteGraph) StepAt(n int) (Step, error) {
	if n < 1 || n > len(g.steps) {
		return Step{}, fmt.Errorf("%w: route %s has no step %d", ErrStepNotFound, g.routeCode, n)
	}
	return g.steps[n-1], nil
}

// IsTerminal reports whether n is the last step of the route.
func (g *RouteGraph) IsTerminal(n int) bool { return n == len(g.steps) }

// Steps returns a copy of the ordered step list.
func (g *RouteGraph) Steps() []Step {
	out := make([]Step, len(g.steps))
	copy(out, g.steps)
	return out
}
