package workflow

import (
	"context"
	"fmt"
)

// ValidationError 路由校验错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult carries every problem found in a candidate route so the
// editor can display them together.
type ValidationResult struct {
	OK     bool              `json:"ok"`
	Errors []ValidationError `json:"errors"`
}

// Validator gates route activation. It never mutates anything; it is a purely
// advisory check run before "activate route" and before a route is assigned
// to a journal.
type Validator struct {
	directory Directory
}

// NewValidator 创建路由验证器
func NewValidator(directory Directory) *Validator {
	return &Validator{directory: directory}
}

// Validate checks a candidate route for structural soundness. All errors are
// collected rather than failing fast.
func (v *Validator) Validate(ctx context.Context, route *WorkflowRoute) ValidationResult {
	var errs []ValidationError

	// 1. 至少一个步骤
	if len(route.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field:   "steps",
			Message: "route must have at least one step",
		})
		return ValidationResult{OK: false, Errors: errs}
	}

	// 2. 步骤编号必须从 1 开始连续
	seen := make(map[int]int, len(route.Steps))
	for _, s := range route.Steps {
		seen[s.StepNumber]++
	}
	for n, count := range seen {
		if n < 1 || n > len(route.Steps) {
			errs = append(errs, ValidationError{
				Field:   "steps",
				Message: fmt.Sprintf("step number %d is outside 1..%d", n, len(route.Steps)),
			})
		}
		if count > 1 {
			errs = append(errs, ValidationError{
				Field:   "steps",
				Message: fmt.Sprintf("duplicate step number %d", n),
			})
		}
	}
	for n := 1; n <= len(route.Steps); n++ {
		if seen[n] == 0 {
			errs = append(errs, ValidationError{
				Field:   "steps",
				Message: fmt.Sprintf("missing step number %d", n),
			})
		}
	}

	// 3. 步骤引用的组织必须有效
	if v.directory != nil {
		for i, s := range route.Steps {
			active, err := v.directory.IsActiveOrganization(ctx, s.OrganizationCode)
			if err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("steps[%d].organizationCode", i),
					Message: fmt.Sprintf("could not resolve organization %s: %v", s.OrganizationCode, err),
				})
				continue
			}
			if !active {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("steps[%d].organizationCode", i),
					Message: fmt.Sprintf("organization %s is unknown or inactive", s.OrganizationCode),
				})
			}
		}
	}

	// 4. 布局与步骤列表的一致性（布局仅供编辑器，但不允许与执行顺序矛盾）
	if route.Layout != nil {
		errs = append(errs, v.validateLayout(route)...)
	}

	return ValidationResult{OK: len(errs) == 0, Errors: errs}
}

// validateLayout checks that the visual graph tells the same story as the
// authoritative step list: one start node, one end node, every organization
// node bound to exactly one step, and a single start-to-end path visiting the
// organization nodes in step order.
func (v *Validator) validateLayout(route *WorkflowRoute) []ValidationError {
	var errs []ValidationError
	layout := route.Layout

	stepByOrg := make(map[string]RouteStep, len(route.Steps))
	for _, s := range route.Steps {
		stepByOrg[s.OrganizationCode] = s
	}

	var startID, endID string
	orgNodeCount := make(map[string]int)
	nodeByID := make(map[string]LayoutNode, len(layout.Nodes))

	for _, node := range layout.Nodes {
		nodeByID[node.ID] = node
		switch node.Kind {
		case NodeKindStart:
			if startID != "" {
				errs = append(errs, ValidationError{Field: "layout.nodes", Message: "layout has more than one start node"})
			}
			startID = node.ID
		case NodeKindEnd:
			if endID != "" {
				errs = append(errs, ValidationError{Field: "layout.nodes", Message: "layout has more than one end node"})
			}
			endID = node.ID
		case NodeKindOrganization:
			orgNodeCount[node.OrganizationCode]++
			if _, ok := stepByOrg[node.OrganizationCode]; !ok {
				errs = append(errs, ValidationError{
					Field:   "layout.nodes",
					Message: fmt.Sprintf("layout node %s references organization %s which has no step", node.ID, node.OrganizationCode),
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   "layout.nodes",
				Message: fmt.Sprintf("layout node %s has unknown kind %q", node.ID, node.Kind),
			})
		}
	}

	if startID == "" {
		errs = append(errs, ValidationError{Field: "layout.nodes", Message: "layout has no start node"})
	}
	if endID == "" {
		errs = append(errs, ValidationError{Field: "layout.nodes", Message: "layout has no end node"})
	}
	for org, count := range orgNodeCount {
		if count > 1 {
			errs = append(errs, ValidationError{
				Field:   "layout.nodes",
				Message: fmt.Sprintf("organization %s appears in %d layout nodes", org, count),
			})
		}
	}
	for _, s := range route.Steps {
		if orgNodeCount[s.OrganizationCode] == 0 {
			errs = append(errs, ValidationError{
				Field:   "layout.nodes",
				Message: fmt.Sprintf("step %d (organization %s) has no layout node", s.StepNumber, s.OrganizationCode),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// 从 start 沿唯一出边走到 end，组织节点必须按步骤号递增出现
	outgoing := make(map[string][]string)
	for _, e := range layout.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}

	current := startID
	visited := map[string]bool{startID: true}
	wantStep := 1
	for current != endID {
		next := outgoing[current]
		if len(next) != 1 {
			errs = append(errs, ValidationError{
				Field:   "layout.edges",
				Message: fmt.Sprintf("node %s must have exactly one outgoing edge, found %d", current, len(next)),
			})
			return errs
		}
		current = next[0]
		if visited[current] {
			errs = append(errs, ValidationError{
				Field:   "layout.edges",
				Message: fmt.Sprintf("layout path revisits node %s", current),
			})
			return errs
		}
		visited[current] = true

		node, ok := nodeByID[current]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   "layout.edges",
				Message: fmt.Sprintf("edge targets unknown node %s", current),
			})
			return errs
		}
		if node.Kind == NodeKindOrganization {
			step := stepByOrg[node.OrganizationCode]
			if step.StepNumber != wantStep {
				errs = append(errs, ValidationError{
					Field: "layout.edges",
					Message: fmt.Sprintf("layout path reaches organization %s (step %d) out of order, expected step %d",
						node.OrganizationCode, step.StepNumber, wantStep),
				})
				return errs
			}
			wantStep++
		}
	}
	if wantStep != len(route.Steps)+1 {
		errs = append(errs, ValidationError{
			Field:   "layout.edges",
			Message: fmt.Sprintf("layout path visits %d of %d organization nodes", wantStep-1, len(route.Steps)),
		})
	}

	return errs
}
