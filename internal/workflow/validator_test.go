package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDirectory is an in-memory workflow.Directory for engine tests.
type fakeDirectory struct {
	orgs    map[string]bool     // code -> active
	members map[string][]string // code -> user IDs
}

func (d *fakeDirectory) IsActiveOrganization(_ context.Context, code string) (bool, error) {
	return d.orgs[code], nil
}

func (d *fakeDirectory) MembersOf(_ context.Context, code string) ([]string, error) {
	return d.members[code], nil
}

func (d *fakeDirectory) OrganizationsOf(_ context.Context, userID string) ([]string, error) {
	var codes []string
	for code, users := range d.members {
		for _, u := range users {
			if u == userID && d.orgs[code] {
				codes = append(codes, code)
			}
		}
	}
	return codes, nil
}

func twoStepRoute() *WorkflowRoute {
	return &WorkflowRoute{
		Code: "K-001",
		Name: "一般仕訳",
		Steps: []RouteStep{
			{RouteCode: "K-001", StepNumber: 1, OrganizationCode: "K001", StepName: "申請", Required: true},
			{RouteCode: "K-001", StepNumber: 2, OrganizationCode: "K002", StepName: "承認", Required: true},
		},
	}
}

func TestValidateSoundRoute(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": true}}
	v := NewValidator(dir)

	result := v.Validate(context.Background(), twoStepRoute())
	require.True(t, result.OK)
	require.Empty(t, result.Errors)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true}} // K002 unknown
	v := NewValidator(dir)

	route := twoStepRoute()
	route.Steps[1].StepNumber = 3 // gap: 1,3

	result := v.Validate(context.Background(), route)
	require.False(t, result.OK)
	// Both the numbering gap and the unknown organization are reported
	// together, not fail-fast.
	require.GreaterOrEqual(t, len(result.Errors), 3)
}

func TestValidateEmptyRoute(t *testing.T) {
	v := NewValidator(&fakeDirectory{})
	result := v.Validate(context.Background(), &WorkflowRoute{Code: "EMPTY"})
	require.False(t, result.OK)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "steps", result.Errors[0].Field)
}

func TestValidateInactiveOrganization(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": false}}
	v := NewValidator(dir)

	result := v.Validate(context.Background(), twoStepRoute())
	require.False(t, result.OK)
	require.Contains(t, result.Errors[0].Message, "K002")
}

func validLayout() *RouteLayout {
	return &RouteLayout{
		Nodes: []LayoutNode{
			{ID: "n-start", Kind: NodeKindStart},
			{ID: "n-1", Kind: NodeKindOrganization, OrganizationCode: "K001"},
			{ID: "n-2", Kind: NodeKindOrganization, OrganizationCode: "K002"},
			{ID: "n-end", Kind: NodeKindEnd},
		},
		Edges: []LayoutEdge{
			{ID: "e-1", Source: "n-start", Target: "n-1"},
			{ID: "e-2", Source: "n-1", Target: "n-2"},
			{ID: "e-3", Source: "n-2", Target: "n-end"},
		},
	}
}

func TestValidateLayoutConsistent(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": true}}
	v := NewValidator(dir)

	route := twoStepRoute()
	route.Layout = validLayout()

	result := v.Validate(context.Background(), route)
	require.True(t, result.OK, "errors: %v", result.Errors)
}

func TestValidateLayoutOutOfOrder(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": true}}
	v := NewValidator(dir)

	route := twoStepRoute()
	route.Layout = validLayout()
	// Swap the visual order: start -> K002 -> K001 -> end, contradicting the
	// authoritative step list.
	route.Layout.Edges = []LayoutEdge{
		{ID: "e-1", Source: "n-start", Target: "n-2"},
		{ID: "e-2", Source: "n-2", Target: "n-1"},
		{ID: "e-3", Source: "n-1", Target: "n-end"},
	}

	result := v.Validate(context.Background(), route)
	require.False(t, result.OK)
	require.Contains(t, result.Errors[0].Message, "out of order")
}

func TestValidateLayoutMissingNodes(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": true}}
	v := NewValidator(dir)

	route := twoStepRoute()
	route.Layout = &RouteLayout{
		Nodes: []LayoutNode{
			{ID: "n-1", Kind: NodeKindOrganization, OrganizationCode: "K001"},
		},
	}

	result := v.Validate(context.Background(), route)
	require.False(t, result.OK)
	// No start, no end, and step 2 has no node.
	require.GreaterOrEqual(t, len(result.Errors), 3)
}

func TestValidateLayoutBranching(t *testing.T) {
	dir := &fakeDirectory{orgs: map[string]bool{"K001": true, "K002": true}}
	v := NewValidator(dir)

	route := twoStepRoute()
	route.Layout = validLayout()
	route.Layout.Edges = append(route.Layout.Edges, LayoutEdge{ID: "e-4", Source: "n-start", Target: "n-2"})

	result := v.Validate(context.Background(), route)
	require.False(t, result.OK)
	require.Contains(t, result.Errors[0].Message, "exactly one outgoing edge")
}
