package workflow

import "context"

// Directory resolves workflow organizations and their membership. Implemented
// by the master-data service; injected so the engine never queries membership
// storage directly.
type Directory interface {
	// IsActiveOrganization reports whether the organization exists and is active.
	IsActiveOrganization(ctx context.Context, code string) (bool, error)

	// MembersOf returns the user IDs of the organization's active members.
	MembersOf(ctx context.Context, code string) ([]string, error)

	// OrganizationsOf returns the codes of the organizations a user belongs to.
	OrganizationsOf(ctx context.Context, userID string) ([]string, error)
}

// Notifier receives journal status-changed events. Fire-and-forget: a failing
// notifier never rolls back a committed transition.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload map[string]any) error
}

// RouteLoader resolves an active route's execution graph. Implemented by the
// route service, which caches graphs since an activated route is immutable
// configuration for any journal already using it.
type RouteLoader interface {
	Graph(ctx context.Context, routeCode string) (*RouteGraph, error)
}
