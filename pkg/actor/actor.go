// Package actor identifies the staff member performing an action.
//
// The acting staff member travels in the request context, set per request
// from gateway headers. It is never kept in process-global state.
package actor

import (
	"context"
	"fmt"
)

// Actor represents the staff member performing an action.
type Actor struct {
	// StaffID references the local staff reference table
	StaffID int64 `json:"staff_id"`

	// Name is the display name forwarded by the gateway (optional)
	Name string `json:"name,omitempty"`

	// Role is the staff role forwarded by the gateway (optional)
	Role string `json:"role,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Name == "" {
		return fmt.Sprintf("staff#%d", a.StaffID)
	}
	return fmt.Sprintf("%s (staff#%d)", a.Name, a.StaffID)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// StaffID returns the acting staff id, or 0 when no actor is present.
func StaffID(ctx context.Context) int64 {
	if a := FromContext(ctx); a != nil {
		return a.StaffID
	}
	return 0
}

// StaffRecord is a row of the local staff reference table, kept current
// from staff.employee.* events.
type StaffRecord struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Role   string `json:"role" db:"role"`
	Active bool   `json:"active" db:"active"`
}

// ToActor converts a staff record to an Actor.
func (s *StaffRecord) ToActor() *Actor {
	if s == nil {
		return nil
	}
	return &Actor{StaffID: s.ID, Name: s.Name, Role: s.Role}
}
