// Package digest implements the notification digest aggregation engine: it
// takes a recipient's flat batch of pending notifications, resolves each
// room's current state with bounded concurrency, merges overlapping context
// windows, orders rooms and messages deterministically, and produces the
// summary line plus the per-room view model handed to the email renderer.
//
// The engine is deterministic and side-effect-free given the same inputs; all
// collaborators (state store, visibility policy, sanitizer, token issuer) are
// passed in as capabilities so the whole pipeline is testable with fakes.
package digest

import (
	"context"
	"html/template"

	"roomdigest/internal/types"
)

// StateStore is the read-only view of the event/state store the engine needs.
// Implementations live outside this package (see internal/db for the
// PostgreSQL-backed one).
type StateStore interface {
	// CurrentStateIDs returns the current state of the room keyed by
	// (type, state_key). Fails with a not_found_room AppError when the room
	// is unknown.
	CurrentStateIDs(ctx context.Context, roomID string) (types.StateMap, error)

	// GetEvent fetches a single event by ID. Fails with not_found_event when
	// the event does not exist.
	GetEvent(ctx context.Context, eventID string) (*types.Event, error)

	// GetEvents fetches a set of events by ID. Missing IDs are simply absent
	// from the returned map; that is not an error.
	GetEvents(ctx context.Context, eventIDs []string) (map[string]*types.Event, error)

	// EventsAround returns up to before/after timeline events surrounding the
	// given event in its room, both slices ordered oldest-first.
	EventsAround(ctx context.Context, roomID, eventID string, before, after int) (*types.EventContext, error)
}

// VisibilityFilter removes events the recipient is not permitted to see
// (redacted content, history from before they joined).
type VisibilityFilter interface {
	FilterVisible(ctx context.Context, userID string, events []*types.Event) ([]*types.Event, error)
}

// ProfileStore resolves user display names. DisplayName returns "" (with a
// nil error) when the user has not set one.
type ProfileStore interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Sanitizer renders untrusted message bodies into HTML that is safe to embed
// in the digest email.
type Sanitizer interface {
	// SafeHTML sanitizes an HTML-formatted body against the allow-list.
	SafeHTML(raw string) template.HTML

	// EscapeAndLinkify escapes a plain-text body and wraps URLs in anchors.
	EscapeAndLinkify(raw string) template.HTML
}

// TokenIssuer mints the signed access token embedded in unsubscribe links.
type TokenIssuer interface {
	UnsubscribeToken(userID string) (string, error)
}
