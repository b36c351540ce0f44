// Package types defines the shared domain model for the room-digest mailer:
// timeline events, room state snapshots, the per-recipient digest view model,
// and the error/logging primitives used across all layers.
package types

import "html/template"

// Event type identifiers for the state and timeline events the digest engine
// inspects. The wire vocabulary follows the federated protocol the homeserver
// speaks.
const (
	EventTypeMessage        = "m.room.message"
	EventTypeMember         = "m.room.member"
	EventTypeName           = "m.room.name"
	EventTypeCanonicalAlias = "m.room.canonical_alias"
	EventTypeCreate         = "m.room.create"
)

// Membership values carried in m.room.member event content.
const (
	MembershipInvite = "invite"
	MembershipJoin   = "join"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
)

// Message content kinds the engine specializes for. Unknown kinds still
// produce a message entry with the generic fields populated.
const (
	MsgTypeText  = "m.text"
	MsgTypeImage = "m.image"
)

// FormatHTML is the declared content format for rich-text message bodies.
// Only bodies declaring this format are rendered from formatted_body; anything
// else falls back to the plain body.
const FormatHTML = "org.matrix.custom.html"

// StateKey identifies a single piece of room state: the event type plus the
// state key (e.g. the user ID for membership events, "" for room name).
type StateKey struct {
	Type string
	Key  string
}

// StateMap is the resolved current state of one room at digest-build time,
// mapping each (type, state_key) pair to the event ID that currently holds
// that state. It is owned by a single digest build and never cached across
// requests.
type StateMap map[StateKey]string

// Event is a single timeline or state event as read from the store.
// Content is the decoded JSON content object; use ContentString for the
// common case of optional string fields.
type Event struct {
	ID       string         `json:"event_id"`
	RoomID   string         `json:"room_id"`
	Type     string         `json:"type"`
	Sender   string         `json:"sender"`
	StateKey string         `json:"state_key,omitempty"`
	OriginTS int64          `json:"origin_server_ts"`
	Content  map[string]any `json:"content"`
}

// ContentString returns the string value of a content field, or "" when the
// field is absent or not a string.
func (e *Event) ContentString(key string) string {
	if e.Content == nil {
		return ""
	}
	v, ok := e.Content[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Membership returns the membership value of a member event, or "" for
// non-member events.
func (e *Event) Membership() string {
	return e.ContentString("membership")
}

// EventContext is the window of timeline events surrounding a triggering
// event, as returned by the store. Before is ordered oldest-first; After is
// ordered oldest-first as well.
type EventContext struct {
	Before []*Event
	After  []*Event
}

// NotificationRecord is one pending notification for a recipient: the room
// and event that triggered it plus the time the homeserver received it
// (milliseconds since epoch). Records are supplied by the caller and may
// contain duplicates; the engine tolerates them.
type NotificationRecord struct {
	RoomID     string `json:"room_id" validate:"required"`
	EventID    string `json:"event_id" validate:"required"`
	ReceivedTS int64  `json:"received_ts"`
}

// MessageGroup is one rendered message inside a room digest. IsHistorical
// marks context pulled in around a trigger for readability; the event that
// actually fired the notification carries IsHistorical=false. BodyHTML is
// sanitized before it is stored here, which is why it is typed template.HTML.
type MessageGroup struct {
	EventID         string
	TS              int64
	IsHistorical    bool
	SenderName      string
	SenderHash      int
	SenderAvatarURL string
	MsgType         string
	Format          string
	BodyHTML        template.HTML
	BodyTextPlain   string
	ImageURL        string
}

// MessageRun is one contiguous run of messages within a room digest. Each
// notification initially produces its own run; the merge pass folds runs
// whose context windows overlap into a single run.
type MessageRun struct {
	Link     string
	TS       int64
	Messages []MessageGroup
}

// RoomDigest is the per-room section of the digest view model. Title is empty
// when the room has no usable name. Hash is a deterministic value derived from
// the room ID, used by templates to pick a default room image. Invite rooms
// render with title and link only; Runs stays empty for them.
type RoomDigest struct {
	RoomID string
	Title  string
	Hash   int
	Invite bool
	Link   string
	Runs   []MessageRun
}

// DigestReason identifies the notification that triggered this digest cycle.
// RoomName is resolved during the build (with member-name fallback) and drives
// the multi-room summary line.
type DigestReason struct {
	RoomID     string `json:"room_id" validate:"required"`
	ReceivedTS int64  `json:"received_ts"`
	RoomName   string `json:"-"`
}

// DigestMail is the complete view model handed to the template renderer:
// one email for one recipient.
type DigestMail struct {
	AppName         string
	RecipientName   string
	SummaryText     string
	Rooms           []RoomDigest
	Reason          DigestReason
	UnsubscribeLink string
}

// SenderIdentity is the From identity used when transmitting email.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput carries pre-rendered email content to an EmailProvider.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}
