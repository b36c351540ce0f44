package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"roomdigest/internal/types"
)

// EventRepository provides read access to the events and current_state_events
// tables. It implements the digest engine's StateStore and VisibilityFilter.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates an EventRepository backed by the given database
// connection (pool or transaction).
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// eventColumns is the standard column set for event queries. Used across all
// query methods to avoid column drift; scanEvent must match this order.
const eventColumns = `e.event_id, e.room_id, e.type, e.sender, e.state_key, e.origin_server_ts, e.content`

// scanEvent scans one event row. state_key is NULL for timeline events and
// content arrives as raw JSON.
func scanEvent(row pgx.Row) (*types.Event, error) {
	var ev types.Event
	var stateKey *string
	var content []byte

	err := row.Scan(&ev.ID, &ev.RoomID, &ev.Type, &ev.Sender, &stateKey, &ev.OriginTS, &content)
	if err != nil {
		return nil, err
	}
	if stateKey != nil {
		ev.StateKey = *stateKey
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &ev.Content); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "malformed event content", err)
		}
	}
	return &ev, nil
}

// CurrentStateIDs returns the room's current state keyed by (type, state_key).
// Returns ErrCodeNotFoundRoom when the room has no state at all.
func (r *EventRepository) CurrentStateIDs(ctx context.Context, roomID string) (types.StateMap, error) {
	rows, err := r.db.Query(ctx,
		`SELECT type, state_key, event_id
		 FROM current_state_events
		 WHERE room_id = $1`,
		roomID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query room state", err)
	}
	defer rows.Close()

	state := types.StateMap{}
	for rows.Next() {
		var eventType, stateKey, eventID string
		if err := rows.Scan(&eventType, &stateKey, &eventID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan room state", err)
		}
		state[types.StateKey{Type: eventType, Key: stateKey}] = eventID
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read room state", err)
	}

	if len(state) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundRoom, "room has no state", nil)
	}
	return state, nil
}

// GetEvent fetches a single event by ID.
// Returns ErrCodeNotFoundEvent when the event does not exist.
func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.event_id = $1`,
		eventID,
	)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve event", err)
	}
	return ev, nil
}

// GetEvents fetches a set of events in one query. Missing IDs are absent from
// the returned map; that is not an error.
func (r *EventRepository) GetEvents(ctx context.Context, eventIDs []string) (map[string]*types.Event, error) {
	out := make(map[string]*types.Event, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.event_id = ANY($1)`,
		eventIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query events", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event", err)
		}
		out[ev.ID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read events", err)
	}
	return out, nil
}

// EventsAround returns up to before/after timeline events surrounding the
// given event in its room, both ordered oldest-first. Position within the
// timeline comes from the room's stream ordering.
func (r *EventRepository) EventsAround(ctx context.Context, roomID, eventID string, before, after int) (*types.EventContext, error) {
	var ordering int64
	err := r.db.QueryRow(ctx,
		`SELECT stream_ordering FROM events WHERE event_id = $1 AND room_id = $2`,
		eventID, roomID,
	).Scan(&ordering)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundEvent, "anchor event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to locate anchor event", err)
	}

	ec := &types.EventContext{}

	if before > 0 {
		beforeEvents, err := r.timelineSlice(ctx,
			`SELECT `+eventColumns+`
			 FROM events e
			 WHERE e.room_id = $1 AND e.stream_ordering < $2
			 ORDER BY e.stream_ordering DESC
			 LIMIT $3`,
			roomID, ordering, before,
		)
		if err != nil {
			return nil, err
		}
		// The query walks backwards; flip to oldest-first.
		for i, j := 0, len(beforeEvents)-1; i < j; i, j = i+1, j-1 {
			beforeEvents[i], beforeEvents[j] = beforeEvents[j], beforeEvents[i]
		}
		ec.Before = beforeEvents
	}

	if after > 0 {
		afterEvents, err := r.timelineSlice(ctx,
			`SELECT `+eventColumns+`
			 FROM events e
			 WHERE e.room_id = $1 AND e.stream_ordering > $2
			 ORDER BY e.stream_ordering ASC
			 LIMIT $3`,
			roomID, ordering, after,
		)
		if err != nil {
			return nil, err
		}
		ec.After = afterEvents
	}

	return ec, nil
}

func (r *EventRepository) timelineSlice(ctx context.Context, query string, args ...any) ([]*types.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query timeline", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan timeline event", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read timeline", err)
	}
	return events, nil
}

// FilterVisible drops events the recipient must not see in an email digest:
// anything that has since been redacted. Events the recipient could not see
// in the client (pre-join history in rooms with restricted visibility) are
// expected to be excluded upstream when the notification is recorded.
func (r *EventRepository) FilterVisible(ctx context.Context, userID string, events []*types.Event) ([]*types.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}

	rows, err := r.db.Query(ctx,
		`SELECT redacts FROM redactions WHERE redacts = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query redactions", err)
	}
	defer rows.Close()

	redacted := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan redaction", err)
		}
		redacted[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read redactions", err)
	}

	visible := make([]*types.Event, 0, len(events))
	for _, ev := range events {
		if _, isRedacted := redacted[ev.ID]; !isRedacted {
			visible = append(visible, ev)
		}
	}
	return visible, nil
}
