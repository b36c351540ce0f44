package digest

import (
	"context"
	"fmt"

	"github.com/k3a/html2text"

	"roomdigest/internal/types"
)

// Context window pulled in around each triggering event. Only the leading
// context survives into the rendered digest; the trailing window is fetched
// so the store can position the trigger correctly but is never rendered,
// because messages after the trigger belong to the next notification.
const (
	contextBefore = 1
	contextAfter  = 1
)

// buildRoomDigest assembles the per-room section of the digest: the room
// title, its deterministic hash, the invite flag, and the merged message runs
// for every notification in the room.
//
// The recipient must have a membership event in the room's current state; a
// notification for a room the recipient has no membership in violates the
// engine's input contract and fails the whole build.
func (b *Builder) buildRoomDigest(
	ctx context.Context,
	roomID string,
	userID string,
	notifs []types.NotificationRecord,
	state types.StateMap,
	notifEvents map[string]*types.Event,
) (types.RoomDigest, error) {
	memberEventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: userID}]
	if !ok {
		return types.RoomDigest{}, types.NewAppErrorWithDetails(
			types.ErrCodeContractMembershipMissing,
			"recipient has no membership event in notified room",
			nil,
			map[string]any{"room_id": roomID, "user_id": userID},
		)
	}
	memberEvent, err := b.store.GetEvent(ctx, memberEventID)
	if err != nil {
		return types.RoomDigest{}, fmt.Errorf("resolve recipient membership: %w", err)
	}

	title, err := b.calculateRoomName(ctx, state, userID, true)
	if err != nil {
		return types.RoomDigest{}, err
	}

	room := types.RoomDigest{
		RoomID: roomID,
		Title:  title,
		Hash:   OrdinalTotal(roomID),
		Invite: memberEvent.Membership() == types.MembershipInvite,
		Link:   b.links.RoomLink(roomID),
	}

	// Invites render as a title and a join link only; the recipient cannot
	// see the room's messages yet.
	if room.Invite {
		return room, nil
	}

	for _, n := range notifs {
		trigger, ok := notifEvents[n.EventID]
		if !ok {
			b.logger.Warn("notified event missing from store, skipping",
				"room_id", n.RoomID, "event_id", n.EventID)
			continue
		}
		run, err := b.buildRun(ctx, userID, state, n, trigger)
		if err != nil {
			return types.RoomDigest{}, err
		}
		room.Runs = appendRun(room.Runs, run)
	}

	return room, nil
}

// buildRun expands a single notification into a message run: the visible
// leading context followed by the triggering event itself, each rendered as a
// MessageGroup. The run links to the triggering event.
func (b *Builder) buildRun(
	ctx context.Context,
	userID string,
	state types.StateMap,
	n types.NotificationRecord,
	trigger *types.Event,
) (types.MessageRun, error) {
	ec, err := b.store.EventsAround(ctx, n.RoomID, n.EventID, contextBefore, contextAfter)
	if err != nil {
		return types.MessageRun{}, fmt.Errorf("fetch context for event %s: %w", n.EventID, err)
	}

	visible, err := b.visibility.FilterVisible(ctx, userID, ec.Before)
	if err != nil {
		return types.MessageRun{}, fmt.Errorf("filter context for event %s: %w", n.EventID, err)
	}

	run := types.MessageRun{
		Link: b.links.EventLink(n.RoomID, n.EventID),
		TS:   n.ReceivedTS,
	}

	for _, ev := range visible {
		group, ok, err := b.messageGroup(ctx, state, ev, n.EventID)
		if err != nil {
			return types.MessageRun{}, err
		}
		if ok {
			run.Messages = append(run.Messages, group)
		}
	}

	group, ok, err := b.messageGroup(ctx, state, trigger, n.EventID)
	if err != nil {
		return types.MessageRun{}, err
	}
	if ok {
		run.Messages = append(run.Messages, group)
	}

	return run, nil
}

// messageGroup renders one timeline event into the digest view model. Events
// that are not messages return ok=false and are dropped from the run. The
// sender's display name and avatar come from their membership event in the
// room's current state; a sender with no membership there falls back to the
// bare user ID.
func (b *Builder) messageGroup(ctx context.Context, state types.StateMap, ev *types.Event, triggerEventID string) (types.MessageGroup, bool, error) {
	if ev.Type != types.EventTypeMessage {
		return types.MessageGroup{}, false, nil
	}

	group := types.MessageGroup{
		EventID:      ev.ID,
		TS:           ev.OriginTS,
		IsHistorical: ev.ID != triggerEventID,
		SenderName:   ev.Sender,
		SenderHash:   OrdinalTotal(ev.Sender),
		MsgType:      ev.ContentString("msgtype"),
		Format:       ev.ContentString("format"),
	}

	if memberEventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: ev.Sender}]; ok {
		memberEvent, err := b.store.GetEvent(ctx, memberEventID)
		if err != nil {
			return types.MessageGroup{}, false, fmt.Errorf("resolve sender membership: %w", err)
		}
		group.SenderName = memberName(memberEvent)
		group.SenderAvatarURL = memberEvent.ContentString("avatar_url")
	}

	switch group.MsgType {
	case types.MsgTypeImage:
		group.ImageURL = ev.ContentString("url")
	default:
		b.addTextBody(&group, ev)
	}

	return group, true, nil
}

// addTextBody fills the HTML and plain-text renderings of a message body.
// Rich-text bodies must declare the HTML format to be rendered from
// formatted_body; everything else is treated as plain text, escaped and
// linkified. The plain rendering prefers the author-supplied body and only
// falls back to stripping the HTML when no plain body was sent.
func (b *Builder) addTextBody(group *types.MessageGroup, ev *types.Event) {
	body := ev.ContentString("body")
	formatted := ev.ContentString("formatted_body")

	if group.Format == types.FormatHTML && formatted != "" {
		group.BodyHTML = b.sanitizer.SafeHTML(formatted)
		if body != "" {
			group.BodyTextPlain = body
		} else {
			group.BodyTextPlain = html2text.HTML2Text(formatted)
		}
		return
	}

	group.BodyHTML = b.sanitizer.EscapeAndLinkify(body)
	group.BodyTextPlain = body
}
