package digest

import (
	"context"
	"fmt"

	"roomdigest/internal/types"
)

// SummaryKind enumerates the subject-line variants. The set is closed: every
// variant declares which fields it consumes, so a missing field is a bug
// caught in review and tests rather than a mangled subject at send time.
type SummaryKind int

const (
	// SummaryMessageFromPersonInRoom: one room, one notification, both the
	// sender and the room name resolved.
	SummaryMessageFromPersonInRoom SummaryKind = iota

	// SummaryMessageFromPerson: one room, one notification, sender resolved
	// but the room has no explicit name.
	SummaryMessageFromPerson

	// SummaryMessagesInRoom: one room with several notifications and an
	// explicit room name.
	SummaryMessagesInRoom

	// SummaryMessagesFromPerson: one unnamed room with several notifications;
	// Person carries the join-list of distinct senders.
	SummaryMessagesFromPerson

	// SummaryMessagesInRoomAndOthers: several rooms, the reason room has a
	// resolvable name.
	SummaryMessagesInRoomAndOthers

	// SummaryMessagesFromPersonAndOthers: several rooms, the reason room is
	// unnamed; Person carries the join-list of its distinct senders.
	SummaryMessagesFromPersonAndOthers

	// SummaryInviteFromPerson: the sole notified room is an invite and the
	// room has no name.
	SummaryInviteFromPerson

	// SummaryInviteFromPersonToRoom: the sole notified room is an invite to a
	// named room.
	SummaryInviteFromPersonToRoom
)

// Summary is the composed subject-line decision: the variant plus the fields
// it renders with. Person and Room are only consulted by the variants that
// declare them.
type Summary struct {
	Kind   SummaryKind
	Person string
	Room   string
}

// Render produces the final subject/summary string for the given app name.
func (s Summary) Render(appName string) string {
	switch s.Kind {
	case SummaryMessageFromPersonInRoom:
		return fmt.Sprintf("[%s] You have a message on %s from %s in the %s room...", appName, appName, s.Person, s.Room)
	case SummaryMessageFromPerson:
		return fmt.Sprintf("[%s] You have a message on %s from %s...", appName, appName, s.Person)
	case SummaryMessagesInRoom:
		return fmt.Sprintf("[%s] You have messages on %s in the %s room...", appName, appName, s.Room)
	case SummaryMessagesFromPerson:
		return fmt.Sprintf("[%s] You have messages on %s from %s...", appName, appName, s.Person)
	case SummaryMessagesInRoomAndOthers:
		return fmt.Sprintf("[%s] You have messages on %s in the %s room and others...", appName, appName, s.Room)
	case SummaryMessagesFromPersonAndOthers:
		return fmt.Sprintf("[%s] You have messages on %s from %s and others...", appName, appName, s.Person)
	case SummaryInviteFromPerson:
		return fmt.Sprintf("[%s] %s has invited you to chat on %s...", appName, s.Person, appName)
	case SummaryInviteFromPersonToRoom:
		return fmt.Sprintf("[%s] %s has invited you to join the %s room on %s...", appName, s.Person, s.Room, appName)
	default:
		return fmt.Sprintf("[%s] You have new messages on %s...", appName, appName)
	}
}

// composeSummary walks the decision tree over the whole aggregate and picks
// the subject-line variant.
//
// One notified room: invites win, then a single notification names its sender
// (and the room, when the room has an explicit name), then several
// notifications name the room, or the distinct senders when the room is
// unnamed.
// Name resolution here never synthesizes a member-list room description
// (fallbackToMembers=false): "message from Bob in the Bob room" reads wrong.
//
// Several notified rooms: the reason room's name (resolved with member
// fallback during the build) anchors the line; an unnamed reason room falls
// back to its distinct senders.
func (b *Builder) composeSummary(
	ctx context.Context,
	userID string,
	roomsInOrder []string,
	byRoom map[string][]types.NotificationRecord,
	notifEvents map[string]*types.Event,
	states map[string]types.StateMap,
	reason types.DigestReason,
) (Summary, error) {
	if len(roomsInOrder) != 1 {
		return b.composeMultiRoomSummary(ctx, roomsInOrder, byRoom, notifEvents, states, reason)
	}

	roomID := roomsInOrder[0]
	state := states[roomID]
	notifs := byRoom[roomID]

	roomName, err := b.calculateRoomName(ctx, state, userID, false)
	if err != nil {
		return Summary{}, err
	}

	myMemberEventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: userID}]
	if !ok {
		return Summary{}, types.NewAppErrorWithDetails(
			types.ErrCodeContractMembershipMissing,
			"recipient has no membership event in notified room",
			nil,
			map[string]any{"room_id": roomID, "user_id": userID},
		)
	}
	myMember, err := b.store.GetEvent(ctx, myMemberEventID)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve recipient membership: %w", err)
	}

	if myMember.Membership() == types.MembershipInvite {
		inviterName := myMember.Sender
		if inviterEventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: myMember.Sender}]; ok {
			inviterEvent, err := b.store.GetEvent(ctx, inviterEventID)
			if err != nil {
				return Summary{}, fmt.Errorf("resolve inviter membership: %w", err)
			}
			inviterName = memberName(inviterEvent)
		}
		if roomName == "" {
			return Summary{Kind: SummaryInviteFromPerson, Person: inviterName}, nil
		}
		return Summary{Kind: SummaryInviteFromPersonToRoom, Person: inviterName, Room: roomName}, nil
	}

	if len(notifs) == 1 {
		senderName, err := b.notifSenderName(ctx, state, notifs[0], notifEvents)
		if err != nil {
			return Summary{}, err
		}
		switch {
		case senderName != "" && roomName != "":
			return Summary{Kind: SummaryMessageFromPersonInRoom, Person: senderName, Room: roomName}, nil
		case senderName != "":
			return Summary{Kind: SummaryMessageFromPerson, Person: senderName}, nil
		}
		// Neither resolvable: fall through to the several-messages phrasing.
	}

	if roomName != "" {
		return Summary{Kind: SummaryMessagesInRoom, Room: roomName}, nil
	}

	// The room has no name, so say who the messages are from explicitly.
	descriptor, err := b.senderDescriptor(ctx, state, notifs, notifEvents)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Kind: SummaryMessagesFromPerson, Person: descriptor}, nil
}

// composeMultiRoomSummary handles the two-or-more-rooms branch, anchored on
// the reason room that triggered the mail.
func (b *Builder) composeMultiRoomSummary(
	ctx context.Context,
	roomsInOrder []string,
	byRoom map[string][]types.NotificationRecord,
	notifEvents map[string]*types.Event,
	states map[string]types.StateMap,
	reason types.DigestReason,
) (Summary, error) {
	if reason.RoomName != "" {
		return Summary{Kind: SummaryMessagesInRoomAndOthers, Room: reason.RoomName}, nil
	}

	// Anchor sender resolution on the reason room; if the reason references
	// a room absent from the batch, fall back to the most recent room.
	anchorRoom := reason.RoomID
	if _, ok := byRoom[anchorRoom]; !ok && len(roomsInOrder) > 0 {
		anchorRoom = roomsInOrder[0]
	}

	descriptor, err := b.senderDescriptor(ctx, states[anchorRoom], byRoom[anchorRoom], notifEvents)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Kind: SummaryMessagesFromPersonAndOthers, Person: descriptor}, nil
}

// notifSenderName resolves the display name of the sender of a single
// notification's event, or "" when the sender's membership is not in the
// room state.
func (b *Builder) notifSenderName(ctx context.Context, state types.StateMap, n types.NotificationRecord, notifEvents map[string]*types.Event) (string, error) {
	ev, ok := notifEvents[n.EventID]
	if !ok {
		return "", nil
	}
	memberEventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: ev.Sender}]
	if !ok {
		return "", nil
	}
	memberEvent, err := b.store.GetEvent(ctx, memberEventID)
	if err != nil {
		return "", fmt.Errorf("resolve sender membership: %w", err)
	}
	return memberName(memberEvent), nil
}

// senderDescriptor builds the join-list of the distinct senders behind a
// room's notifications, in first-seen order, each resolved through their
// membership event when available.
func (b *Builder) senderDescriptor(ctx context.Context, state types.StateMap, notifs []types.NotificationRecord, notifEvents map[string]*types.Event) (string, error) {
	seen := make(map[string]struct{})
	var senders []string
	for _, n := range notifs {
		ev, ok := notifEvents[n.EventID]
		if !ok {
			continue
		}
		if _, dup := seen[ev.Sender]; dup {
			continue
		}
		seen[ev.Sender] = struct{}{}
		senders = append(senders, ev.Sender)
	}

	memberEventIDs := make([]string, 0, len(senders))
	for _, sender := range senders {
		if eventID, ok := state[types.StateKey{Type: types.EventTypeMember, Key: sender}]; ok {
			memberEventIDs = append(memberEventIDs, eventID)
		}
	}
	memberEvents, err := b.store.GetEvents(ctx, memberEventIDs)
	if err != nil {
		return "", fmt.Errorf("resolve sender memberships: %w", err)
	}

	memberBySender := make(map[string]*types.Event, len(memberEvents))
	for _, ev := range memberEvents {
		memberBySender[ev.StateKey] = ev
	}

	names := make([]string, 0, len(senders))
	for _, sender := range senders {
		if ev, ok := memberBySender[sender]; ok {
			names = append(names, memberName(ev))
		} else {
			names = append(names, sender)
		}
	}
	return joinNames(names), nil
}
