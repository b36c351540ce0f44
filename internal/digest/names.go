package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"roomdigest/internal/types"
)

// maxNamedMembers caps how many member names are listed verbatim when a room
// description or sender list is synthesized; the remainder collapses into an
// "and N others" suffix so subject lines stay bounded.
const maxNamedMembers = 2

// calculateRoomName resolves a human-readable name for a room from its state.
//
// Resolution order: explicit room name, then canonical alias. When neither is
// set and fallbackToMembers is true, a description is synthesized from the
// other members' display names ("Alice and Bob", "Alice, Bob and 2 others").
// Callers that must not receive a synthesized description (the summary line
// avoids "new message from Bob in the Bob room") pass fallbackToMembers false
// and get "" instead.
func (b *Builder) calculateRoomName(ctx context.Context, state types.StateMap, userID string, fallbackToMembers bool) (string, error) {
	if nameEventID, ok := state[types.StateKey{Type: types.EventTypeName}]; ok {
		ev, err := b.store.GetEvent(ctx, nameEventID)
		if err != nil {
			return "", fmt.Errorf("resolve room name event: %w", err)
		}
		if name := ev.ContentString("name"); name != "" {
			return name, nil
		}
	}

	if aliasEventID, ok := state[types.StateKey{Type: types.EventTypeCanonicalAlias}]; ok {
		ev, err := b.store.GetEvent(ctx, aliasEventID)
		if err != nil {
			return "", fmt.Errorf("resolve canonical alias event: %w", err)
		}
		if alias := ev.ContentString("alias"); alias != "" {
			return alias, nil
		}
	}

	if !fallbackToMembers {
		return "", nil
	}

	names, err := b.otherMemberNames(ctx, state, userID)
	if err != nil {
		return "", err
	}
	return joinNames(names), nil
}

// otherMemberNames collects the display names of the room's joined or invited
// members other than the recipient, sorted case-insensitively so the
// synthesized description is deterministic regardless of state-map iteration
// order.
func (b *Builder) otherMemberNames(ctx context.Context, state types.StateMap, userID string) ([]string, error) {
	var memberEventIDs []string
	for key, eventID := range state {
		if key.Type != types.EventTypeMember || key.Key == userID {
			continue
		}
		memberEventIDs = append(memberEventIDs, eventID)
	}
	if len(memberEventIDs) == 0 {
		return nil, nil
	}

	events, err := b.store.GetEvents(ctx, memberEventIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve member events: %w", err)
	}

	var names []string
	for _, ev := range events {
		switch ev.Membership() {
		case types.MembershipJoin, types.MembershipInvite:
			names = append(names, memberName(ev))
		}
	}

	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

// memberName returns the display name carried by a member event, falling back
// to the member's user ID when no display name is set.
func memberName(ev *types.Event) string {
	if name := ev.ContentString("displayname"); name != "" {
		return name
	}
	if ev.StateKey != "" {
		return ev.StateKey
	}
	return ev.Sender
}

// joinNames builds the human join-list for a set of names: up to
// maxNamedMembers names verbatim, the rest collapsed into "and N others".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}

	others := len(names) - maxNamedMembers
	suffix := "others"
	if others == 1 {
		suffix = "other"
	}
	return fmt.Sprintf("%s, %s and %d %s", names[0], names[1], others, suffix)
}
