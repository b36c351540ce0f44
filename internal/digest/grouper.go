package digest

import (
	"sort"

	"roomdigest/internal/types"
)

// OrdinalTotal returns the sum of the Unicode code points in s. It is used as
// a stable, deterministic pseudo-random selector for default room and sender
// avatars: the same string always hashes to the same image. It has no
// security or collision-resistance properties and needs none.
func OrdinalTotal(s string) int {
	total := 0
	for _, r := range s {
		total += int(r)
	}
	return total
}

// GroupByRoom partitions a notification batch by room and returns the room
// ordering the digest renders in.
//
// The returned room list contains each distinct room ID exactly once, sorted
// by that room's most recent received timestamp descending; rooms with equal
// timestamps keep their first-seen order from the batch (stable sort). The
// returned map preserves the batch's original order within each room, and
// every room in the ordering has a non-empty sublist. An empty batch yields
// an empty ordering.
func GroupByRoom(batch []types.NotificationRecord) ([]string, map[string][]types.NotificationRecord) {
	rooms := make([]string, 0, len(batch))
	byRoom := make(map[string][]types.NotificationRecord, len(batch))

	for _, n := range batch {
		if _, seen := byRoom[n.RoomID]; !seen {
			rooms = append(rooms, n.RoomID)
		}
		byRoom[n.RoomID] = append(byRoom[n.RoomID], n)
	}

	latest := make(map[string]int64, len(byRoom))
	for roomID, notifs := range byRoom {
		for _, n := range notifs {
			if n.ReceivedTS > latest[roomID] {
				latest[roomID] = n.ReceivedTS
			}
		}
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return latest[rooms[i]] > latest[rooms[j]]
	})

	return rooms, byRoom
}
