package digest

import "roomdigest/internal/types"

// appendRun appends a notification's message run to a room's accumulated
// runs, merging it into the last run when their context windows overlap.
//
// Adjacent triggers share context: notification N's trailing context may be
// the very event that triggered notification N+1, and N+1's leading context
// may be N's trigger. Naive concatenation would render those messages twice.
// Only the most recently appended run is a merge candidate; merging is
// local, not global.
//
// For each message in next:
//   - already present in the last run: it is a duplicate. If this occurrence
//     is the actual trigger (IsHistorical=false), the existing entry is
//     rebuilt with the flag cleared, since a message first seen as context
//     and later confirmed as a trigger must not render as historical. The
//     run is now merging.
//   - absent and merging: the message extends the same contiguous run, so it
//     is appended to the last run.
//   - absent and not merging: nothing overlapped, so next starts a genuinely
//     disjoint run and is appended as a new entry.
//
// This relies on notifications being processed in chronological order;
// out-of-order input produces undefined merge results.
func appendRun(runs []types.MessageRun, next types.MessageRun) []types.MessageRun {
	if len(runs) > 0 && len(runs[len(runs)-1].Messages) > 0 {
		prev := &runs[len(runs)-1]
		merging := false

		for _, m := range next.Messages {
			idx := indexOfEvent(prev.Messages, m.EventID)
			if idx >= 0 {
				if !m.IsHistorical {
					updated := prev.Messages[idx]
					updated.IsHistorical = false
					prev.Messages[idx] = updated
				}
				merging = true
			} else if merging {
				prev.Messages = append(prev.Messages, m)
			}
		}

		if merging {
			return runs
		}
	}

	return append(runs, next)
}

// indexOfEvent returns the index of the message with the given event ID, or
// -1 when absent.
func indexOfEvent(messages []types.MessageGroup, eventID string) int {
	for i := range messages {
		if messages[i].EventID == eventID {
			return i
		}
	}
	return -1
}
