package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

func run(link string, ts int64, messages ...types.MessageGroup) types.MessageRun {
	return types.MessageRun{Link: link, TS: ts, Messages: messages}
}

func msg(eventID string, historical bool) types.MessageGroup {
	return types.MessageGroup{EventID: eventID, IsHistorical: historical}
}

func eventIDs(messages []types.MessageGroup) []string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.EventID
	}
	return ids
}

func TestAppendRun_FirstRun(t *testing.T) {
	runs := appendRun(nil, run("l1", 10, msg("$a", true), msg("$b", false)))
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"$a", "$b"}, eventIDs(runs[0].Messages))
}

func TestAppendRun_DisjointRunsStaySeparate(t *testing.T) {
	runs := appendRun(nil, run("l1", 10, msg("$a", true), msg("$b", false)))
	runs = appendRun(runs, run("l2", 20, msg("$c", true), msg("$d", false)))

	require.Len(t, runs, 2)
	assert.Equal(t, []string{"$a", "$b"}, eventIDs(runs[0].Messages))
	assert.Equal(t, []string{"$c", "$d"}, eventIDs(runs[1].Messages))
}

func TestAppendRun_OverlappingContextMerges(t *testing.T) {
	// Notification 1 renders context $a then its trigger $b. Notification 2's
	// context window reaches back to $b, so the two runs are one conversation.
	runs := appendRun(nil, run("l1", 10, msg("$a", true), msg("$b", false)))
	runs = appendRun(runs, run("l2", 20, msg("$b", true), msg("$c", false)))

	require.Len(t, runs, 1)
	assert.Equal(t, []string{"$a", "$b", "$c"}, eventIDs(runs[0].Messages))
	assert.False(t, runs[0].Messages[1].IsHistorical, "trigger seen again as context must stay a trigger")
	assert.False(t, runs[0].Messages[2].IsHistorical)
}

func TestAppendRun_ContextLaterConfirmedAsTrigger(t *testing.T) {
	// $b first arrives as context around $a's notification, then shows up as
	// the trigger of its own notification. The merged entry must drop the
	// historical flag.
	runs := appendRun(nil, run("l1", 10, msg("$a", false), msg("$b", true)))
	runs = appendRun(runs, run("l2", 20, msg("$b", false)))

	require.Len(t, runs, 1)
	assert.Equal(t, []string{"$a", "$b"}, eventIDs(runs[0].Messages))
	assert.False(t, runs[0].Messages[1].IsHistorical)
}

func TestAppendRun_FullOverlapIsIdempotent(t *testing.T) {
	first := run("l1", 10, msg("$a", true), msg("$b", false))
	runs := appendRun(nil, first)
	runs = appendRun(runs, run("l1", 10, msg("$a", true), msg("$b", false)))

	require.Len(t, runs, 1)
	assert.Equal(t, []string{"$a", "$b"}, eventIDs(runs[0].Messages))
}

func TestAppendRun_OnlyLastRunIsMergeCandidate(t *testing.T) {
	runs := appendRun(nil, run("l1", 10, msg("$a", false)))
	runs = appendRun(runs, run("l2", 20, msg("$b", false)))
	// Overlaps the first run, not the last: appended as a new run.
	runs = appendRun(runs, run("l3", 30, msg("$a", true), msg("$c", false)))

	require.Len(t, runs, 3)
	assert.Equal(t, []string{"$a", "$c"}, eventIDs(runs[2].Messages))
}

func TestAppendRun_EmptyLastRunAppends(t *testing.T) {
	runs := []types.MessageRun{{Link: "l1", TS: 10}}
	runs = appendRun(runs, run("l2", 20, msg("$a", false)))

	require.Len(t, runs, 2)
}
