package digest

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"roomdigest/internal/types"
)

// DefaultStateFetchLimit caps how many room-state fetches run concurrently
// during a digest build. Interactive paths elsewhere run wider; email digests
// are latency-insensitive so we deliberately keep this small.
const DefaultStateFetchLimit = 3

// FetchRoomStates resolves the current state of every room in roomIDs,
// admitting at most limit concurrent fetches. The returned map is complete
// and keyed by room ID before the function returns.
//
// A single room's failure aborts the whole fetch: a digest rendered from
// partial state could silently omit rooms the recipient never learns are
// missing, which is worse than no digest. The caller treats the error as a
// failure of the entire build (retried at the job level, never partially
// rendered). Cancelling ctx abandons outstanding fetches.
func FetchRoomStates(ctx context.Context, store StateStore, roomIDs []string, limit int) (map[string]types.StateMap, error) {
	if limit <= 0 {
		limit = DefaultStateFetchLimit
	}

	states := make(map[string]types.StateMap, len(roomIDs))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, roomID := range roomIDs {
		roomID := roomID
		g.Go(func() error {
			state, err := store.CurrentStateIDs(gCtx, roomID)
			if err != nil {
				return fmt.Errorf("fetch state for room %s: %w", roomID, err)
			}
			mu.Lock()
			states[roomID] = state
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return states, nil
}
