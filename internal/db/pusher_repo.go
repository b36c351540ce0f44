package db

import (
	"context"

	"roomdigest/internal/types"
)

// PusherRepository provides data access for the pushers table: the registry
// of per-user email digest subscriptions.
type PusherRepository struct {
	db DBTX
}

// NewPusherRepository creates a PusherRepository backed by the given database
// connection (pool or transaction).
func NewPusherRepository(db DBTX) *PusherRepository {
	return &PusherRepository{db: db}
}

// Delete removes one pusher identified by owner, app, and pushkey. Returns
// ErrCodeNotFoundPusher when no such pusher exists, so unsubscribe links can
// distinguish "already gone" from "removed".
func (r *PusherRepository) Delete(ctx context.Context, userID, appID, pushkey string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM pushers WHERE user_id = $1 AND app_id = $2 AND pushkey = $3`,
		userID, appID, pushkey,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete pusher", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPusher, "pusher not found", nil)
	}
	return nil
}
