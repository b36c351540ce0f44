package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"roomdigest/internal/types"
)

// ProfileRepository provides data access for the profiles table. It
// implements the digest engine's ProfileStore.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// DisplayName returns the user's chosen display name, or "" when the user has
// no profile row or has not set one. An unknown user is not an error here;
// the digest falls back to the bare user ID.
func (r *ProfileRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	var displayname *string
	err := r.db.QueryRow(ctx,
		`SELECT displayname FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&displayname)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve profile", err)
	}
	if displayname == nil {
		return "", nil
	}
	return *displayname, nil
}
