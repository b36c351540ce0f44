package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomdigest/internal/types"
)

func TestPusherRepository_Delete_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPusherRepository(dbx)
	ctx := context.Background()

	dbx.On("Exec", ctx, mock.AnythingOfType("string"), []any{"@me:hs", "m.email", "me@example.com"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(ctx, "@me:hs", "m.email", "me@example.com")
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}

func TestPusherRepository_Delete_NotFound(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPusherRepository(dbx)
	ctx := context.Background()

	dbx.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(ctx, "@me:hs", "m.email", "gone@example.com")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPusher, appErr.Code)
}

func TestPusherRepository_Delete_DBError(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPusherRepository(dbx)
	ctx := context.Background()

	dbx.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection reset"))

	err := repo.Delete(ctx, "@me:hs", "m.email", "me@example.com")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
	assert.True(t, types.Retryable(err))
}
