package digest

import (
	"context"
	"fmt"

	"roomdigest/internal/types"
)

// Builder runs the digest pipeline for one recipient at a time. It is safe
// for concurrent use; all state lives in the per-call frames.
type Builder struct {
	store      StateStore
	visibility VisibilityFilter
	profiles   ProfileStore
	sanitizer  Sanitizer
	tokens     TokenIssuer
	links      LinkBuilder
	appName    string
	fetchLimit int
	logger     types.Logger
}

// BuilderConfig carries the collaborators and settings for a Builder. Store,
// Visibility, Profiles, Sanitizer, Tokens, and Logger are required; AppName
// defaults to "Matrix" and FetchLimit to DefaultStateFetchLimit.
type BuilderConfig struct {
	Store      StateStore
	Visibility VisibilityFilter
	Profiles   ProfileStore
	Sanitizer  Sanitizer
	Tokens     TokenIssuer
	Links      LinkBuilder
	AppName    string
	FetchLimit int
	Logger     types.Logger
}

// NewBuilder constructs a Builder from its configuration.
func NewBuilder(cfg BuilderConfig) *Builder {
	appName := cfg.AppName
	if appName == "" {
		appName = "Matrix"
	}
	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = DefaultStateFetchLimit
	}
	return &Builder{
		store:      cfg.Store,
		visibility: cfg.Visibility,
		profiles:   cfg.Profiles,
		sanitizer:  cfg.Sanitizer,
		tokens:     cfg.Tokens,
		links:      cfg.Links,
		appName:    appName,
		fetchLimit: fetchLimit,
		logger:     cfg.Logger,
	}
}

// BuildDigest runs the full aggregation pipeline for one job and returns the
// complete mail view model. It never sends anything; rendering and transport
// belong to the mailer.
//
// Any collaborator failure aborts the build with an error so the job can be
// retried whole; a partially rendered digest is never returned.
func (b *Builder) BuildDigest(ctx context.Context, job *types.DigestJob) (*types.DigestMail, error) {
	if len(job.Batch) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJob, "digest job has an empty notification batch", nil)
	}

	roomsInOrder, byRoom := GroupByRoom(job.Batch)

	notifEvents, err := b.fetchNotifiedEvents(ctx, job.Batch)
	if err != nil {
		return nil, err
	}

	states, err := FetchRoomStates(ctx, b.store, roomsInOrder, b.fetchLimit)
	if err != nil {
		return nil, err
	}

	recipientName := job.UserID
	if name, err := b.profiles.DisplayName(ctx, job.UserID); err != nil {
		b.logger.Warn("failed to resolve recipient display name, using user ID",
			"user_id", job.UserID, "error", err)
	} else if name != "" {
		recipientName = name
	}

	rooms := make([]types.RoomDigest, 0, len(roomsInOrder))
	for _, roomID := range roomsInOrder {
		room, err := b.buildRoomDigest(ctx, roomID, job.UserID, byRoom[roomID], states[roomID], notifEvents)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	reason := job.Reason
	if state, ok := states[reason.RoomID]; ok {
		name, err := b.calculateRoomName(ctx, state, job.UserID, true)
		if err != nil {
			return nil, err
		}
		reason.RoomName = name
	}

	summary, err := b.composeSummary(ctx, job.UserID, roomsInOrder, byRoom, notifEvents, states, reason)
	if err != nil {
		return nil, err
	}

	token, err := b.tokens.UnsubscribeToken(job.UserID)
	if err != nil {
		return nil, fmt.Errorf("mint unsubscribe token: %w", err)
	}

	return &types.DigestMail{
		AppName:         b.appName,
		RecipientName:   recipientName,
		SummaryText:     summary.Render(b.appName),
		Rooms:           rooms,
		Reason:          reason,
		UnsubscribeLink: b.links.UnsubscribeLink(token, job.AppID, job.EmailAddress),
	}, nil
}

// fetchNotifiedEvents loads every distinct notified event in one batch read.
// Events missing from the store are absent from the map; the per-room build
// logs and skips those notifications rather than failing the digest.
func (b *Builder) fetchNotifiedEvents(ctx context.Context, batch []types.NotificationRecord) (map[string]*types.Event, error) {
	seen := make(map[string]struct{}, len(batch))
	ids := make([]string, 0, len(batch))
	for _, n := range batch {
		if _, dup := seen[n.EventID]; dup {
			continue
		}
		seen[n.EventID] = struct{}{}
		ids = append(ids, n.EventID)
	}

	events, err := b.store.GetEvents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch notified events: %w", err)
	}
	return events, nil
}
