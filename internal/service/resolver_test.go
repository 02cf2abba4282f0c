// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/internal/mock"
	"github.com/bazaarlabs/go-market-sync/internal/store"
	"github.com/bazaarlabs/go-market-sync/models"
)

func newTestResolver(t *testing.T, ctrl *gomock.Controller) (ConflictResolver, *mock.MockEntityRepository, *mock.MockConflictRepository) {
	t.Helper()
	entities := mock.NewMockEntityRepository(ctrl)
	conflicts := mock.NewMockConflictRepository(ctrl)
	return NewConflictResolver(entities, conflicts, logger.Nop()), entities, conflicts
}

func listingConflict(localUpdated, remoteUpdated time.Time) models.ConflictInfo {
	return models.ConflictInfo{
		EntityType: models.EntityTypeListing,
		EntityID:   "42",
		Local: models.Entity{
			EntityType:      models.EntityTypeListing,
			ID:              "42",
			Payload:         json.RawMessage(`{"price":100}`),
			Version:         3,
			UpdatedAt:       localUpdated,
			LocallyModified: true,
			PendingSync:     true,
		},
		Remote: models.Entity{
			EntityType: models.EntityTypeListing,
			ID:         "42",
			Payload:    json.RawMessage(`{"price":120}`),
			Version:    4,
			UpdatedAt:  remoteUpdated,
		},
		DetectedAt: time.Now(),
		Status:     models.ConflictStatusPending,
	}
}

func TestDetectConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _ := newTestResolver(t, ctrl)

	local := models.Entity{EntityType: models.EntityTypeListing, ID: "42", Version: 3, LocallyModified: true}
	remote := models.Entity{EntityType: models.EntityTypeListing, ID: "42", Version: 4}

	conflict := resolver.DetectConflict(local, remote)
	require.NotNil(t, conflict)
	assert.Equal(t, models.EntityTypeListing, conflict.EntityType)
	assert.Equal(t, "42", conflict.EntityID)
	assert.Equal(t, models.ConflictStatusPending, conflict.Status)
	assert.False(t, conflict.DetectedAt.IsZero())
}

func TestDetectConflict_NoConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _ := newTestResolver(t, ctrl)

	tests := []struct {
		name   string
		local  models.Entity
		remote models.Entity
	}{
		{
			name:   "clean local copy",
			local:  models.Entity{Version: 3, LocallyModified: false},
			remote: models.Entity{Version: 4},
		},
		{
			name:   "same version",
			local:  models.Entity{Version: 4, LocallyModified: true},
			remote: models.Entity{Version: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, resolver.DetectConflict(tt.local, tt.remote))
		})
	}
}

func TestResolve_LastWriteWins_RemoteNewer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	conflict := listingConflict(now.Add(-time.Hour), now)

	entities.EXPECT().Put(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, ents ...models.Entity) error {
		require.Len(t, ents, 1)
		winner := ents[0]
		assert.Equal(t, json.RawMessage(`{"price":120}`), winner.Payload)
		assert.Equal(t, int64(4), winner.Version)
		assert.False(t, winner.LocallyModified)
		assert.False(t, winner.PendingSync)
		return nil
	})
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.Resolve(ctx, conflict, models.StrategyLastWriteWins)
	require.NoError(t, err)
	assert.Equal(t, int64(4), winner.Version)
}

func TestResolve_LastWriteWins_LocalNewer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	conflict := listingConflict(now, now.Add(-time.Hour))

	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.Resolve(ctx, conflict, models.StrategyLastWriteWins)
	require.NoError(t, err)

	// Local wins: version bumped past the remote so the next push lands.
	assert.Equal(t, json.RawMessage(`{"price":100}`), winner.Payload)
	assert.Equal(t, int64(5), winner.Version)
	assert.False(t, winner.LocallyModified)
	assert.False(t, winner.PendingSync)
}

func TestResolve_LastWriteWins_TieGoesToRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	at := time.Now()
	conflict := listingConflict(at, at)

	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.Resolve(ctx, conflict, models.StrategyLastWriteWins)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"price":120}`), winner.Payload)
}

func TestResolve_ClientWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	conflict := listingConflict(now.Add(-time.Hour), now)

	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.Resolve(ctx, conflict, models.StrategyClientWins)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"price":100}`), winner.Payload)
	assert.Equal(t, int64(5), winner.Version)
}

func TestResolve_ServerWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	conflict := listingConflict(now, now.Add(-time.Hour))

	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.Resolve(ctx, conflict, models.StrategyServerWins)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"price":120}`), winner.Payload)
	assert.Equal(t, int64(4), winner.Version)
}

func TestResolve_Manual_QueuesConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	conflict := listingConflict(time.Now(), time.Now())
	conflicts.EXPECT().Save(ctx, gomock.Any()).Return(nil)

	_, err := resolver.Resolve(ctx, conflict, models.StrategyManual)
	assert.ErrorIs(t, err, ErrConflictUnresolved)
}

func TestResolve_UnknownStrategy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, _ := newTestResolver(t, ctrl)

	_, err := resolver.Resolve(context.Background(), listingConflict(time.Now(), time.Now()), "coin-flip")
	assert.Error(t, err)
}

func TestResolve_Idempotent_RemoveToleratesMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	conflict := listingConflict(time.Now(), time.Now())

	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(store.ErrConflictNotFound)

	_, err := resolver.Resolve(ctx, conflict, models.StrategyServerWins)
	assert.NoError(t, err)
}

func TestManuallyResolve_Local(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	stored := listingConflict(time.Now(), time.Now())
	conflicts.EXPECT().Get(ctx, models.EntityTypeListing, "42").Return(stored, nil)
	entities.EXPECT().Put(ctx, gomock.Any()).Return(nil)
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	winner, err := resolver.ManuallyResolve(ctx, models.EntityTypeListing, "42", models.ChoiceLocal, nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"price":100}`), winner.Payload)
	assert.Equal(t, int64(5), winner.Version)
}

func TestManuallyResolve_Custom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	stored := listingConflict(time.Now(), time.Now())
	custom := json.RawMessage(`{"price":110}`)

	conflicts.EXPECT().Get(ctx, models.EntityTypeListing, "42").Return(stored, nil)
	entities.EXPECT().Put(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, ents ...models.Entity) error {
		require.Len(t, ents, 1)
		merged := ents[0]
		assert.Equal(t, custom, merged.Payload)
		assert.Equal(t, int64(5), merged.Version)
		assert.False(t, merged.LocallyModified)
		assert.True(t, merged.PendingSync, "custom merge must still reach the backend")
		return nil
	})
	conflicts.EXPECT().Remove(ctx, models.EntityTypeListing, "42").Return(nil)

	_, err := resolver.ManuallyResolve(ctx, models.EntityTypeListing, "42", models.ChoiceCustom, custom)
	require.NoError(t, err)
}

func TestManuallyResolve_CustomWithoutPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	conflicts.EXPECT().Get(ctx, models.EntityTypeListing, "42").Return(listingConflict(time.Now(), time.Now()), nil)

	_, err := resolver.ManuallyResolve(ctx, models.EntityTypeListing, "42", models.ChoiceCustom, nil)
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}

func TestManuallyResolve_NoPendingConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, _, conflicts := newTestResolver(t, ctrl)
	ctx := context.Background()

	conflicts.EXPECT().Get(ctx, models.EntityTypeListing, "404").Return(models.ConflictInfo{}, store.ErrConflictNotFound)

	_, err := resolver.ManuallyResolve(ctx, models.EntityTypeListing, "404", models.ChoiceRemote, nil)
	assert.ErrorIs(t, err, store.ErrConflictNotFound)
}

func TestResolve_PutFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver, entities, _ := newTestResolver(t, ctrl)
	ctx := context.Background()

	boom := errors.New("disk full")
	entities.EXPECT().Put(ctx, gomock.Any()).Return(boom)

	_, err := resolver.Resolve(ctx, listingConflict(time.Now(), time.Now()), models.StrategyServerWins)
	assert.ErrorIs(t, err, boom)
}
