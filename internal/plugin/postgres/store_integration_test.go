//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stockroom/stockroom/internal/plugin"
	"github.com/stockroom/stockroom/internal/plugin/postgres"
	"github.com/stockroom/stockroom/internal/store"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("test"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := store.NewPool(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	recordStore := postgres.NewStore(pool)

	// Before migrations the store must report not-ready, not a plain error.
	_, _, err = recordStore.GetOrCreate(ctx, "sample", "Sample")
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrStoreNotReady)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()
	require.NoError(t, migrator.Up())

	rec, created, err := recordStore.GetOrCreate(ctx, "sample", "Sample")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, rec.Active)

	// Second get-or-create for the same slug must not create a new row.
	rec, created, err = recordStore.GetOrCreate(ctx, "sample", "Sample")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, recordStore.SetActive(ctx, "sample", true))
	rec, _, err = recordStore.GetOrCreate(ctx, "sample", "Sample")
	require.NoError(t, err)
	assert.True(t, rec.Active)

	require.NoError(t, recordStore.SetFault(ctx, "sample", "01JC0000000000000000000000", "boom"))

	records, err := recordStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "01JC0000000000000000000000", records[0].FaultID)
	assert.Equal(t, "boom", records[0].FaultMessage)

	err = recordStore.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, plugin.ErrRecordNotFound)
}
