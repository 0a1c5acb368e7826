package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/chat-guard/app/storage/engine"
)

func TestVerifications_PendingLifecycle(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifications(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := PendingVerification{
		Phone:     "+1555000001",
		Room:      "room1",
		Code:      "12345",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	require.NoError(t, v.CreatePending(ctx, rec))

	got, found, err := v.Pending(ctx, "+1555000001", "room1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "12345", got.Code)

	_, found, err = v.Pending(ctx, "+1555000001", "room2")
	require.NoError(t, err)
	assert.False(t, found, "state is per (phone, room)")

	t.Run("re-issue replaces the code", func(t *testing.T) {
		rec.Code = "67890"
		require.NoError(t, v.CreatePending(ctx, rec))
		got, found, err := v.Pending(ctx, "+1555000001", "room1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "67890", got.Code, "at most one pending per key")
	})
}

func TestVerifications_Complete(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifications(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := PendingVerification{Phone: "+1555000001", Room: "room1", Code: "12345", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, v.CreatePending(ctx, rec))

	t.Run("wrong code doesn't transition", func(t *testing.T) {
		ok, err := v.Complete(ctx, "+1555000001", "room1", "00000", now)
		require.NoError(t, err)
		assert.False(t, ok)

		verified, err := v.IsVerified(ctx, "+1555000001", "room1")
		require.NoError(t, err)
		assert.False(t, verified)
	})

	t.Run("correct code transitions to verified", func(t *testing.T) {
		ok, err := v.Complete(ctx, "+1555000001", "room1", "12345", now)
		require.NoError(t, err)
		assert.True(t, ok)

		verified, err := v.IsVerified(ctx, "+1555000001", "room1")
		require.NoError(t, err)
		assert.True(t, verified)

		_, found, err := v.Pending(ctx, "+1555000001", "room1")
		require.NoError(t, err)
		assert.False(t, found, "pending record consumed")
	})

	t.Run("second complete is a lost race, not an error", func(t *testing.T) {
		ok, err := v.Complete(ctx, "+1555000001", "room1", "12345", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVerifications_ExpiryVsVerifyRace(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifications(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	expired := PendingVerification{Phone: "+1555000001", Room: "room1", Code: "11111", CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute)}
	active := PendingVerification{Phone: "+1555000002", Room: "room1", Code: "22222", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, v.CreatePending(ctx, expired))
	require.NoError(t, v.CreatePending(ctx, active))

	recs, err := v.Expired(ctx, now)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "+1555000001", recs[0].Phone)

	// user answers between the sweep's read and its claim: verify wins,
	// the claim affects nothing and the sweep must not act on the record
	ok, err := v.Complete(ctx, "+1555000001", "room1", "11111", now)
	require.NoError(t, err)
	assert.True(t, ok)

	claimed, err := v.ClaimExpired(ctx, "+1555000001", "room1", now)
	require.NoError(t, err)
	assert.False(t, claimed, "verified record is gone from pending, claim lands on nothing")

	verified, err := v.IsVerified(ctx, "+1555000001", "room1")
	require.NoError(t, err)
	assert.True(t, verified, "expiry never undoes a completed verification")

	_, found, err := v.Pending(ctx, "+1555000002", "room1")
	require.NoError(t, err)
	assert.True(t, found, "active challenge untouched by the sweep")
}

func TestVerifications_ClaimExpired(t *testing.T) {
	ctx := context.Background()
	v, err := NewVerifications(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	expired := PendingVerification{Phone: "+1555000001", Room: "room1", Code: "11111",
		CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-time.Minute)}
	active := PendingVerification{Phone: "+1555000002", Room: "room1", Code: "22222",
		CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	require.NoError(t, v.CreatePending(ctx, expired))
	require.NoError(t, v.CreatePending(ctx, active))

	t.Run("claims only expired records", func(t *testing.T) {
		claimed, err := v.ClaimExpired(ctx, "+1555000001", "room1", now)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = v.ClaimExpired(ctx, "+1555000002", "room1", now)
		require.NoError(t, err)
		assert.False(t, claimed, "active record not claimable")

		_, found, err := v.Pending(ctx, "+1555000002", "room1")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("second claim is a lost race, not an error", func(t *testing.T) {
		claimed, err := v.ClaimExpired(ctx, "+1555000001", "room1", now)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("claimed record can't complete anymore", func(t *testing.T) {
		ok, err := v.Complete(ctx, "+1555000001", "room1", "11111", now)
		require.NoError(t, err)
		assert.False(t, ok, "expire won the race, late answer observes it")
	})
}

func TestVerifications_GIDScoping(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "test.db")

	db1, err := engine.NewSqlite(file, "gr1")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db1.Close()) })
	db2, err := engine.NewSqlite(file, "gr2")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db2.Close()) })

	v1, err := NewVerifications(ctx, db1)
	require.NoError(t, err)
	v2, err := NewVerifications(ctx, db2)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := PendingVerification{Phone: "+1555000001", Room: "room1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	rec.Code = "11111"
	require.NoError(t, v1.CreatePending(ctx, rec))
	rec.Code = "22222"
	require.NoError(t, v2.CreatePending(ctx, rec))

	got, found, err := v1.Pending(ctx, "+1555000001", "room1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "11111", got.Code, "one deployment can't clobber another's challenge")

	ok, err := v2.Complete(ctx, "+1555000001", "room1", "22222", now)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err = v1.Pending(ctx, "+1555000001", "room1")
	require.NoError(t, err)
	assert.True(t, found, "completion in one deployment leaves the other's pending record")

	verified, err := v1.IsVerified(ctx, "+1555000001", "room1")
	require.NoError(t, err)
	assert.False(t, verified, "verified state is per deployment")
}
