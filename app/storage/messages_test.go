package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages_AddAndStats(t *testing.T) {
	ctx := context.Background()
	m, err := NewMessages(ctx, newTestDB(t))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, m.Add(ctx, "room1", "user1", "first message", now.Add(-time.Hour)))
	require.NoError(t, m.Add(ctx, "room1", "user1", "second message", now.Add(-30*time.Minute)))
	require.NoError(t, m.Add(ctx, "room1", "user2", "third message", now.Add(-10*time.Minute)))
	require.NoError(t, m.Add(ctx, "room2", "user3", "other room", now))
	require.NoError(t, m.Add(ctx, "room1", "user1", "ancient message", now.AddDate(0, 0, -30)))

	stats, err := m.Stats(ctx, "room1", 7)
	require.NoError(t, err)
	assert.Equal(t, "room1", stats.Room)
	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, 3, stats.MessageCount, "other rooms and out-of-window messages excluded")
	assert.Equal(t, 2, stats.UniqueSenders)
	require.NotEmpty(t, stats.ActiveDays)

	total := 0
	for _, day := range stats.ActiveDays {
		total += day.Count
	}
	assert.Equal(t, 3, total)
}

func TestMessages_StatsEmptyRoom(t *testing.T) {
	ctx := context.Background()
	m, err := NewMessages(ctx, newTestDB(t))
	require.NoError(t, err)

	stats, err := m.Stats(ctx, "ghost-room", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days, "zero days defaults to a week")
	assert.Zero(t, stats.MessageCount)
	assert.Zero(t, stats.UniqueSenders)
	assert.Empty(t, stats.ActiveDays)
}

func TestMessages_SenderHashed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m, err := NewMessages(ctx, db)
	require.NoError(t, err)

	require.NoError(t, m.Add(ctx, "room1", "raw-user-id", "hello", time.Now()))

	var hashes []string
	require.NoError(t, db.SelectContext(ctx, &hashes, "SELECT sender_hash FROM messages"))
	require.Len(t, hashes, 1)
	assert.Equal(t, HashIdentity("raw-user-id"), hashes[0])
	assert.NotContains(t, hashes[0], "raw-user-id")
}
