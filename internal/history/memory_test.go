package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	entries := []Entry{
		{ChannelID: "C1", Message: "too old", Active: true, Role: RoleUser, Timestamp: now.Add(-30 * time.Minute)},
		{ChannelID: "C1", Message: "recent question", Active: true, Role: RoleUser, Timestamp: now.Add(-15 * time.Minute)},
		{ChannelID: "C1", Message: "recent answer", Active: true, Role: RoleAssistant, Timestamp: now.Add(-1 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	window, err := store.Recent(ctx, "C1", 10, 20*time.Minute)
	require.NoError(t, err)

	require.Len(t, window, 2)
	assert.Equal(t, "recent question", window[0].Message)
	assert.Equal(t, "recent answer", window[1].Message)
}

func TestMemoryStoreCountLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Entry{
			ChannelID: "C1",
			Message:   string(rune('a' + i)),
			Active:    true,
			Role:      RoleUser,
			Timestamp: now.Add(time.Duration(i-5) * time.Minute),
		}))
	}

	window, err := store.Recent(ctx, "C1", 2, time.Hour)
	require.NoError(t, err)

	require.Len(t, window, 2)
	assert.Equal(t, "d", window[0].Message)
	assert.Equal(t, "e", window[1].Message)
}

func TestMemoryStoreExcludesInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, Entry{
		ChannelID: "C1", Message: "forgotten", Active: false, Role: RoleUser, Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, store.Append(ctx, Entry{
		ChannelID: "C1", Message: "kept", Active: true, Role: RoleUser, Timestamp: time.Now().UTC(),
	}))

	window, err := store.Recent(ctx, "C1", 10, time.Hour)
	require.NoError(t, err)

	require.Len(t, window, 1)
	assert.Equal(t, "kept", window[0].Message)
}

func TestMemoryStoreDeactivate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	affected, err := store.Deactivate(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, affected)

	require.NoError(t, store.Append(ctx, Entry{
		ChannelID: "C1", Message: "hello", Active: true, Role: RoleUser, Timestamp: time.Now().UTC(),
	}))

	affected, err = store.Deactivate(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, affected)

	window, err := store.Recent(ctx, "C1", 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestMemoryStoreChannelsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, Entry{
		ChannelID: "C1", Message: "one", Active: true, Role: RoleUser, Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, store.Append(ctx, Entry{
		ChannelID: "C2", Message: "two", Active: true, Role: RoleUser, Timestamp: time.Now().UTC(),
	}))

	window, err := store.Recent(ctx, "C1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "one", window[0].Message)
}
