package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_RegisterLookup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Register(ctx, "conn-1", 1)
	assert.NoError(t, err, "expected no error registering connection")

	connId, ok, err := s.Lookup(ctx, 1)
	assert.NoError(t, err, "expected no error looking up user")
	assert.True(t, ok, "expected user to be online")
	assert.Equal(t, "conn-1", connId, "expected lookup to resolve to registered connection")

	_, ok, err = s.Lookup(ctx, 2)
	assert.NoError(t, err, "expected no error looking up unknown user")
	assert.False(t, ok, "expected unknown user to be offline")
}

func TestMemoryStore_RegisterOverwritesPreviousConnection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, s.Register(ctx, "conn-old", 1))
	assert.NoError(t, s.Register(ctx, "conn-new", 1))

	connId, ok, err := s.Lookup(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, ok, "expected user to still be online")
	assert.Equal(t, "conn-new", connId, "expected newest registration to win")
}

func TestMemoryStore_Unregister(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, s.Register(ctx, "conn-1", 1))

	userId, ok, err := s.Unregister(ctx, "conn-1")
	assert.NoError(t, err, "expected no error unregistering connection")
	assert.True(t, ok, "expected connection to have been registered")
	assert.Equal(t, 1, userId, "expected unregister to return the associated user")

	_, ok, err = s.Lookup(ctx, 1)
	assert.NoError(t, err)
	assert.False(t, ok, "expected user to be offline after unregister")
}

func TestMemoryStore_UnregisterUnknownConnection(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Unregister(context.Background(), "conn-unknown")
	assert.NoError(t, err, "expected no error unregistering unknown connection")
	assert.False(t, ok, "expected unknown connection to be a no-op")
}

func TestMemoryStore_UnregisterOrphanedConnection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// a second registration for the same user orphans the first connection
	assert.NoError(t, s.Register(ctx, "conn-old", 1))
	assert.NoError(t, s.Register(ctx, "conn-new", 1))

	userId, ok, err := s.Unregister(ctx, "conn-old")
	assert.NoError(t, err)
	assert.True(t, ok, "expected orphaned connection to still unregister")
	assert.Equal(t, 1, userId)

	connId, ok, err := s.Lookup(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, ok, "expected user to stay online on the newer connection")
	assert.Equal(t, "conn-new", connId, "expected newer registration to survive orphan cleanup")
}

func TestMemoryStore_OnlineUserIds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	userIds, err := s.OnlineUserIds(ctx)
	assert.NoError(t, err)
	assert.Empty(t, userIds, "expected no online users initially")

	assert.NoError(t, s.Register(ctx, "conn-1", 1))
	assert.NoError(t, s.Register(ctx, "conn-2", 2))
	// same user on a second connection must not be listed twice
	assert.NoError(t, s.Register(ctx, "conn-3", 1))

	userIds, err = s.OnlineUserIds(ctx)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, userIds, "expected each online user exactly once")
}
