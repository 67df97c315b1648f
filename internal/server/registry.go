package server

import (
	"context"
	"log"

	"github.com/propertyhub/chatserver/internal/presence"
)

// Registry is the single source of truth for which users are online. It is
// owned by the ChatServer and mutated only on its event loop, so calls are
// never concurrent with each other; the backing store still guards itself
// because read-only lookups may come from HTTP handlers.
type Registry struct {
	store presence.Store
	log   *log.Logger
}

func NewRegistry(store presence.Store, logger *log.Logger) *Registry {
	return &Registry{store: store, log: logger}
}

func (r *Registry) Register(ctx context.Context, connId string, userId int) bool {
	if err := r.store.Register(ctx, connId, userId); err != nil {
		r.log.Printf("presence register %q: %v", connId, err)
		return false
	}
	return true
}

// Unregister removes the mapping for connId, returning the user id that
// had been associated. Unknown connection ids are a no-op.
func (r *Registry) Unregister(ctx context.Context, connId string) (int, bool) {
	userId, ok, err := r.store.Unregister(ctx, connId)
	if err != nil {
		r.log.Printf("presence unregister %q: %v", connId, err)
		return 0, false
	}
	return userId, ok
}

// LookupConnection resolves a user id to a delivery target. Absence is not
// an error: the relays treat an offline receiver as a no-op.
func (r *Registry) LookupConnection(ctx context.Context, userId int) (string, bool) {
	connId, ok, err := r.store.Lookup(ctx, userId)
	if err != nil {
		r.log.Printf("presence lookup user %d: %v", userId, err)
		return "", false
	}
	return connId, ok
}

func (r *Registry) OnlineUserIds(ctx context.Context) []int {
	userIds, err := r.store.OnlineUserIds(ctx)
	if err != nil {
		r.log.Printf("presence list online users: %v", err)
		return nil
	}
	return userIds
}
