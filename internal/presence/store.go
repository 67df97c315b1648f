// Package presence tracks which users currently hold a live socket
// connection. A Store maps server-assigned connection ids to user ids and
// back. A user id may be mapped by several connection ids at once after a
// fast reconnect; the user-to-connection index is last-write-wins, so lookups
// always resolve to the most recent registration and the stale mapping is
// orphaned until its connection unregisters.
package presence

import "context"

type Store interface {
	// Register inserts or overwrites the mapping for connId.
	Register(ctx context.Context, connId string, userId int) error
	// Unregister removes the mapping for connId if present, returning the
	// user id that had been associated.
	Unregister(ctx context.Context, connId string) (int, bool, error)
	// Lookup returns the connection id most recently registered for userId.
	Lookup(ctx context.Context, userId int) (string, bool, error)
	// OnlineUserIds returns the deduplicated set of registered user ids.
	OnlineUserIds(ctx context.Context) ([]int, error)
	Close() error
}
