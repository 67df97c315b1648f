package presence

import (
	"context"
	"sync"
)

// MemoryStore is the process-local Store used by single-instance
// deployments. State is lost on restart, which is fine: connections are
// gone too, and clients re-register on reconnect.
type MemoryStore struct {
	mu    sync.RWMutex
	conns map[string]int
	users map[int]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conns: make(map[string]int),
		users: make(map[int]string),
	}
}

func (s *MemoryStore) Register(_ context.Context, connId string, userId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[connId] = userId
	s.users[userId] = connId
	return nil
}

func (s *MemoryStore) Unregister(_ context.Context, connId string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userId, ok := s.conns[connId]
	if !ok {
		return 0, false, nil
	}

	delete(s.conns, connId)
	// only drop the reverse index if it still points at this connection,
	// otherwise a newer registration for the same user owns it
	if s.users[userId] == connId {
		delete(s.users, userId)
	}

	return userId, true, nil
}

func (s *MemoryStore) Lookup(_ context.Context, userId int) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connId, ok := s.users[userId]
	return connId, ok, nil
}

func (s *MemoryStore) OnlineUserIds(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]struct{}, len(s.conns))
	userIds := make([]int, 0, len(s.conns))
	for _, userId := range s.conns {
		if _, ok := seen[userId]; ok {
			continue
		}
		seen[userId] = struct{}{}
		userIds = append(userIds, userId)
	}

	return userIds, nil
}

func (s *MemoryStore) Close() error { return nil }
