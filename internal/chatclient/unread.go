package chatclient

import (
	"context"
	"sync"
)

// UnreadCounter backs the unread-chats badge. It is adjusted locally
// for instant feedback and periodically replaced with the server's
// authoritative count, which wins whenever the two disagree.
type UnreadCounter struct {
	mu    sync.Mutex
	count int
}

func NewUnreadCounter() *UnreadCounter {
	return &UnreadCounter{}
}

func (c *UnreadCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// ChatOpened decrements the badge when the user opens a chat they had
// not seen. Never goes below zero.
func (c *UnreadCounter) ChatOpened() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count > 0 {
		c.count--
	}

	return c.count
}

// MessageArrived bumps the badge when a live message lands in a chat
// the user does not have open.
func (c *UnreadCounter) MessageArrived() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	return c.count
}

// Refresh replaces the local count with the server's. fetch typically
// wraps a call to the notifications endpoint.
func (c *UnreadCounter) Refresh(ctx context.Context, fetch func(context.Context) (int, error)) error {
	count, err := fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.count = count
	c.mu.Unlock()

	return nil
}
