package chatclient

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/propertyhub/chatserver/internal/server"
)

// Status is the observable connection state of a ChatClient.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
	StatusFailed       Status = "failed"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// Conn is the subset of a websocket connection the client uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens connections to the chat server. Swappable in tests.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla's default dialer, carrying the
// session cookie the server's auth middleware expects.
type WebsocketDialer struct {
	Header http.Header
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Handlers are the application callbacks for server events. Any nil
// handler is skipped. Handlers run on the client's read goroutine.
type Handlers struct {
	OnStatus       func(Status)
	OnOnlineUsers  func([]int)
	OnPresence     func(userId int, online bool)
	OnMessage      func(server.MessagePayload)
	OnConfirmation func(server.Confirmation)
	OnTyping       func(server.UserTyping)
}

// Options tune the reconnection cycle. Zero values take defaults.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// ChatClient maintains a single live connection to the chat server,
// announces the session user after every (re)connect, and keeps a local
// cache of who is online. A lost connection is retried with doubling
// backoff for a bounded number of attempts; after exhaustion the client
// parks in StatusFailed until Reconnect is called.
type ChatClient struct {
	log      *log.Logger
	dialer   Dialer
	url      string
	userId   int
	handlers Handlers

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu     sync.Mutex
	conn   Conn
	status Status
	online map[int]struct{}
	closed bool
	gen    int
}

func NewChatClient(url string, userId int, dialer Dialer, handlers Handlers, opts Options, logger *log.Logger) *ChatClient {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}

	return &ChatClient{
		log:         logger,
		dialer:      dialer,
		url:         url,
		userId:      userId,
		handlers:    handlers,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		status:      StatusDisconnected,
		online:      make(map[int]struct{}),
	}
}

func (c *ChatClient) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// OnlineUserIds returns the cached online snapshot. Empty while
// disconnected.
func (c *ChatClient) OnlineUserIds() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int, 0, len(c.online))
	for id := range c.online {
		ids = append(ids, id)
	}

	return ids
}

func (c *ChatClient) IsOnline(userId int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.online[userId]
	return ok
}

// Connect dials the server and starts the read loop. It returns once
// the connection is established or the dial fails.
func (c *ChatClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client closed")
	}
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	c.setStatus(StatusConnecting)

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("dial: %w", err)
	}

	c.adopt(conn)
	return nil
}

// Reconnect resets the retry budget and dials again. It is the manual
// escape hatch once automatic retries have been exhausted.
func (c *ChatClient) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client closed")
	}
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	c.setStatus(StatusConnecting)

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("dial: %w", err)
	}

	c.adopt(conn)
	return nil
}

// Close tears the connection down and stops any reconnection cycle.
func (c *ChatClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	conn := c.conn
	c.conn = nil
	c.online = make(map[int]struct{})
	c.mu.Unlock()

	c.setStatus(StatusDisconnected)

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// SendMessage relays a chat message over the live connection. The
// durable copy goes over the REST API; this is the live path.
func (c *ChatClient) SendMessage(receiverId int, chatId, text string) error {
	return c.writeJSON(&server.ClientMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		SendMessage: &server.SendMessage{
			ReceiverId: receiverId,
			SenderId:   c.userId,
			Message:    text,
			ChatId:     chatId,
		},
	})
}

func (c *ChatClient) SendTyping(receiverId int, isTyping bool) error {
	return c.writeJSON(&server.ClientMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		Typing: &server.Typing{
			ReceiverId: receiverId,
			SenderId:   c.userId,
			IsTyping:   isTyping,
		},
	})
}

func (c *ChatClient) JoinChat(chatId string) error {
	return c.writeJSON(&server.ClientMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		JoinChat:    &server.JoinChat{ChatId: chatId},
	})
}

func (c *ChatClient) LeaveChat(chatId string) error {
	return c.writeJSON(&server.ClientMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		LeaveChat:   &server.LeaveChat{ChatId: chatId},
	})
}

// adopt installs a freshly dialed connection, announces the session
// user, and starts the read loop.
func (c *ChatClient) adopt(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.setStatus(StatusConnected)

	if err := c.announce(); err != nil {
		c.log.Printf("announce: %v", err)
	}

	go c.readLoop(conn, gen)
}

// announce registers the session user with the server's presence
// registry. Sent after every connect and reconnect.
func (c *ChatClient) announce() error {
	return c.writeJSON(&server.ClientMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		NewUser:     &server.NewUser{UserId: c.userId},
	})
}

func (c *ChatClient) writeJSON(msg *server.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	return conn.WriteJSON(msg)
}

func (c *ChatClient) readLoop(conn Conn, gen int) {
	for {
		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(conn, gen, err)
			return
		}

		c.dispatch(&msg)
	}
}

func (c *ChatClient) dispatch(msg *server.ServerMessage) {
	switch {
	case msg.OnlineUsers != nil:
		c.mu.Lock()
		c.online = make(map[int]struct{}, len(msg.OnlineUsers.UserIds))
		for _, id := range msg.OnlineUsers.UserIds {
			c.online[id] = struct{}{}
		}
		c.mu.Unlock()

		if c.handlers.OnOnlineUsers != nil {
			c.handlers.OnOnlineUsers(msg.OnlineUsers.UserIds)
		}
	case msg.Presence != nil:
		c.mu.Lock()
		if msg.Presence.Online {
			c.online[msg.Presence.UserId] = struct{}{}
		} else {
			delete(c.online, msg.Presence.UserId)
		}
		c.mu.Unlock()

		if c.handlers.OnPresence != nil {
			c.handlers.OnPresence(msg.Presence.UserId, msg.Presence.Online)
		}
	case msg.Message != nil:
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(*msg.Message)
		}
	case msg.Confirmation != nil:
		if c.handlers.OnConfirmation != nil {
			c.handlers.OnConfirmation(*msg.Confirmation)
		}
	case msg.Typing != nil:
		if c.handlers.OnTyping != nil {
			c.handlers.OnTyping(*msg.Typing)
		}
	default:
		c.log.Println("unknown server message, dropping")
	}
}

// handleDisconnect tears down a lost connection and runs the bounded
// reconnection cycle. A stale generation means a newer connection (or
// Close) already superseded this one.
func (c *ChatClient) handleDisconnect(conn Conn, gen int, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.online = make(map[int]struct{})
	c.mu.Unlock()

	c.log.Printf("connection lost: %v", cause)
	c.setStatus(StatusReconnecting)

	backoff := c.baseBackoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		time.Sleep(backoff)

		c.mu.Lock()
		if c.closed || c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		next, err := c.dialer.Dial(context.Background(), c.url)
		if err == nil {
			c.adopt(next)
			return
		}

		c.log.Printf("reconnect attempt %d/%d: %v", attempt, c.maxAttempts, err)

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	c.setStatus(StatusFailed)
}

func (c *ChatClient) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(status)
	}
}
