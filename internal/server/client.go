package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/propertyhub/chatserver/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live socket connection. The connection id is server
// assigned; the user identity comes from the authenticated session that
// upgraded the connection. A client is not visible to the presence
// registry until it announces itself with a new_user event.
type Client struct {
	connId     string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	stop       chan struct{}
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		connId:     uuid.NewString(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

// ConnId returns the server-assigned connection identifier.
func (c *Client) ConnId() string {
	return c.connId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for conn %q", c.connId)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for conn %q", c.connId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// malformed events are logged and dropped, no reply
			c.log.Println("error parsing message:", err)
			continue
		}

		msg.client = c
		msg.Timestamp = Now()
		c.dispatch(&msg)
	}
}

// dispatch hands a parsed event to the chat server's loop. Sends are
// non-blocking: a full channel means the loop is overwhelmed and the
// event is dropped, matching the best-effort contract of the live path.
func (c *Client) dispatch(msg *ClientMessage) {
	var target chan *ClientMessage

	switch {
	case msg.NewUser != nil:
		if msg.NewUser.UserId != c.user.Id {
			// the session is the authority on identity; a registration
			// for someone else is dropped
			c.log.Printf("conn %q: registration user id %d does not match session user %d",
				c.connId, msg.NewUser.UserId, c.user.Id)
			return
		}
		target = c.chatServer.presenceChan
	case msg.SendMessage != nil:
		target = c.chatServer.relayChan
	case msg.Typing != nil:
		target = c.chatServer.typingChan
	case msg.JoinChat != nil, msg.LeaveChat != nil:
		target = c.chatServer.roomChan
	default:
		c.log.Printf("conn %q: event with no known payload dropped", c.connId)
		return
	}

	select {
	case target <- msg:
	default:
		c.log.Printf("conn %q: event channel full, dropping event", c.connId)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Client) cleanup() {
	c.chatServer.DeRegisterClient(c)
	c.stopClient()
}
