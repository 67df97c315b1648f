package server

import (
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every client-to-server event. Exactly
// one of the event fields is set.
type ClientMessage struct {
	BaseMessage
	NewUser     *NewUser     `json:"new_user,omitempty"`
	SendMessage *SendMessage `json:"send_message,omitempty"`
	Typing      *Typing      `json:"typing,omitempty"`
	JoinChat    *JoinChat    `json:"join_chat,omitempty"`
	LeaveChat   *LeaveChat   `json:"leave_chat,omitempty"`
	client      *Client      `json:"-"`
}

// NewUser announces the session's user id after connect or reconnect.
type NewUser struct {
	UserId int `json:"user_id"`
}

type SendMessage struct {
	ReceiverId int    `json:"receiver_id"`
	SenderId   int    `json:"sender_id"`
	Message    string `json:"message"`
	ChatId     string `json:"chat_id"`
}

type Typing struct {
	ReceiverId int  `json:"receiver_id"`
	SenderId   int  `json:"sender_id"`
	IsTyping   bool `json:"is_typing"`
}

type JoinChat struct {
	ChatId string `json:"chat_id"`
}

type LeaveChat struct {
	ChatId string `json:"chat_id"`
}

// ServerMessage is the envelope for every server-to-client event.
type ServerMessage struct {
	BaseMessage
	OnlineUsers  *OnlineUsers    `json:"online_users,omitempty"`
	Presence     *Presence       `json:"presence,omitempty"`
	Message      *MessagePayload `json:"message,omitempty"`
	Confirmation *Confirmation   `json:"confirmation,omitempty"`
	Typing       *UserTyping     `json:"typing,omitempty"`
	SkipClient   *Client         `json:"-"`
}

// OnlineUsers is the full online snapshot, broadcast to every connection
// whenever the registry changes.
type OnlineUsers struct {
	UserIds []int `json:"user_ids"`
}

// Presence is the incremental came-online/went-offline notice sent to all
// connections other than the one that changed.
type Presence struct {
	UserId int  `json:"user_id"`
	Online bool `json:"online"`
}

// MessagePayload is the live delivery of a chat message to the receiver's
// connection. Durability is owned by the REST path; this is best effort.
type MessagePayload struct {
	SenderId  int       `json:"sender_id"`
	Message   string    `json:"message"`
	ChatId    string    `json:"chat_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Confirmation echoes a relayed message back to the sender's own
// connection so the sender's UI can reconcile its optimistic insert.
type Confirmation struct {
	SenderId   int       `json:"sender_id"`
	ReceiverId int       `json:"receiver_id"`
	Message    string    `json:"message"`
	ChatId     string    `json:"chat_id"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserTyping struct {
	UserId   int  `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
