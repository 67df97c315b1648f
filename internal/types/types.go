package types

import (
	"time"
)

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Chat struct {
	ExternalId    string    `json:"id"`
	Participants  []int     `json:"participants"`
	Receiver      *User     `json:"receiver,omitempty"`
	SeenBy        []int     `json:"seen_by"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int       `json:"unread_count"`
	Messages      []Message `json:"messages,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	ChatId    string    `json:"chat_id"`
	UserId    int       `json:"user_id"`
	Sender    *User     `json:"sender,omitempty"`
	Text      string    `json:"text"`
	IsRead    bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}
