package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id        int
	Username  string
	Email     string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Chat struct {
	Id            int
	ExternalId    string
	Participants  []Participant
	LastMessage   string
	LastMessageAt sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Participant is a user's membership row in a chat. Seen reports whether
// the user has seen the chat's current state since the last message.
type Participant struct {
	UserId   int
	Username string
	Avatar   string
	Seen     bool
}

type Message struct {
	Id        int
	ChatId    int
	UserId    int
	Text      string
	IsRead    bool
	CreatedAt time.Time
}

type CreateChatParams struct {
	ExternalId string
	UserIds    [2]int
}
