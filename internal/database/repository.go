package database

import "database/sql"

type ChatRepository interface {
	Ping() error
	GetUserById(userId int) (User, error)
	CreateChat(params CreateChatParams) (Chat, error)
	GetChatByExternalId(externalId string) (Chat, error)
	GetChatByParticipants(userA, userB int) (Chat, error)
	ListChats(userId int) ([]Chat, error)
	DeleteChat(chatId int) error
	CreateMessage(msg Message) (Message, error)
	UpdateChatOnMessage(chatId, senderId int, text string) error
	GetMessageById(messageId int) (Message, error)
	GetMessages(chatId, offset, limit int) ([]Message, error)
	CountMessages(chatId int) (int, error)
	GetLatestMessage(chatId int) (Message, error)
	DeleteMessage(messageId int) error
	SetChatPreview(chatId int, text string, at sql.NullTime) error
	AddSeenBy(chatId, userId int) error
	ResetSeenBy(chatId, userId int) error
	MarkMessagesRead(chatId, userId int) error
	UnreadCount(chatId, userId int) (int, error)
	UnseenChatCount(userId int) (int, error)
}
