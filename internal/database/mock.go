package database

import (
	"database/sql"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) GetUserById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockChatRepository) GetChatByExternalId(externalId string) (Chat, error) {
	args := m.Called(externalId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockChatRepository) GetChatByParticipants(userA, userB int) (Chat, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockChatRepository) ListChats(userId int) ([]Chat, error) {
	args := m.Called(userId)
	return args.Get(0).([]Chat), args.Error(1)
}
func (m *MockChatRepository) DeleteChat(chatId int) error {
	args := m.Called(chatId)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) UpdateChatOnMessage(chatId, senderId int, text string) error {
	args := m.Called(chatId, senderId, text)
	return args.Error(0)
}
func (m *MockChatRepository) GetMessageById(messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessages(chatId, offset, limit int) ([]Message, error) {
	args := m.Called(chatId, offset, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) CountMessages(chatId int) (int, error) {
	args := m.Called(chatId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) GetLatestMessage(chatId int) (Message, error) {
	args := m.Called(chatId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) DeleteMessage(messageId int) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockChatRepository) SetChatPreview(chatId int, text string, at sql.NullTime) error {
	args := m.Called(chatId, text, at)
	return args.Error(0)
}
func (m *MockChatRepository) AddSeenBy(chatId, userId int) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}
func (m *MockChatRepository) ResetSeenBy(chatId, userId int) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}
func (m *MockChatRepository) MarkMessagesRead(chatId, userId int) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}
func (m *MockChatRepository) UnreadCount(chatId, userId int) (int, error) {
	args := m.Called(chatId, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) UnseenChatCount(userId int) (int, error) {
	args := m.Called(userId)
	return args.Int(0), args.Error(1)
}
