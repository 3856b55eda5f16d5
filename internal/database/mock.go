package database

import (
	"github.com/stretchr/testify/mock"
)

type MockDechatRepository struct {
	mock.Mock
}

func (m *MockDechatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockDechatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDechatRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDechatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockDechatRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockDechatRepository) GetChatByExternalId(externalId string) (Chat, error) {
	args := m.Called(externalId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockDechatRepository) ListChats(accountId int) ([]Chat, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Chat), args.Error(1)
}
func (m *MockDechatRepository) GetParticipants(chatId int) ([]Participant, error) {
	args := m.Called(chatId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockDechatRepository) IsParticipant(accountId, chatId int) bool {
	args := m.Called(accountId, chatId)
	return args.Bool(0)
}
func (m *MockDechatRepository) CreateDirectMessage(msg DirectMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockDechatRepository) GetDirectMessages(conversationId string, limit int) ([]DirectMessage, error) {
	args := m.Called(conversationId, limit)
	return args.Get(0).([]DirectMessage), args.Error(1)
}
func (m *MockDechatRepository) CreateRoomMessage(msg RoomMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockDechatRepository) GetRoomMessages(roomId string, limit, offset int) ([]RoomMessage, error) {
	args := m.Called(roomId, limit, offset)
	return args.Get(0).([]RoomMessage), args.Error(1)
}
