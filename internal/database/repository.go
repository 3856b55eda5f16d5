package database

type DechatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateChat(params CreateChatParams) (Chat, error)
	GetChatByExternalId(externalId string) (Chat, error)
	ListChats(accountId int) ([]Chat, error)
	GetParticipants(chatId int) ([]Participant, error)
	IsParticipant(accountId, chatId int) bool
	CreateDirectMessage(msg DirectMessage) error
	GetDirectMessages(conversationId string, limit int) ([]DirectMessage, error)
	CreateRoomMessage(msg RoomMessage) error
	GetRoomMessages(roomId string, limit, offset int) ([]RoomMessage, error)
}
