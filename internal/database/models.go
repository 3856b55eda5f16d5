package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Chat struct {
	Id           int
	ExternalId   string
	Name         string
	Description  string
	Type         string
	CreatedBy    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []Participant
}

type Participant struct {
	Id        int
	ChatId    int
	AccountId int
	Username  string
	Role      string
	JoinedAt  time.Time
}

type DirectMessage struct {
	Id             string
	ConversationId string
	Sender         string
	Recipient      string
	Text           string
	Timestamp      time.Time
}

type RoomMessage struct {
	Id               string
	RoomId           string
	SenderId         string
	EncryptedContent string
	Timestamp        time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateChatParams struct {
	Name           string
	Description    string
	Type           string
	ExternalId     string
	CreatedBy      int
	ParticipantIds []int
}
