package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	IsOnline     bool      `json:"is_online,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

type Chat struct {
	Id           int           `json:"id"`
	ExternalId   string        `json:"external_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Type         string        `json:"type"`
	Participants []Participant `json:"participants,omitempty"`
	CreatedBy    int           `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}

type Participant struct {
	User     User      `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

// DirectMessage is one message in a two-party conversation. ConversationId
// is derived from the sender/recipient pair, so both directions share a
// single history partition.
type DirectMessage struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoomMessage is one message in a group chat. The content is an opaque
// encrypted blob; the server never inspects it.
type RoomMessage struct {
	Id               string    `json:"id"`
	RoomId           string    `json:"room_id"`
	SenderId         string    `json:"sender_id"`
	EncryptedContent string    `json:"encrypted_content"`
	Timestamp        time.Time `json:"timestamp"`
}
