package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dechat-im/dechat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound event envelope. The single non-nil event
// field is the discriminant; a payload carrying more than one mode is
// rejected by the dispatcher.
type ClientMessage struct {
	BaseMessage
	Identify     *Identify     `json:"identify,omitempty"`
	Direct       *SendDirect   `json:"send_direct,omitempty"`
	Room         *SendRoom     `json:"send_room,omitempty"`
	Join         *JoinRoom     `json:"join_room,omitempty"`
	CallRequest  *CallRequest  `json:"call_request,omitempty"`
	CallAnswer   *CallAnswer   `json:"call_answer,omitempty"`
	IceCandidate *IceCandidate `json:"ice_candidate,omitempty"`

	client *Client
}

type Identify struct {
	Identity string `json:"identity"`
}

type SendDirect struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type SendRoom struct {
	RoomId   string `json:"room_id"`
	SenderId string `json:"sender_id,omitempty"`
	Content  string `json:"content"`
}

type JoinRoom struct {
	RoomId string `json:"room_id"`
}

// Call payloads are opaque SDP/ICE blobs forwarded verbatim; the relay
// never parses them.
type CallRequest struct {
	ToIdentity   string          `json:"to_identity"`
	FromIdentity string          `json:"from_identity"`
	Offer        json.RawMessage `json:"offer"`
}

type CallAnswer struct {
	ToIdentity string          `json:"to_identity"`
	Answer     json.RawMessage `json:"answer"`
}

type IceCandidate struct {
	ToIdentity string          `json:"to_identity,omitempty"`
	Candidate  json.RawMessage `json:"candidate"`
}

// ServerMessage is the outbound event envelope.
type ServerMessage struct {
	BaseMessage
	Response     *Response         `json:"response,omitempty"`
	Snapshot     *PresenceSnapshot `json:"presence_snapshot,omitempty"`
	UserJoined   *PresenceChange   `json:"user_joined,omitempty"`
	UserLeft     *PresenceChange   `json:"user_left,omitempty"`
	Message      *NewMessage       `json:"new_message,omitempty"`
	IncomingCall *IncomingCall     `json:"incoming_call,omitempty"`
	CallAnswered *CallAnswered     `json:"call_answered,omitempty"`
	IceCandidate *IceCandidate     `json:"ice_candidate,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type PresenceSnapshot struct {
	Identities []string `json:"identities"`
}

type PresenceChange struct {
	Identity string `json:"identity"`
}

// NewMessage carries either a direct or a room message, tagged explicitly.
type NewMessage struct {
	Direct *types.DirectMessage `json:"direct,omitempty"`
	Room   *types.RoomMessage   `json:"room,omitempty"`
}

type IncomingCall struct {
	FromIdentity string          `json:"from_identity"`
	Offer        json.RawMessage `json:"offer"`
}

type CallAnswered struct {
	Answer json.RawMessage `json:"answer"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrValidation(id int, reason string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        reason,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
