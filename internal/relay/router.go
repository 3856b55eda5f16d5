package relay

import (
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/types"
)

// MessageRouter validates chat traffic and fans it out. Persistence is
// queued off the delivery path; a storage failure never blocks or fails
// delivery.
type MessageRouter struct {
	rs  *RelayServer
	log *log.Logger

	generateMessageId func() string
}

func NewMessageRouter(rs *RelayServer, logger *log.Logger) *MessageRouter {
	return &MessageRouter{
		rs:                rs,
		log:               logger,
		generateMessageId: uuid.NewString,
	}
}

func (mr *MessageRouter) handleDirect(msg *ClientMessage) {
	c := msg.client
	d := msg.Direct

	if c.identity == "" {
		c.queueMessage(ErrValidation(msg.Id, "identify before sending messages"))
		return
	}

	sender := strings.TrimSpace(d.Sender)
	if sender == "" {
		sender = c.identity
	} else if sender != c.identity {
		c.queueMessage(ErrValidation(msg.Id, "sender does not match identity"))
		return
	}

	recipient := strings.TrimSpace(d.Recipient)
	if recipient == "" {
		c.queueMessage(ErrValidation(msg.Id, "recipient is required"))
		return
	}

	if d.Text == "" {
		c.queueMessage(ErrValidation(msg.Id, "text is required"))
		return
	}

	dm := &types.DirectMessage{
		Id:             mr.generateMessageId(),
		ConversationId: ConversationKey(sender, recipient),
		Sender:         sender,
		Recipient:      recipient,
		Text:           d.Text,
		Timestamp:      msg.Timestamp,
	}

	mr.rs.persist.enqueue(func() error {
		return mr.rs.repo.CreateDirectMessage(database.DirectMessage{
			Id:             dm.Id,
			ConversationId: dm.ConversationId,
			Sender:         dm.Sender,
			Recipient:      dm.Recipient,
			Text:           dm.Text,
			Timestamp:      dm.Timestamp,
		})
	})

	event := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Message:     &NewMessage{Direct: dm},
	}

	// Deliver to every connection the recipient holds, then exactly one
	// echo to the originating connection. A sender messaging themselves
	// still gets a single copy.
	for _, conn := range mr.rs.registry.Resolve(recipient) {
		if conn == c {
			continue
		}
		conn.queueMessage(event)
	}
	c.queueMessage(event)

	mr.rs.stats.Incr(statDirectMessages)
}

func (mr *MessageRouter) handleRoom(msg *ClientMessage) {
	c := msg.client
	r := msg.Room

	roomId := strings.TrimSpace(r.RoomId)
	if roomId == "" {
		c.queueMessage(ErrValidation(msg.Id, "room_id is required"))
		return
	}

	if r.Content == "" {
		c.queueMessage(ErrValidation(msg.Id, "content is required"))
		return
	}

	senderId := strings.TrimSpace(r.SenderId)
	if senderId == "" {
		senderId = c.identity
	}
	if senderId == "" {
		c.queueMessage(ErrValidation(msg.Id, "sender_id is required"))
		return
	}

	rm := &types.RoomMessage{
		Id:               mr.generateMessageId(),
		RoomId:           roomId,
		SenderId:         senderId,
		EncryptedContent: r.Content,
		Timestamp:        msg.Timestamp,
	}

	mr.rs.persist.enqueue(func() error {
		return mr.rs.repo.CreateRoomMessage(database.RoomMessage{
			Id:               rm.Id,
			RoomId:           rm.RoomId,
			SenderId:         rm.SenderId,
			EncryptedContent: rm.EncryptedContent,
			Timestamp:        rm.Timestamp,
		})
	})

	event := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Message:     &NewMessage{Room: rm},
	}

	// Each member gets exactly one copy. The sender is echoed through
	// membership when subscribed, or explicitly otherwise.
	delivered := false
	for _, member := range mr.rs.roomMembers(roomId) {
		if member == c {
			delivered = true
		}
		member.queueMessage(event)
	}
	if !delivered {
		c.queueMessage(event)
	}

	mr.rs.stats.Incr(statRoomMessages)
}

func (mr *MessageRouter) handleJoin(msg *ClientMessage) {
	c := msg.client

	roomId := strings.TrimSpace(msg.Join.RoomId)
	if roomId == "" {
		c.queueMessage(ErrValidation(msg.Id, "room_id is required"))
		return
	}

	mr.rs.joinRoom(c, roomId)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": roomId}))
}
