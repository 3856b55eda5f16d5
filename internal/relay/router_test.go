package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/stats"
)

// runQueuedPersists executes every queued storage write synchronously.
func runQueuedPersists(t *testing.T, rs *RelayServer) {
	t.Helper()
	for {
		select {
		case job := <-rs.persist.jobs:
			if err := job(); err != nil {
				t.Logf("persist job returned error: %v", err)
			}
		default:
			return
		}
	}
}

func identifiedClient(rs *RelayServer, identity string) *Client {
	c := newTestClient(rs)
	rs.AddClient(c)
	c.identity = identity
	rs.registry.Register(identity, c)
	return c
}

func TestMessageRouter_HandleDirect(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Times(3)
	su.On("Incr", "NumDirectMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "msg-1" }

	alice := identifiedClient(rs, "alice")
	bobPhone := identifiedClient(rs, "bob")
	bobLaptop := identifiedClient(rs, "bob")

	db.On("CreateDirectMessage", database.DirectMessage{
		Id:             "msg-1",
		ConversationId: "alice::bob",
		Sender:         "alice",
		Recipient:      "bob",
		Text:           "hey bob",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Direct:      &SendDirect{Sender: "alice", Recipient: "bob", Text: "hey bob"},
		client:      alice,
	})

	for name, c := range map[string]*Client{"phone": bobPhone, "laptop": bobLaptop} {
		msgs := drainMessages(c)
		assert.Len(t, msgs, 1, "expected exactly one copy on bob's %s", name)
		assert.NotNil(t, msgs[0].Message, "expected new_message event")
		assert.Equal(t, "hey bob", msgs[0].Message.Direct.Text, "expected message text")
		assert.Equal(t, "alice::bob", msgs[0].Message.Direct.ConversationId, "expected canonical conversation id")
	}

	msgs := drainMessages(alice)
	assert.Len(t, msgs, 1, "expected exactly one echo to the sender")
	assert.Equal(t, "msg-1", msgs[0].Message.Direct.Id, "expected echo of the same message")

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleDirectOfflineRecipient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Incr", "NumDirectMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "msg-2" }

	alice := identifiedClient(rs, "alice")

	db.On("CreateDirectMessage", database.DirectMessage{
		Id:             "msg-2",
		ConversationId: "alice::bob",
		Sender:         "alice",
		Recipient:      "bob",
		Text:           "you there?",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Direct:      &SendDirect{Recipient: "bob", Text: "you there?"},
		client:      alice,
	})

	// delivery fails silently but the sender still gets the echo and the
	// message is still persisted for later history
	msgs := drainMessages(alice)
	assert.Len(t, msgs, 1, "expected exactly one echo despite offline recipient")
	assert.NotNil(t, msgs[0].Message.Direct, "expected direct message echo")

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleDirectSelfMessage(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Incr", "NumDirectMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "msg-3" }

	alice := identifiedClient(rs, "alice")

	db.On("CreateDirectMessage", database.DirectMessage{
		Id:             "msg-3",
		ConversationId: "alice::alice",
		Sender:         "alice",
		Recipient:      "alice",
		Text:           "note to self",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Direct:      &SendDirect{Recipient: "alice", Text: "note to self"},
		client:      alice,
	})

	msgs := drainMessages(alice)
	assert.Len(t, msgs, 1, "expected a single copy when messaging yourself")

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleDirectValidation(t *testing.T) {
	tt := []struct {
		name     string
		identity string
		direct   *SendDirect
	}{
		{
			name:   "unidentified sender",
			direct: &SendDirect{Recipient: "bob", Text: "hi"},
		},
		{
			name:     "sender mismatch",
			identity: "alice",
			direct:   &SendDirect{Sender: "mallory", Recipient: "bob", Text: "hi"},
		},
		{
			name:     "missing recipient",
			identity: "alice",
			direct:   &SendDirect{Text: "hi"},
		},
		{
			name:     "missing text",
			identity: "alice",
			direct:   &SendDirect{Recipient: "bob"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			su := &stats.MockStatsUpdater{}
			su.On("Incr", "NumActiveConnections").Once()
			defer su.AssertExpectations(t)

			db := &database.MockDechatRepository{}
			defer db.AssertExpectations(t)

			rs := newTestRelayServer(t, db, su)

			c := newTestClient(rs)
			rs.AddClient(c)
			if tc.identity != "" {
				c.identity = tc.identity
				rs.registry.Register(tc.identity, c)
			}

			rs.dispatch(&ClientMessage{
				BaseMessage: BaseMessage{Id: 9},
				Direct:      tc.direct,
				client:      c,
			})

			msgs := drainMessages(c)
			assert.Len(t, msgs, 1, "expected a single error response")
			assert.NotNil(t, msgs[0].Response, "expected response message")
			assert.Equal(t, 400, msgs[0].Response.ResponseCode, "expected bad request code")
			assert.Equal(t, 9, msgs[0].Id, "expected response correlated to request id")
			assert.Empty(t, rs.persist.jobs, "expected no persist job for rejected message")
		})
	}
}

func TestMessageRouter_HandleRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Times(3)
	su.On("Incr", "NumRoomMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "room-msg-1" }

	sender := identifiedClient(rs, "alice")
	member1 := identifiedClient(rs, "bob")
	member2 := identifiedClient(rs, "carol")
	for _, c := range []*Client{sender, member1, member2} {
		rs.joinRoom(c, "general")
	}

	db.On("CreateRoomMessage", database.RoomMessage{
		Id:               "room-msg-1",
		RoomId:           "general",
		SenderId:         "alice",
		EncryptedContent: "ciphertext",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Room:        &SendRoom{RoomId: "general", Content: "ciphertext"},
		client:      sender,
	})

	for _, c := range []*Client{sender, member1, member2} {
		msgs := drainMessages(c)
		assert.Len(t, msgs, 1, "expected exactly one copy per member, sender included")
		assert.NotNil(t, msgs[0].Message.Room, "expected room message event")
		assert.Equal(t, "ciphertext", msgs[0].Message.Room.EncryptedContent, "expected opaque content untouched")
		assert.Equal(t, "alice", msgs[0].Message.Room.SenderId, "expected sender id defaulted from identity")
	}

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleRoomNonMemberSender(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumRoomMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "room-msg-2" }

	sender := identifiedClient(rs, "alice")
	member := identifiedClient(rs, "bob")
	rs.joinRoom(member, "general")

	db.On("CreateRoomMessage", database.RoomMessage{
		Id:               "room-msg-2",
		RoomId:           "general",
		SenderId:         "alice",
		EncryptedContent: "ciphertext",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Room:        &SendRoom{RoomId: "general", Content: "ciphertext"},
		client:      sender,
	})

	assert.Len(t, drainMessages(member), 1, "expected one copy to the member")
	assert.Len(t, drainMessages(sender), 1, "expected exactly one echo to the non-member sender")

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleRoomValidation(t *testing.T) {
	tt := []struct {
		name string
		room *SendRoom
	}{
		{
			name: "missing room id",
			room: &SendRoom{Content: "ciphertext"},
		},
		{
			name: "missing content",
			room: &SendRoom{RoomId: "general"},
		},
		{
			name: "no resolvable sender",
			room: &SendRoom{RoomId: "general", Content: "ciphertext"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			su := &stats.MockStatsUpdater{}
			su.On("Incr", "NumActiveConnections").Once()
			defer su.AssertExpectations(t)

			rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

			c := newTestClient(rs)
			rs.AddClient(c)
			if tc.name != "no resolvable sender" {
				c.identity = "alice"
			}

			rs.dispatch(&ClientMessage{
				BaseMessage: BaseMessage{Id: 3},
				Room:        tc.room,
				client:      c,
			})

			msgs := drainMessages(c)
			assert.Len(t, msgs, 1, "expected a single error response")
			assert.Equal(t, 400, msgs[0].Response.ResponseCode, "expected bad request code")
			assert.Empty(t, rs.persist.jobs, "expected no persist job for rejected message")
		})
	}
}

func TestMessageRouter_HandleRoomExplicitSenderId(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	su.On("Incr", "NumRoomMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)

	rs := newTestRelayServer(t, db, su)
	rs.router.generateMessageId = func() string { return "room-msg-3" }

	// anonymous connection with an explicit sender id in the payload
	c := newTestClient(rs)
	rs.AddClient(c)
	rs.joinRoom(c, "general")

	db.On("CreateRoomMessage", database.RoomMessage{
		Id:               "room-msg-3",
		RoomId:           "general",
		SenderId:         "alice",
		EncryptedContent: "ciphertext",
	}).Return(nil).Once()

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Room:        &SendRoom{RoomId: "general", SenderId: "alice", Content: "ciphertext"},
		client:      c,
	})

	assert.Len(t, drainMessages(c), 1, "expected one copy through room membership")

	runQueuedPersists(t, rs)
}

func TestMessageRouter_HandleJoin(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	c := newTestClient(rs)
	rs.AddClient(c)

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 4},
		Join:        &JoinRoom{RoomId: "general"},
		client:      c,
	})

	assert.Equal(t, []*Client{c}, rs.roomMembers("general"), "expected membership recorded")

	msgs := drainMessages(c)
	assert.Len(t, msgs, 1, "expected join acknowledgment")
	assert.Equal(t, 200, msgs[0].Response.ResponseCode, "expected ok response")
	assert.Equal(t, "general", msgs[0].Response.Data["room_id"], "expected room id in response data")
}

func TestMessageRouter_PersistFailureDoesNotBlockDelivery(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumDirectMessages").Once()
	defer su.AssertExpectations(t)

	db := &database.MockDechatRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateDirectMessage", mock.Anything).Return(errors.New("connection refused")).Once()

	rs := newTestRelayServer(t, db, su)

	alice := identifiedClient(rs, "alice")
	bob := identifiedClient(rs, "bob")

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Direct:      &SendDirect{Recipient: "bob", Text: "hi"},
		client:      alice,
	})

	assert.Len(t, drainMessages(bob), 1, "expected delivery despite failing storage")
	assert.Len(t, drainMessages(alice), 1, "expected echo despite failing storage")

	job := <-rs.persist.jobs
	assert.Error(t, job(), "expected storage error surfaced to the worker")
}
