package relay

import (
	"log"
	"strings"
	"sync"

	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/stats"
)

const (
	statActiveConnections = "NumActiveConnections"
	statIdentifiedUsers   = "NumIdentifiedUsers"
	statDirectMessages    = "NumDirectMessages"
	statRoomMessages      = "NumRoomMessages"
	statCallSignals       = "NumCallSignals"
	statPersistFailures   = "NumPersistFailures"
	statPersistDrops      = "NumDroppedWrites"
)

// RelayServer owns the connection set and ties the presence registry,
// router and signaling relay together. Membership changes and delivery
// are synchronous; only persistence runs on the worker queue.
type RelayServer struct {
	log       *log.Logger
	repo      database.DechatRepository
	stats     stats.StatsProvider
	registry  *PresenceRegistry
	router    *MessageRouter
	signaling *SignalingRelay
	persist   *persistQueue

	clientsMu sync.Mutex
	clients   map[*Client]struct{}

	roomsMu sync.RWMutex
	rooms   map[string]map[*Client]struct{}
}

func NewRelayServer(logger *log.Logger, repo database.DechatRepository, statser stats.StatsProvider) *RelayServer {
	rs := &RelayServer{
		log:      logger,
		repo:     repo,
		stats:    statser,
		registry: NewPresenceRegistry(),
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
	}
	rs.router = NewMessageRouter(rs, logger)
	rs.signaling = NewSignalingRelay(rs, logger)
	rs.persist = newPersistQueue(logger, statser, defaultPersistWorkers)

	for _, name := range []string{
		statActiveConnections,
		statIdentifiedUsers,
		statDirectMessages,
		statRoomMessages,
		statCallSignals,
		statPersistFailures,
		statPersistDrops,
	} {
		statser.RegisterMetric(name)
	}

	return rs
}

func (rs *RelayServer) Run() {
	rs.persist.run()
}

func (rs *RelayServer) Shutdown() {
	rs.log.Println("received shutdown signal")

	rs.clientsMu.Lock()
	for c := range rs.clients {
		c.stopClient()
	}
	rs.clientsMu.Unlock()

	rs.persist.stop()
}

// AddClient registers a new anonymous connection. The connection stays
// invisible to presence until it identifies.
func (rs *RelayServer) AddClient(c *Client) {
	rs.clientsMu.Lock()
	rs.clients[c] = struct{}{}
	rs.clientsMu.Unlock()

	rs.stats.Incr(statActiveConnections)
}

func (rs *RelayServer) removeClient(c *Client) {
	rs.clientsMu.Lock()
	_, ok := rs.clients[c]
	delete(rs.clients, c)
	rs.clientsMu.Unlock()

	if !ok {
		return
	}
	rs.stats.Decr(statActiveConnections)

	rs.leaveAllRooms(c)

	identity, wasLast := rs.registry.Unregister(c)
	if identity != "" {
		rs.stats.Decr(statIdentifiedUsers)
	}
	if wasLast {
		rs.log.Printf("%q went offline", identity)
		rs.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			UserLeft:    &PresenceChange{Identity: identity},
		}, c)
		rs.broadcastSnapshot(c)
	}
}

func (rs *RelayServer) dispatch(msg *ClientMessage) {
	c := msg.client

	// Exactly one event per envelope. A payload carrying two modes has
	// no unambiguous intent, so it is rejected rather than guessed at.
	events := 0
	for _, set := range []bool{
		msg.Identify != nil,
		msg.Direct != nil,
		msg.Room != nil,
		msg.Join != nil,
		msg.CallRequest != nil,
		msg.CallAnswer != nil,
		msg.IceCandidate != nil,
	} {
		if set {
			events++
		}
	}
	if events != 1 {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	switch {
	case msg.Identify != nil:
		rs.handleIdentify(msg)
	case msg.Direct != nil:
		rs.router.handleDirect(msg)
	case msg.Room != nil:
		rs.router.handleRoom(msg)
	case msg.Join != nil:
		rs.router.handleJoin(msg)
	case msg.CallRequest != nil:
		rs.signaling.handleCallRequest(msg)
	case msg.CallAnswer != nil:
		rs.signaling.handleCallAnswer(msg)
	case msg.IceCandidate != nil:
		rs.signaling.handleIceCandidate(msg)
	}
}

func (rs *RelayServer) handleIdentify(msg *ClientMessage) {
	c := msg.client

	identity := strings.TrimSpace(msg.Identify.Identity)
	if identity == "" {
		c.queueMessage(ErrValidation(msg.Id, "identity is required"))
		return
	}

	if c.identity == identity {
		c.queueMessage(rs.snapshotMessage())
		return
	}

	changed := false
	if c.identity != "" {
		// Re-identify rebinds the connection: the old identity's presence
		// drops first if this was its last connection.
		old, wasLast := rs.registry.Unregister(c)
		if wasLast {
			rs.broadcast(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				UserLeft:    &PresenceChange{Identity: old},
			}, c)
			changed = true
		}
	} else {
		rs.stats.Incr(statIdentifiedUsers)
	}

	first := rs.registry.Register(identity, c)
	c.identity = identity
	rs.log.Printf("connection identified as %q", identity)

	if first {
		rs.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			UserJoined:  &PresenceChange{Identity: identity},
		}, c)
		changed = true
	}

	c.queueMessage(rs.snapshotMessage())
	if changed {
		rs.broadcastSnapshot(c)
	}
}

func (rs *RelayServer) snapshotMessage() *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Snapshot:    &PresenceSnapshot{Identities: rs.registry.Snapshot()},
	}
}

func (rs *RelayServer) broadcastSnapshot(skip *Client) {
	rs.broadcast(rs.snapshotMessage(), skip)
}

func (rs *RelayServer) broadcast(msg *ServerMessage, skip *Client) {
	rs.clientsMu.Lock()
	defer rs.clientsMu.Unlock()

	for c := range rs.clients {
		if c == skip {
			continue
		}
		c.queueMessage(msg)
	}
}

func (rs *RelayServer) joinRoom(c *Client, roomId string) {
	rs.roomsMu.Lock()
	defer rs.roomsMu.Unlock()

	members, ok := rs.rooms[roomId]
	if !ok {
		members = make(map[*Client]struct{})
		rs.rooms[roomId] = members
	}
	members[c] = struct{}{}
}

func (rs *RelayServer) leaveAllRooms(c *Client) {
	rs.roomsMu.Lock()
	defer rs.roomsMu.Unlock()

	for roomId, members := range rs.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(rs.rooms, roomId)
		}
	}
}

func (rs *RelayServer) roomMembers(roomId string) []*Client {
	rs.roomsMu.RLock()
	defer rs.roomsMu.RUnlock()

	set, ok := rs.rooms[roomId]
	if !ok {
		return nil
	}

	members := make([]*Client, 0, len(set))
	for c := range set {
		members = append(members, c)
	}
	return members
}
