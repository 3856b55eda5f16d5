package relay

import (
	"log"
	"strings"
)

// SignalingRelay forwards WebRTC negotiation payloads between peers.
// Payloads are opaque; the relay only routes them.
type SignalingRelay struct {
	rs  *RelayServer
	log *log.Logger
}

func NewSignalingRelay(rs *RelayServer, logger *log.Logger) *SignalingRelay {
	return &SignalingRelay{rs: rs, log: logger}
}

func (sr *SignalingRelay) handleCallRequest(msg *ClientMessage) {
	c := msg.client
	cr := msg.CallRequest

	to := strings.TrimSpace(cr.ToIdentity)
	if to == "" {
		c.queueMessage(ErrValidation(msg.Id, "to_identity is required"))
		return
	}

	if len(cr.Offer) == 0 {
		c.queueMessage(ErrValidation(msg.Id, "offer is required"))
		return
	}

	from := strings.TrimSpace(cr.FromIdentity)
	if from == "" {
		from = c.identity
	}

	targets := sr.callTargets(to, c)
	if len(targets) == 0 {
		sr.log.Printf("no reachable peer for call to %q, dropping offer", to)
		return
	}

	event := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		IncomingCall: &IncomingCall{
			FromIdentity: from,
			Offer:        cr.Offer,
		},
	}

	for _, target := range targets {
		target.queueMessage(event)
	}

	sr.rs.stats.Incr(statCallSignals)
}

func (sr *SignalingRelay) handleCallAnswer(msg *ClientMessage) {
	c := msg.client
	ca := msg.CallAnswer

	to := strings.TrimSpace(ca.ToIdentity)
	if to == "" {
		c.queueMessage(ErrValidation(msg.Id, "to_identity is required"))
		return
	}

	if len(ca.Answer) == 0 {
		c.queueMessage(ErrValidation(msg.Id, "answer is required"))
		return
	}

	targets := sr.callTargets(to, c)
	if len(targets) == 0 {
		sr.log.Printf("no reachable peer for answer to %q, dropping", to)
		return
	}

	event := &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: msg.Timestamp},
		CallAnswered: &CallAnswered{Answer: ca.Answer},
	}

	for _, target := range targets {
		target.queueMessage(event)
	}

	sr.rs.stats.Incr(statCallSignals)
}

// ICE candidates only make sense mid-negotiation, so they go to resolved
// connections and never fall back to room membership.
func (sr *SignalingRelay) handleIceCandidate(msg *ClientMessage) {
	c := msg.client
	ic := msg.IceCandidate

	to := strings.TrimSpace(ic.ToIdentity)
	if to == "" {
		c.queueMessage(ErrValidation(msg.Id, "to_identity is required"))
		return
	}

	if len(ic.Candidate) == 0 {
		c.queueMessage(ErrValidation(msg.Id, "candidate is required"))
		return
	}

	event := &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: msg.Timestamp},
		IceCandidate: &IceCandidate{Candidate: ic.Candidate},
	}

	for _, conn := range sr.rs.registry.Resolve(to) {
		if conn == c {
			continue
		}
		conn.queueMessage(event)
	}

	sr.rs.stats.Incr(statCallSignals)
}

// callTargets resolves the destination for an offer or answer. A single
// identified connection is an unambiguous peer. Otherwise the payload
// goes to every connection associated with the identity plus the members
// of the room sharing its name, deduplicated, so signaling still reaches
// peers that joined by room instead of identifying.
func (sr *SignalingRelay) callTargets(to string, origin *Client) []*Client {
	resolved := sr.rs.registry.Resolve(to)
	if len(resolved) == 1 && resolved[0] != origin {
		return resolved
	}

	seen := make(map[*Client]struct{})
	var targets []*Client
	for _, conn := range resolved {
		if conn == origin {
			continue
		}
		if _, ok := seen[conn]; ok {
			continue
		}
		seen[conn] = struct{}{}
		targets = append(targets, conn)
	}

	for _, member := range sr.rs.roomMembers(to) {
		if member == origin {
			continue
		}
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		targets = append(targets, member)
	}

	return targets
}
