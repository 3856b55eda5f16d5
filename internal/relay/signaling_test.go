package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/stats"
)

func TestSignalingRelay_HandleCallRequest(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")
	bob := identifiedClient(rs, "bob")

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		CallRequest: &CallRequest{ToIdentity: "bob", Offer: offer},
		client:      alice,
	})

	msgs := drainMessages(bob)
	assert.Len(t, msgs, 1, "expected offer forwarded to bob")
	assert.NotNil(t, msgs[0].IncomingCall, "expected incoming_call event")
	assert.Equal(t, "alice", msgs[0].IncomingCall.FromIdentity, "expected caller identity defaulted from connection")
	assert.JSONEq(t, string(offer), string(msgs[0].IncomingCall.Offer), "expected offer forwarded verbatim")

	assert.Empty(t, drainMessages(alice), "expected no echo of signaling payloads")
}

func TestSignalingRelay_HandleCallRequestRoomFallback(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Times(3)
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")

	// bob never identified but two of his devices joined the room named
	// after his identity
	dev1 := newTestClient(rs)
	dev2 := newTestClient(rs)
	rs.AddClient(dev1)
	rs.AddClient(dev2)
	rs.joinRoom(dev1, "bob")
	rs.joinRoom(dev2, "bob")

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		CallRequest: &CallRequest{ToIdentity: "bob", FromIdentity: "alice", Offer: json.RawMessage(`{}`)},
		client:      alice,
	})

	assert.Len(t, drainMessages(dev1), 1, "expected offer via room membership")
	assert.Len(t, drainMessages(dev2), 1, "expected offer via room membership")
}

func TestSignalingRelay_HandleCallRequestDedup(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Times(3)
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")

	// both connections identified as bob and both joined the bob room,
	// so resolution is ambiguous and the union path runs
	bob1 := identifiedClient(rs, "bob")
	bob2 := identifiedClient(rs, "bob")
	rs.joinRoom(bob1, "bob")
	rs.joinRoom(bob2, "bob")

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		CallRequest: &CallRequest{ToIdentity: "bob", Offer: json.RawMessage(`{}`)},
		client:      alice,
	})

	assert.Len(t, drainMessages(bob1), 1, "expected exactly one offer despite dual membership")
	assert.Len(t, drainMessages(bob2), 1, "expected exactly one offer despite dual membership")
}

func TestSignalingRelay_HandleCallRequestOfflineTarget(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")

	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		CallRequest: &CallRequest{ToIdentity: "bob", Offer: json.RawMessage(`{}`)},
		client:      alice,
	})

	// unreachable peer drops the offer without an error
	assert.Empty(t, drainMessages(alice), "expected silent drop for unreachable callee")
}

func TestSignalingRelay_HandleCallRequestValidation(t *testing.T) {
	tt := []struct {
		name    string
		request *CallRequest
	}{
		{
			name:    "missing to_identity",
			request: &CallRequest{Offer: json.RawMessage(`{}`)},
		},
		{
			name:    "missing offer",
			request: &CallRequest{ToIdentity: "bob"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			su := &stats.MockStatsUpdater{}
			su.On("Incr", "NumActiveConnections").Once()
			defer su.AssertExpectations(t)

			rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)
			alice := identifiedClient(rs, "alice")

			rs.dispatch(&ClientMessage{
				BaseMessage: BaseMessage{Id: 2},
				CallRequest: tc.request,
				client:      alice,
			})

			msgs := drainMessages(alice)
			assert.Len(t, msgs, 1, "expected a single error response")
			assert.Equal(t, 400, msgs[0].Response.ResponseCode, "expected bad request code")
		})
	}
}

func TestSignalingRelay_HandleCallAnswer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")
	bob := identifiedClient(rs, "bob")

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0..."}`)
	rs.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		CallAnswer:  &CallAnswer{ToIdentity: "alice", Answer: answer},
		client:      bob,
	})

	msgs := drainMessages(alice)
	assert.Len(t, msgs, 1, "expected answer forwarded to caller")
	assert.NotNil(t, msgs[0].CallAnswered, "expected call_answered event")
	assert.JSONEq(t, string(answer), string(msgs[0].CallAnswered.Answer), "expected answer forwarded verbatim")
}

func TestSignalingRelay_HandleIceCandidate(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")
	bob := identifiedClient(rs, "bob")

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP ..."}`)
	rs.dispatch(&ClientMessage{
		BaseMessage:  BaseMessage{Id: 1},
		IceCandidate: &IceCandidate{ToIdentity: "bob", Candidate: candidate},
		client:       alice,
	})

	msgs := drainMessages(bob)
	assert.Len(t, msgs, 1, "expected candidate forwarded")
	assert.NotNil(t, msgs[0].IceCandidate, "expected ice_candidate event")
	assert.JSONEq(t, string(candidate), string(msgs[0].IceCandidate.Candidate), "expected candidate forwarded verbatim")
}

func TestSignalingRelay_HandleIceCandidateNoRoomFallback(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumActiveConnections").Twice()
	su.On("Incr", "NumCallSignals").Once()
	defer su.AssertExpectations(t)

	rs := newTestRelayServer(t, &database.MockDechatRepository{}, su)

	alice := identifiedClient(rs, "alice")

	// a room member who never identified as bob must not receive
	// candidates addressed to bob
	member := newTestClient(rs)
	rs.AddClient(member)
	rs.joinRoom(member, "bob")

	rs.dispatch(&ClientMessage{
		BaseMessage:  BaseMessage{Id: 1},
		IceCandidate: &IceCandidate{ToIdentity: "bob", Candidate: json.RawMessage(`{}`)},
		client:       alice,
	})

	assert.Empty(t, drainMessages(member), "expected no room fallback for ice candidates")
}
