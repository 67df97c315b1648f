package server

import (
	"fmt"
	"testing"

	"github.com/propertyhub/chatserver/internal/stats"
	"github.com/propertyhub/chatserver/internal/testutil"
	"github.com/propertyhub/chatserver/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestRoomManager(t *testing.T, su *stats.MockStatsUpdater) *RoomManager {
	return NewRoomManager(testutil.TestLogger(t), su)
}

func bareClient(t *testing.T, id int) *Client {
	return &Client{
		connId: fmt.Sprintf("conn-%d", id),
		log:    testutil.TestLogger(t),
		user:   types.User{Id: id},
		send:   make(chan *ServerMessage, 256),
		stop:   make(chan struct{}),
	}
}

func TestRoomManager_JoinLeave(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", metricActiveChatRooms).Once()
	su.On("Decr", metricActiveChatRooms).Once()
	defer su.AssertExpectations(t)

	rm := newTestRoomManager(t, su)
	alice := bareClient(t, 1)
	bob := bareClient(t, 2)

	rm.Join("c1", alice)
	rm.Join("c1", bob)
	assert.Len(t, rm.rooms["c1"], 2, "expected both clients in the group")

	rm.Leave("c1", alice)
	assert.Len(t, rm.rooms["c1"], 1, "expected one client after leave")

	rm.Leave("c1", bob)
	assert.NotContains(t, rm.rooms, "c1", "expected empty group to be destroyed")
	assert.Empty(t, rm.byClient, "expected reverse index to be cleaned up")
}

func TestRoomManager_LeaveUnknownRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	rm := newTestRoomManager(t, su)
	rm.Leave("nope", bareClient(t, 1))
}

func TestRoomManager_LeaveAll(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", metricActiveChatRooms).Times(2)
	su.On("Decr", metricActiveChatRooms).Times(2)
	defer su.AssertExpectations(t)

	rm := newTestRoomManager(t, su)
	alice := bareClient(t, 1)

	rm.Join("c1", alice)
	rm.Join("c2", alice)

	rm.LeaveAll(alice)
	assert.Empty(t, rm.rooms, "expected all groups destroyed after sole member left")
	assert.Empty(t, rm.byClient, "expected reverse index to be empty")
}

func TestRoomManager_Broadcast(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", metricActiveChatRooms).Once()
	defer su.AssertExpectations(t)

	rm := newTestRoomManager(t, su)
	alice := bareClient(t, 1)
	bob := bareClient(t, 2)
	carol := bareClient(t, 3)
	rm.Join("c1", alice)
	rm.Join("c1", bob)
	rm.Join("c1", carol)

	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &MessagePayload{SenderId: 1, Message: "hi", ChatId: "c1"},
	}
	delivered := rm.Broadcast("c1", msg, alice)
	assert.Equal(t, 2, delivered, "expected delivery to every member except skip")

	select {
	case <-alice.send:
		t.Error("expected skipped client to receive nothing")
	default:
	}
	for _, c := range []*Client{bob, carol} {
		select {
		case got := <-c.send:
			assert.Equal(t, msg, got, "expected broadcast message")
		default:
			t.Error("expected member to receive broadcast")
		}
	}
}

func TestRoomManager_BroadcastUnknownRoom(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	rm := newTestRoomManager(t, su)
	delivered := rm.Broadcast("nope", &ServerMessage{}, nil)
	assert.Zero(t, delivered, "expected no deliveries for unknown chat")
}
