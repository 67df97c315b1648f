package server

import (
	"testing"

	"github.com/propertyhub/chatserver/internal/stats"
	"github.com/propertyhub/chatserver/internal/testutil"
	"github.com/propertyhub/chatserver/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_dispatch(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su, TopologyDirect)
	client := newTestClient(t, cs, types.User{Id: 1, Username: "alice"})

	tcases := []struct {
		name   string
		msg    *ClientMessage
		target chan *ClientMessage
	}{
		{
			name:   "registration routes to presence channel",
			msg:    &ClientMessage{NewUser: &NewUser{UserId: 1}},
			target: cs.presenceChan,
		},
		{
			name:   "send message routes to relay channel",
			msg:    &ClientMessage{SendMessage: &SendMessage{ReceiverId: 2, SenderId: 1, Message: "hi", ChatId: "c1"}},
			target: cs.relayChan,
		},
		{
			name:   "typing routes to typing channel",
			msg:    &ClientMessage{Typing: &Typing{ReceiverId: 2, SenderId: 1, IsTyping: true}},
			target: cs.typingChan,
		},
		{
			name:   "join chat routes to room channel",
			msg:    &ClientMessage{JoinChat: &JoinChat{ChatId: "c1"}},
			target: cs.roomChan,
		},
		{
			name:   "leave chat routes to room channel",
			msg:    &ClientMessage{LeaveChat: &LeaveChat{ChatId: "c1"}},
			target: cs.roomChan,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			tc.msg.client = client
			client.dispatch(tc.msg)

			select {
			case got := <-tc.target:
				assert.Equal(t, tc.msg, got, "expected event on target channel")
			default:
				t.Fatal("expected event to be queued")
			}
		})
	}
}

func Test_dispatch_dropped(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su, TopologyDirect)
	client := newTestClient(t, cs, types.User{Id: 1, Username: "alice"})

	t.Run("registration for another user is dropped", func(t *testing.T) {
		client.dispatch(&ClientMessage{NewUser: &NewUser{UserId: 99}, client: client})

		select {
		case <-cs.presenceChan:
			t.Fatal("expected spoofed registration to be dropped")
		default:
		}
	})

	t.Run("event with no payload is dropped", func(t *testing.T) {
		client.dispatch(&ClientMessage{client: client})

		for _, ch := range []chan *ClientMessage{cs.presenceChan, cs.relayChan, cs.typingChan, cs.roomChan} {
			select {
			case <-ch:
				t.Fatal("expected empty event to be dropped")
			default:
			}
		}
	})
}

func Test_queueMessage(t *testing.T) {
	client := &Client{
		send: make(chan *ServerMessage, 1),
		log:  testutil.TestLogger(t),
	}

	msg := &ServerMessage{BaseMessage: BaseMessage{Timestamp: Now()}}
	assert.True(t, client.queueMessage(msg), "expected queue to accept message")
	assert.False(t, client.queueMessage(msg), "expected full queue to drop message")
}

func Test_stopClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su, TopologyDirect)
	client := newTestClient(t, cs, types.User{Id: 1})

	client.stopClient()
	select {
	case <-client.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}

	// idempotent
	client.stopClient()
}
