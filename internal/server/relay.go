package server

import (
	"context"
)

// Topology selects how chat messages find their recipients.
type Topology string

const (
	// TopologyDirect resolves the receiver's connection through the
	// presence registry. This is the wiring for 1:1 marketplace chats.
	TopologyDirect Topology = "direct"
	// TopologyRoom broadcasts to the connections that joined the chat's
	// group, excluding the sender.
	TopologyRoom Topology = "room"
)

// Relay routes a send_message event to its recipients and always echoes a
// confirmation to the sender's own connection, whether or not anyone
// received the live copy. An offline receiver is a silent no-op: the REST
// path already persisted the message.
type Relay interface {
	RelayMessage(ctx context.Context, msg *ClientMessage)
}

type directRelay struct {
	cs *ChatServer
}

func (r *directRelay) RelayMessage(ctx context.Context, msg *ClientMessage) {
	sm := msg.SendMessage

	if connId, ok := r.cs.registry.LookupConnection(ctx, sm.ReceiverId); ok {
		if target, found := r.cs.getClient(connId); found {
			if target.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
				Message: &MessagePayload{
					SenderId:  sm.SenderId,
					Message:   sm.Message,
					ChatId:    sm.ChatId,
					Timestamp: msg.Timestamp,
				},
			}) {
				r.cs.stats.Incr(metricMessagesRelayed)
			}
		}
	}

	confirmDelivery(msg)
}

type roomRelay struct {
	cs *ChatServer
}

func (r *roomRelay) RelayMessage(_ context.Context, msg *ClientMessage) {
	sm := msg.SendMessage

	delivered := r.cs.rooms.Broadcast(sm.ChatId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Message: &MessagePayload{
			SenderId:  sm.SenderId,
			Message:   sm.Message,
			ChatId:    sm.ChatId,
			Timestamp: msg.Timestamp,
		},
	}, msg.client)
	for i := 0; i < delivered; i++ {
		r.cs.stats.Incr(metricMessagesRelayed)
	}

	confirmDelivery(msg)
}

func confirmDelivery(msg *ClientMessage) {
	sm := msg.SendMessage
	msg.client.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Confirmation: &Confirmation{
			SenderId:   sm.SenderId,
			ReceiverId: sm.ReceiverId,
			Message:    sm.Message,
			ChatId:     sm.ChatId,
			Timestamp:  msg.Timestamp,
		},
	})
}
