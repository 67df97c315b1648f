package chatclient

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingMessage is an optimistic insert awaiting acknowledgement.
type PendingMessage struct {
	TempId string
	ChatId string
	Text   string
	SentAt time.Time
}

// Outbox tracks messages shown in the UI before the server has
// acknowledged them. Acknowledgement can arrive twice, once from the
// REST response and once from the socket confirmation, in either
// order; Confirm settles the pending entry on the first and is a no-op
// on the second.
type Outbox struct {
	mu      sync.Mutex
	pending map[string]PendingMessage
	order   []string
}

func NewOutbox() *Outbox {
	return &Outbox{
		pending: make(map[string]PendingMessage),
	}
}

// Add records an optimistic message and returns it with a temporary id
// the UI can key the provisional entry on.
func (o *Outbox) Add(chatId, text string) PendingMessage {
	msg := PendingMessage{
		TempId: uuid.NewString(),
		ChatId: chatId,
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	o.mu.Lock()
	o.pending[msg.TempId] = msg
	o.order = append(o.order, msg.TempId)
	o.mu.Unlock()

	return msg
}

// Confirm settles the oldest pending message matching the chat and
// text, returning it so the UI can swap the provisional entry for the
// acknowledged one. Returns false when nothing matches, which is the
// normal case for the second of two racing acknowledgements.
func (o *Outbox) Confirm(chatId, text string) (PendingMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, tempId := range o.order {
		msg, ok := o.pending[tempId]
		if !ok {
			continue
		}
		if msg.ChatId == chatId && msg.Text == text {
			delete(o.pending, tempId)
			o.order = append(o.order[:i], o.order[i+1:]...)
			return msg, true
		}
	}

	return PendingMessage{}, false
}

// Fail removes a pending message that could not be delivered so the UI
// can roll the provisional entry back. Idempotent.
func (o *Outbox) Fail(tempId string) (PendingMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	msg, ok := o.pending[tempId]
	if !ok {
		return PendingMessage{}, false
	}

	delete(o.pending, tempId)
	for i, id := range o.order {
		if id == tempId {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}

	return msg, true
}

// Pending returns the unacknowledged messages in send order.
func (o *Outbox) Pending() []PendingMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := make([]PendingMessage, 0, len(o.order))
	for _, tempId := range o.order {
		if msg, ok := o.pending[tempId]; ok {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}
