package chatclient

import (
	"sync"
	"time"
)

// typingQuietPeriod is how long after the last keystroke the typing
// indicator self-expires.
const typingQuietPeriod = 2 * time.Second

// TypingNotifier turns a stream of keystrokes into at most one
// started-typing and one stopped-typing notification. Touch on the
// first keystroke emits true; the stop is emitted exactly once, either
// when the quiet period elapses with no further keystrokes or when
// Stop is called (message sent, chat closed), whichever comes first.
type TypingNotifier struct {
	quiet time.Duration
	emit  func(isTyping bool)

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func NewTypingNotifier(emit func(isTyping bool)) *TypingNotifier {
	return &TypingNotifier{
		quiet: typingQuietPeriod,
		emit:  emit,
	}
}

// Touch records a keystroke, emitting a started-typing notification if
// one is not already outstanding and pushing the self-expiry out.
func (t *TypingNotifier) Touch() {
	t.mu.Lock()
	wasActive := t.active
	t.active = true

	if t.timer == nil {
		t.timer = time.AfterFunc(t.quiet, t.expire)
	} else {
		t.timer.Reset(t.quiet)
	}
	t.mu.Unlock()

	if !wasActive {
		t.emit(true)
	}
}

// Stop ends the typing indicator immediately. A no-op when no
// indicator is outstanding.
func (t *TypingNotifier) Stop() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	if wasActive {
		t.emit(false)
	}
}

func (t *TypingNotifier) expire() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	t.mu.Unlock()

	if wasActive {
		t.emit(false)
	}
}
