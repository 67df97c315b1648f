package chatclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *typingRecorder) emit(isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, isTyping)
}

func (r *typingRecorder) all() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestTypingNotifier_SelfExpiry(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(rec.emit)
	n.quiet = 20 * time.Millisecond

	n.Touch()
	assert.Equal(t, []bool{true}, rec.all(), "expected first keystroke to start the indicator")

	// further keystrokes do not re-emit
	n.Touch()
	n.Touch()
	assert.Equal(t, []bool{true}, rec.all(), "expected no duplicate started-typing events")

	assert.Eventually(t, func() bool {
		events := rec.all()
		return len(events) == 2 && !events[1]
	}, time.Second, 5*time.Millisecond, "expected exactly one stopped-typing event after the quiet period")

	// nothing more after expiry
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.all(), "expected no further events")
}

func TestTypingNotifier_KeystrokeExtendsQuietPeriod(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(rec.emit)
	n.quiet = 50 * time.Millisecond

	n.Touch()
	time.Sleep(30 * time.Millisecond)
	n.Touch()
	time.Sleep(30 * time.Millisecond)

	// 60ms after the first keystroke but only 30ms after the second
	assert.Equal(t, []bool{true}, rec.all(), "expected indicator to still be active")

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, 5*time.Millisecond, "expected stop after the extended quiet period")
}

func TestTypingNotifier_Stop(t *testing.T) {
	rec := &typingRecorder{}
	n := NewTypingNotifier(rec.emit)
	n.quiet = time.Hour

	n.Touch()
	n.Stop()
	assert.Equal(t, []bool{true, false}, rec.all(), "expected immediate stop")

	// stop without an outstanding indicator is a no-op
	n.Stop()
	assert.Equal(t, []bool{true, false}, rec.all(), "expected no event for redundant stop")

	// the cancelled timer must not fire later
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.all(), "expected no stray timer event")
}
