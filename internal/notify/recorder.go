package notify

import (
	"context"
	"sync"
)

// Recorder keeps every message it is asked to send. Fail makes Send return
// the given error after recording, which lets tests check that delivery
// failures do not affect committed state.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Fail     error
}

// Send implements Notifier.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.Fail
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Count returns how many messages of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Recipients returns the recipients of messages of kind in send order.
func (r *Recorder) Recipients(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.messages {
		if m.Kind == kind {
			ids = append(ids, m.RecipientID)
		}
	}
	return ids
}

// Reset discards recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}
