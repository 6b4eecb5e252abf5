package testutil

import (
	"sync"

	"github.com/roach88/longpoll/internal/subscribe"
)

// RecordingListener is a subscribe.Listener that keeps every emission.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingListener struct {
	mu       sync.Mutex
	batches  []subscribe.MessageBatch
	statuses []subscribe.StatusEvent
}

// NewRecordingListener creates an empty recorder.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{}
}

// OnMessages implements subscribe.Listener.
func (l *RecordingListener) OnMessages(b subscribe.MessageBatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, b)
}

// OnStatus implements subscribe.Listener.
func (l *RecordingListener) OnStatus(s subscribe.StatusEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

// Batches returns a copy of the delivered batches.
func (l *RecordingListener) Batches() []subscribe.MessageBatch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]subscribe.MessageBatch(nil), l.batches...)
}

// Messages returns every delivered message in delivery order.
func (l *RecordingListener) Messages() []subscribe.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []subscribe.Message
	for _, b := range l.batches {
		out = append(out, b.Messages...)
	}
	return out
}

// Statuses returns a copy of the delivered status events.
func (l *RecordingListener) Statuses() []subscribe.StatusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]subscribe.StatusEvent(nil), l.statuses...)
}

// ConnectionStatuses returns the New status of every connectionChanged
// event, in order.
func (l *RecordingListener) ConnectionStatuses() []subscribe.ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []subscribe.ConnectionStatus
	for _, s := range l.statuses {
		if s.Category == subscribe.CategoryConnectionChanged {
			out = append(out, s.Status)
		}
	}
	return out
}
