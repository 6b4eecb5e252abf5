package subscribe

import (
	"sync"
	"time"
)

func msg(channel string, tt uint64) Message {
	return Message{
		Type:      TypeMessage,
		Shard:     "1",
		Channel:   channel,
		Published: Cursor{Timetoken: tt, Region: 1},
		Payload:   []byte(`"hi"`),
	}
}

// stepClock fires every timer immediately and records the requested delays.
type stepClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, 0).Add(d)
	return ch
}

func (c *stepClock) requested() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// stuckClock never fires.
type stuckClock struct {
	asked chan time.Duration
}

func (c *stuckClock) After(d time.Duration) <-chan time.Time {
	if c.asked != nil {
		c.asked <- d
	}
	return make(chan time.Time)
}

// recorder is a Listener that keeps everything it is given.
type recorder struct {
	mu       sync.Mutex
	batches  []MessageBatch
	statuses []StatusEvent
}

func (r *recorder) OnMessages(b MessageBatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *recorder) OnStatus(s StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) gotBatches() []MessageBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageBatch(nil), r.batches...)
}

func (r *recorder) gotStatuses() []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusEvent(nil), r.statuses...)
}
