package subscribe

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheCapacity is the dedup window used when none is configured.
const DefaultCacheCapacity = 100

// Fingerprint identifies a message for duplicate suppression: the shard, the
// publish timetoken and the channel.
func Fingerprint(m Message) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(m.Shard)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strconv.FormatUint(m.Published.Timetoken, 10))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(m.Channel)
	return d.Sum64()
}

// MessageCache is a bounded, insertion-ordered set of message fingerprints.
//
// When an insert brings the cache up to capacity the oldest fingerprints are
// evicted, so between inserts it holds at most capacity-1 entries. A cache of
// capacity 1 keeps the most recent fingerprint.
//
// MessageCache is not safe for concurrent use. The engine only touches it
// from the inline emitMessages effect, which runs on the engine goroutine.
type MessageCache struct {
	capacity int
	ring     []uint64
	head     int
	size     int
	index    map[uint64]struct{}
}

// NewMessageCache creates a cache. A capacity <= 0 disables caching.
func NewMessageCache(capacity int) *MessageCache {
	if capacity < 0 {
		capacity = 0
	}
	return &MessageCache{
		capacity: capacity,
		ring:     make([]uint64, capacity),
		index:    make(map[uint64]struct{}, capacity),
	}
}

// Capacity returns the configured capacity.
func (c *MessageCache) Capacity() int {
	return c.capacity
}

// Len returns the number of cached fingerprints.
func (c *MessageCache) Len() int {
	return c.size
}

// Contains reports whether fp is cached.
func (c *MessageCache) Contains(fp uint64) bool {
	_, ok := c.index[fp]
	return ok
}

// Insert adds fp, evicting the oldest entries once the cache is full.
// Inserting a cached fingerprint is a no-op.
func (c *MessageCache) Insert(fp uint64) {
	if c.capacity == 0 || c.Contains(fp) {
		return
	}

	if c.size == c.capacity {
		c.evictOldest()
	}
	c.ring[(c.head+c.size)%c.capacity] = fp
	c.size++
	c.index[fp] = struct{}{}

	for c.size >= c.capacity && c.size > 1 {
		c.evictOldest()
	}
}

func (c *MessageCache) evictOldest() {
	delete(c.index, c.ring[c.head])
	c.head = (c.head + 1) % c.capacity
	c.size--
}

// Seen checks m against the cache and records it. It returns true if m is a
// duplicate.
func (c *MessageCache) Seen(m Message) bool {
	fp := Fingerprint(m)
	if c.Contains(fp) {
		return true
	}
	c.Insert(fp)
	return false
}
