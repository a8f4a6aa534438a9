package segment

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/transport/compress"
)

const (
	// DefaultReadBufferExpiry is how long an incomplete message is kept.
	DefaultReadBufferExpiry = 10 * time.Second

	// DefaultMaxPending is how many incomplete messages are kept at once.
	// The least recently touched one is evicted when another arrives.
	DefaultMaxPending = 64
)

// MaxSegments returns the largest segment count accepted for one message,
// enough for compress.DefaultMaxMessageSize bytes of payload.
func MaxSegments() int {
	return (compress.DefaultMaxMessageSize + maxPayloadSize - 1) / maxPayloadSize
}

// ReadBuffers reassembles segmented datagrams. It is safe for concurrent use.
type ReadBuffers struct {
	mu      sync.Mutex
	pending *simplelru.LRU[uint32, *ReadBuffer]
	expiry  time.Duration
	clock   clock.Clock
}

// NewReadBuffers returns empty ReadBuffers. A zero expiry selects
// DefaultReadBufferExpiry, a nil clock the wall clock, and a non-positive
// maxPending DefaultMaxPending.
func NewReadBuffers(expiry time.Duration, clk clock.Clock, maxPending int) *ReadBuffers {
	if expiry == 0 {
		expiry = DefaultReadBufferExpiry
	}
	if clk == nil {
		clk = clock.New()
	}
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	// size is positive, so NewLRU cannot fail.
	pending, _ := simplelru.NewLRU[uint32, *ReadBuffer](maxPending, nil)
	return &ReadBuffers{
		pending: pending,
		expiry:  expiry,
		clock:   clk,
	}
}

// Receive adds one datagram. It returns the whole message and true once
// every segment of its sequence number has arrived.
//
// Datagrams announcing more than MaxSegments segments are rejected with
// errors.ErrMessageTooLarge before anything is buffered.
func (t *ReadBuffers) Receive(bs []byte) ([]byte, bool, error) {
	if len(bs) < headerSize {
		return nil, false, errors.Errorf("datagram of %d bytes is shorter than its header: %w", len(bs), errors.ErrMalformedMessage)
	}
	h := parseHeader(bs)
	if h.index > h.maxIndex {
		return nil, false, errors.Errorf("segment index %d exceeds %d: %w", h.index, h.maxIndex, errors.ErrMalformedMessage)
	}
	if limit := MaxSegments(); int(h.maxIndex)+1 > limit {
		return nil, false, errors.Errorf("%d segments exceed %d: %w", int(h.maxIndex)+1, limit, errors.ErrMessageTooLarge)
	}
	if h.maxIndex == 0 {
		return bs[headerSize:], true, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	buf, ok := t.pending.Get(h.seq)
	if !ok {
		buf = &ReadBuffer{MaxIndex: h.maxIndex, Segments: map[uint16][]byte{}}
		t.pending.Add(h.seq, buf)
	}
	if buf.MaxIndex != h.maxIndex {
		return nil, false, errors.Errorf("segment count of sequence %d changed: %w", h.seq, errors.ErrMalformedMessage)
	}
	buf.ExpiredAt = t.clock.Now().Add(t.expiry)
	m, ok := buf.add(h.index, bs[headerSize:])
	if !ok {
		return nil, false, nil
	}
	t.pending.Remove(h.seq)
	return m, true, nil
}

// RemoveExpired drops incomplete messages whose last segment arrived more
// than the expiry ago.
func (t *ReadBuffers) RemoveExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	for _, k := range t.pending.Keys() {
		if v, ok := t.pending.Peek(k); ok && now.After(v.ExpiredAt) {
			t.pending.Remove(k)
		}
	}
}

// Len returns the number of incomplete messages.
func (t *ReadBuffers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}

// Pending returns the incomplete message of seq.
func (t *ReadBuffers) Pending(seq uint32) (*ReadBuffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Peek(seq)
}

// ReadBuffer is one incomplete message. Only segments that have arrived are held.
type ReadBuffer struct {
	MaxIndex  uint16
	Segments  map[uint16][]byte
	MsgSize   int
	ExpiredAt time.Time
}

func (b *ReadBuffer) add(segIdx uint16, bs []byte) ([]byte, bool) {
	if _, ok := b.Segments[segIdx]; ok {
		// duplicated segment
		return nil, false
	}
	b.MsgSize += len(bs)
	b.Segments[segIdx] = append(make([]byte, 0, len(bs)), bs...)
	if len(b.Segments) == int(b.MaxIndex)+1 {
		return b.build(), true
	}
	return nil, false
}

func (b *ReadBuffer) build() []byte {
	res := make([]byte, 0, b.MsgSize)
	for i := 0; i <= int(b.MaxIndex); i++ {
		res = append(res, b.Segments[uint16(i)]...)
	}
	return res
}
