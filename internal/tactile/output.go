package tactile

import (
	"bytes"
	"sync"
)

// limitedBuffer collects output up to max bytes and records truncation.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int64
	truncated bool
	discarded int64
}

func newLimitedBuffer(max int64) *limitedBuffer {
	if max <= 0 {
		max = DefaultMaxOutput
	}
	return &limitedBuffer{max: max}
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	n := len(p)
	written := int64(lb.buf.Len())
	if written >= lb.max {
		lb.truncated = true
		lb.discarded += int64(n)
		return n, nil
	}

	remaining := lb.max - written
	if int64(n) > remaining {
		lb.truncated = true
		lb.discarded += int64(n) - remaining
		lb.buf.Write(p[:remaining])
		return n, nil
	}
	lb.buf.Write(p)
	return n, nil
}

func (lb *limitedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

func (lb *limitedBuffer) Truncated() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.truncated
}
