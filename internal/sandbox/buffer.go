package sandbox

import (
	"bytes"
	"sync"
)

// cappedBuffer collects up to limit bytes. The first write that would cross
// the limit keeps what fits, fires onOverflow once and fails with
// ErrOutputLimit.
type cappedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int
	overflowed bool
	onOverflow func()
}

func newCappedBuffer(limit int, onOverflow func()) *cappedBuffer {
	return &cappedBuffer{limit: limit, onOverflow: onOverflow}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.overflowed {
		b.mu.Unlock()
		return 0, ErrOutputLimit
	}

	room := b.limit - b.buf.Len()
	if len(p) <= room {
		n, err := b.buf.Write(p)
		b.mu.Unlock()
		return n, err
	}

	if room > 0 {
		b.buf.Write(p[:room])
	}
	b.overflowed = true
	b.mu.Unlock()

	if b.onOverflow != nil {
		b.onOverflow()
	}
	return room, ErrOutputLimit
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflowed
}
