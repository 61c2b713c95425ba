// Package frame implements the timeout-governed incremental sentence
// reader sitting between the raw transport byte stream and the protocol
// client: it locates sentence boundaries and preserves unread bytes across
// calls.
package frame

import (
	"bytes"
	"time"

	"github.com/relabs-tech/rtkctl/internal/transport"
)

// DefaultCapacity is large enough to hold one bulk-fetch sentence: 11 header
// bytes + up to 108 fixes of 60 bytes each + 5 trailer bytes.
const DefaultCapacity = 11 + 108*60 + 5

// Reader incrementally fills a fixed-capacity buffer from a transport,
// holding residual bytes across calls. It is not safe for concurrent use;
// exactly one verb drives one Reader at a time, matching the logger link's
// single-threaded access model.
type Reader struct {
	t   transport.Transport
	buf []byte
	pos int // bytes currently held in buf[:pos]
}

// New wraps t with a residual buffer of the given capacity. A capacity of
// zero selects DefaultCapacity.
func New(t transport.Transport, capacity int) *Reader {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Reader{t: t, buf: make([]byte, capacity)}
}

// Write sends p on the underlying transport. Reader owns the transport's
// single read/write channel so the protocol client never needs to hold a
// transport reference of its own.
func (r *Reader) Write(p []byte) (int, error) {
	return r.t.Write(p)
}

// Len reports how many residual bytes are currently buffered.
func (r *Reader) Len() int { return r.pos }

// Bytes returns the residual bytes currently buffered (buf[:pos]); callers
// must not retain the slice across a subsequent read.
func (r *Reader) Bytes() []byte { return r.buf[:r.pos] }

// Discard drops the first n buffered bytes, shifting the remainder to the
// front.
func (r *Reader) Discard(n int) {
	if n <= 0 {
		return
	}
	if n >= r.pos {
		r.pos = 0
		return
	}
	copy(r.buf, r.buf[n:r.pos])
	r.pos -= n
}

// ReadRepeat reads until buf is full or a single transport read times out.
// It returns the total number of bytes held after the call.
func (r *Reader) ReadRepeat(timeout time.Duration) (int, error) {
	for r.pos < len(r.buf) {
		n, err := r.t.Read(r.buf[r.pos:], timeout)
		if err != nil {
			return r.pos, err
		}
		if n == 0 {
			break
		}
		r.pos += n
	}
	return r.pos, nil
}

// ReadUntil reads until needle appears in the buffered bytes. When the
// buffer has grown past len(needle) without a match, the last len(needle)
// bytes are retained at the head (the prefix is discarded) before reading
// more, bounding memory use regardless of how much leading noise the
// device emits. On match, the buffer is shifted so the match starts at
// offset 0 and the number of bytes remaining at-or-after the match is
// returned. Returns 0 on timeout without a match.
func (r *Reader) ReadUntil(needle []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)

	for {
		if idx := bytes.Index(r.buf[:r.pos], needle); idx >= 0 {
			r.Discard(idx)
			return r.pos, nil
		}

		if r.pos > len(needle) {
			r.Discard(r.pos - len(needle))
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		if r.pos == len(r.buf) {
			// Buffer is saturated with non-matching bytes; nothing more to
			// read into until the caller consumes or we time out.
			return 0, nil
		}

		n, err := r.t.Read(r.buf[r.pos:], remaining)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil
		}
		r.pos += n
	}
}

// ReadDelimited composes ReadUntil(start) with a further ReadUntil(end),
// returning the length of the captured frame including both markers.
// Returns 0 if either marker times out.
func (r *Reader) ReadDelimited(start, end []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)

	n, err := r.ReadUntil(start, timeout)
	if err != nil || n == 0 {
		return 0, err
	}

	for {
		if idx := bytes.Index(r.buf[:r.pos], end); idx >= 0 {
			return idx + len(end), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		if r.pos == len(r.buf) {
			return 0, nil
		}

		n, err := r.t.Read(r.buf[r.pos:], remaining)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil
		}
		r.pos += n
	}
}
