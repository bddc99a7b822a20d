package pump

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	// Packages
	schema "github.com/mutablelogic/go-formdata/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Source is a byte stream which can report that it exceeded its size
// limit. Limit returns a channel which is closed when that happens, or
// nil if the source has no limit.
type Source interface {
	io.Reader

	// Truncated returns true if the source was cut short by its limit
	Truncated() bool

	// Limit is closed when the source exceeds its limit
	Limit() <-chan struct{}
}

// LimitedSource ends a stream at a maximum number of bytes, and flags
// the stream as truncated when further bytes were available.
type LimitedSource struct {
	r         io.Reader
	remaining int64 // -1 when unlimited
	truncated atomic.Bool
	once      sync.Once
	limit     chan struct{}
}

// Detachable wraps a source so that another goroutine may detach it
// from its reader, or drain what remains of it.
type Detachable struct {
	Source
	mu       sync.Mutex
	detached atomic.Bool
	once     sync.Once
	done     chan struct{}
}

var _ Source = (*LimitedSource)(nil)
var _ Source = (*Detachable)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// LimitReader returns a source which reads at most max bytes from r. If
// max is zero or negative the source is unlimited.
func LimitReader(r io.Reader, max int64) *LimitedSource {
	if max <= 0 {
		max = -1
	}
	return &LimitedSource{r: r, remaining: max, limit: make(chan struct{})}
}

// StringSource returns an unlimited source which reads from s
func StringSource(s string) *LimitedSource {
	return LimitReader(strings.NewReader(s), 0)
}

// NewDetachable wraps src, returning src itself when it is already
// detachable.
func NewDetachable(src Source) *Detachable {
	if d, ok := src.(*Detachable); ok {
		return d
	}
	return &Detachable{Source: src, done: make(chan struct{})}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - LIMITED SOURCE

func (s *LimitedSource) Read(p []byte) (int, error) {
	if s.truncated.Load() {
		return 0, io.EOF
	}
	if s.remaining < 0 {
		return s.r.Read(p)
	}

	// Read one byte past the limit
	if s.remaining == 0 {
		var next [1]byte
		n, err := io.ReadFull(s.r, next[:])
		switch {
		case n > 0:
			s.MarkTruncated()
			return 0, io.EOF
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return 0, io.EOF
		default:
			return 0, err
		}
	}

	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	return n, err
}

func (s *LimitedSource) Truncated() bool {
	return s.truncated.Load()
}

func (s *LimitedSource) Limit() <-chan struct{} {
	return s.limit
}

// MarkTruncated flags the source as truncated and signals the limit
func (s *LimitedSource) MarkTruncated() {
	s.once.Do(func() {
		s.truncated.Store(true)
		close(s.limit)
	})
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - DETACHABLE

// Read from the source, failing with ErrDetached once detached
func (d *Detachable) Read(p []byte) (int, error) {
	if d.detached.Load() {
		return 0, schema.ErrDetached
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.Source.Read(p)
	if err != nil {
		d.close()
	}
	if d.detached.Load() {
		return 0, schema.ErrDetached
	}
	return n, err
}

// Detach the source. Subsequent reads fail with ErrDetached. A read in
// progress is not interrupted but its result is discarded.
func (d *Detachable) Detach() {
	d.detached.Store(true)
}

// Detached returns true once the source has been detached
func (d *Detachable) Detached() bool {
	return d.detached.Load()
}

// Drain detaches the source and discards what remains of it
func (d *Detachable) Drain() error {
	d.Detach()
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.close()
	_, err := io.Copy(io.Discard, d.Source)
	return err
}

// Done is closed once the underlying source reaches the end of the
// stream, fails or is drained
func (d *Detachable) Done() <-chan struct{} {
	return d.done
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (d *Detachable) close() {
	d.once.Do(func() {
		close(d.done)
	})
}
