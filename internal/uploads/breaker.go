// breaker.go - Circuit breaker in front of an upload backend.
//
// When the object store goes away, uploads and fetches fail fast instead of
// each request waiting out its own timeout.
package uploads

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast
	StateOpen
	// StateHalfOpen: one probe request is let through
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the backend is considered down.
var ErrCircuitOpen = errors.New("upload store circuit is open")

// BreakerStore wraps a Store with a circuit breaker. Missing files and
// invalid names are answers, not failures, and never trip it.
type BreakerStore struct {
	next Store
	log  *zap.Logger

	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
	rejected uint64
}

// NewBreakerStore opens the circuit after maxFailures consecutive backend
// errors and lets a single probe through once cooldown has passed.
func NewBreakerStore(next Store, maxFailures int, cooldown time.Duration, log *zap.Logger) *BreakerStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &BreakerStore{
		next:        next,
		log:         log,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
		state:       StateClosed,
	}
}

// State returns the current circuit state.
func (b *BreakerStore) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BreakerStore) Put(ctx context.Context, name string, r io.Reader) (Stored, error) {
	if err := b.acquire(); err != nil {
		return Stored{}, err
	}
	src := &sourceReader{r: r}
	stored, err := b.next.Put(ctx, name, src)
	if err != nil && (src.err != nil || callerGaveUp(ctx, err)) {
		// The client's body or context failed, not the backend.
		b.release()
		return stored, err
	}
	b.record(err)
	return stored, err
}

func (b *BreakerStore) Open(ctx context.Context, name string) (*Object, error) {
	if err := b.acquire(); err != nil {
		return nil, err
	}
	obj, err := b.next.Open(ctx, name)
	if callerGaveUp(ctx, err) {
		b.release()
		return obj, err
	}
	b.record(err)
	return obj, err
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := b.next.Ping(ctx)
	if callerGaveUp(ctx, err) {
		b.release()
		return err
	}
	b.record(err)
	return err
}

func (b *BreakerStore) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.rejected++
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		b.log.Info("upload_circuit_half_open", zap.Duration("cooldown", b.cooldown))
		return nil
	case StateHalfOpen:
		if b.probing {
			b.rejected++
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

// callerGaveUp reports whether err is the caller's own context ending. A
// backend that times out on its own still counts as a failure.
func callerGaveUp(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// release ends a call without judging the backend.
func (b *BreakerStore) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *BreakerStore) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidName) {
		if b.state != StateClosed {
			b.log.Info("upload_circuit_closed", zap.Uint64("rejected", b.rejected))
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			b.log.Warn("upload_circuit_opened",
				zap.Int("failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
				zap.Error(err),
			)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// sourceReader remembers the first read error of the upload body.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}
