package hglib

import (
	"context"
	"errors"
	"sync"
)

// Pool maintains a fixed number of ready Sessions against one
// repository, pre-spawned in the background so callers don't pay
// subprocess startup latency on the request path. It is the channel-
// vending pattern: a buffered channel of ready Sessions, a side channel
// for spawn failures, and a Close that drains both.
type Pool struct {
	repoPath string
	opts     []Option

	sessions chan *Session
	errCh    chan error
	closed   chan struct{}
	closeErr error

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool starts size background spawns against repoPath and returns
// once they're scheduled; it does not block for them to finish. Errors
// encountered while spawning are delivered on ErrorChannel rather than
// returned here.
func NewPool(repoPath string, size int, opts ...Option) (*Pool, error) {
	const op = "NewPool"

	if size <= 0 {
		return nil, newError(op, KindInvalidArgument, errors.New("pool size must be positive"))
	}

	p := &Pool{
		repoPath: repoPath,
		opts:     opts,
		sessions: make(chan *Session, size),
		errCh:    make(chan error, size),
		closed:   make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.spawn()
	}

	return p, nil
}

func (p *Pool) spawn() {
	defer p.wg.Done()

	s, err := Open(p.repoPath, p.opts...)
	if err != nil {
		select {
		case p.errCh <- err:
		case <-p.closed:
		}
		return
	}

	select {
	case p.sessions <- s:
	case <-p.closed:
		_ = s.Close()
	}
}

// Get returns a ready Session, blocking until one is spawned, a spawn
// failure is reported, the pool is closed, or ctx is done. The caller
// must return the Session with Put when finished with it.
func (p *Pool) Get(ctx context.Context) (*Session, error) {
	const op = "Pool.Get"

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, newError(op, KindSessionClosed, nil)
		}
		return s, nil
	case err := <-p.errCh:
		return nil, err
	case <-p.closed:
		return nil, newError(op, KindSessionClosed, nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a Session to the pool for reuse. A Session left Closed by
// a prior command failure (see RunCommand's poisoning behavior) is
// dropped and replaced with a freshly spawned one instead of being
// recycled.
func (p *Pool) Put(s *Session) {
	if s == nil {
		return
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		p.wg.Add(1)
		go p.spawn()
		return
	}

	select {
	case p.sessions <- s:
	case <-p.closed:
		_ = s.Close()
	}
}

// ErrorChannel reports spawn failures encountered while replenishing
// the pool in the background. Failures here don't stop the pool; a
// fresh spawn attempt is not automatically retried, so a persistently
// unavailable server will eventually starve Get.
func (p *Pool) ErrorChannel() <-chan error {
	return p.errCh
}

// Close stops accepting new spawns, waits for in-flight spawns to
// settle, and closes every Session currently sitting in the pool.
// Sessions checked out with Get and not yet returned are not closed by
// this call; the caller is still responsible for them.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.wg.Wait()
		close(p.sessions)
		for s := range p.sessions {
			if err := s.Close(); err != nil {
				p.closeErr = err
			}
		}
	})
	return p.closeErr
}
