package execution

import (
	"context"
	"sync"
)

// Locker guarantees at-most-one concurrent state transition per execution
// id. A scheduler tick and a manual advance racing on the same execution
// must not both step it.
type Locker interface {
	// Acquire tries to take the lock for the execution. When acquired is
	// true the caller must invoke release exactly once. When acquired is
	// false another caller holds the lock and this caller should no-op.
	Acquire(ctx context.Context, executionID string) (release func(), acquired bool, err error)
}

// MemoryLocker is an in-process Locker for tests and single-node
// deployments.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(_ context.Context, executionID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[executionID] {
		return nil, false, nil
	}

	l.held[executionID] = true

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.held, executionID)
	}

	return release, true, nil
}
