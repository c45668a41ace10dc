package monitor

import "sync"

// BranchLocks serializes access per branch name so a monitor never runs
// concurrently with a foreground run on the same branch. Branches are
// isolated, so there is no cross-branch lock.
type BranchLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBranchLocks creates an empty lock registry.
func NewBranchLocks() *BranchLocks {
	return &BranchLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for branch and returns its release function.
func (b *BranchLocks) Lock(branch string) func() {
	b.mu.Lock()
	lock, ok := b.locks[branch]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[branch] = lock
	}
	b.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
