package disk

import "sync"

// UserLocks serializes operations on a single user's tree. Record and
// filesystem mutations for one user must not interleave; operations on
// different users run independently.
type UserLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *UserLocks) get(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

// Lock acquires the per-user mutex and returns its unlock function.
func (l *UserLocks) Lock(userID int64) func() {
	m := l.get(userID)
	m.Lock()
	return m.Unlock
}
