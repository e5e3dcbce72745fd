package bot

import "sync"

// userLocks queues turns per user id. A turn reserved with acquire runs
// after every earlier turn of the same user has released, so turns run in
// the order they were reserved. A user's entry is dropped when its last
// turn releases.
type userLocks struct {
	mu    sync.Mutex
	tails map[string]*turn
}

// turn is one reserved slot in a user's queue.
type turn struct {
	owner  *userLocks
	userID string
	prev   <-chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newUserLocks() *userLocks {
	return &userLocks{tails: make(map[string]*turn)}
}

// acquire reserves the next turn for userID without blocking.
func (l *userLocks) acquire(userID string) *turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &turn{owner: l, userID: userID, done: make(chan struct{})}
	if tail, ok := l.tails[userID]; ok {
		t.prev = tail.done
	}
	l.tails[userID] = t
	return t
}

// wait blocks until every earlier turn of the user has released.
func (t *turn) wait() {
	if t.prev != nil {
		<-t.prev
	}
}

// release lets the next turn run. Calling it twice is a no-op.
func (t *turn) release() {
	t.once.Do(func() {
		l := t.owner
		l.mu.Lock()
		if l.tails[t.userID] == t {
			delete(l.tails, t.userID)
		}
		l.mu.Unlock()
		close(t.done)
	})
}

// lock reserves a turn, waits for it and returns the matching unlock.
func (l *userLocks) lock(userID string) func() {
	t := l.acquire(userID)
	t.wait()
	return t.release
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tails)
}
