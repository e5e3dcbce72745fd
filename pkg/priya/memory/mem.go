package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store. Contents are lost on exit.
type MemStore struct {
	mu       sync.Mutex
	limit    int
	nextID   int64
	history  map[string][]Entry
	profiles map[string]Profile
	bans     map[string]Ban
}

// NewMemStore creates an empty store keeping limit entries per user.
func NewMemStore(limit int) *MemStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemStore{
		limit:    limit,
		history:  make(map[string][]Entry),
		profiles: make(map[string]Profile),
		bans:     make(map[string]Ban),
	}
}

func (m *MemStore) Append(_ context.Context, userID string, role Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	entries := append(m.history[userID], Entry{
		ID:        m.nextID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	if len(entries) > m.limit {
		entries = append([]Entry(nil), entries[len(entries)-m.limit:]...)
	}
	m.history[userID] = entries
	return nil
}

func (m *MemStore) History(_ context.Context, userID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > m.limit {
		limit = m.limit
	}
	entries := m.history[userID]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]Entry(nil), entries...), nil
}

func (m *MemStore) Profile(_ context.Context, userID string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileLocked(userID), nil
}

func (m *MemStore) profileLocked(userID string) Profile {
	p, ok := m.profiles[userID]
	if !ok {
		p = defaultProfile(userID)
		m.profiles[userID] = p
	}
	return p
}

func (m *MemStore) update(userID string, fn func(*Profile)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profileLocked(userID)
	fn(&p)
	m.profiles[userID] = p
}

func (m *MemStore) SetDisplayName(_ context.Context, userID, name string) error {
	m.update(userID, func(p *Profile) { p.DisplayName = name })
	return nil
}

func (m *MemStore) SetVoiceMode(_ context.Context, userID string, on bool) error {
	m.update(userID, func(p *Profile) { p.VoiceMode = on })
	return nil
}

func (m *MemStore) SetVoice(_ context.Context, userID string, engine VoiceEngine, identity string) error {
	if engine == "" {
		engine = VoiceDefault
	}
	m.update(userID, func(p *Profile) {
		p.VoiceEngine = engine
		p.VoiceIdentity = identity
	})
	return nil
}

func (m *MemStore) Ban(_ context.Context, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[userID] = Ban{UserID: userID, Reason: reason, CreatedAt: time.Now()}
	return nil
}

func (m *MemStore) Unban(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bans, userID)
	return nil
}

func (m *MemStore) IsBanned(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[userID]
	return ok, nil
}

func (m *MemStore) KnownUsers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.history)+len(m.profiles))
	for id := range m.history {
		seen[id] = struct{}{}
	}
	for id := range m.profiles {
		seen[id] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemStore) Close() error { return nil }
