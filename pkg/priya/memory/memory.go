// Package memory is the conversation store: a bounded per-user message
// history, lazily created user profiles and the ban registry.
//
// Two backends implement Store: SQLiteStore for deployments and MemStore
// for the local console and tests. Both give the same guarantees: every
// operation is atomic on its own, Append keeps at most the history limit
// per user, and Profile creates a missing profile exactly once.
package memory

import (
	"context"
	"time"
)

// DefaultHistoryLimit is the number of entries kept per user.
const DefaultHistoryLimit = 20

// Role is the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// VoiceEngine selects the speech tier preferred by a user.
type VoiceEngine string

const (
	VoiceDefault VoiceEngine = "default"
	VoiceCloned  VoiceEngine = "cloned"
)

// Entry is one stored turn.
type Entry struct {
	ID        int64
	UserID    string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Profile holds per-user preferences.
type Profile struct {
	UserID        string
	DisplayName   string
	VoiceMode     bool
	VoiceEngine   VoiceEngine
	VoiceIdentity string
}

// Ban marks a user as blocked.
type Ban struct {
	UserID    string
	Reason    string
	CreatedAt time.Time
}

// Store is the conversation store contract shared by all backends.
type Store interface {
	// Append stores a turn and evicts the oldest entries beyond the limit.
	Append(ctx context.Context, userID string, role Role, content string) error

	// History returns up to limit most recent entries, oldest first. A
	// limit <= 0 means the store's history limit.
	History(ctx context.Context, userID string, limit int) ([]Entry, error)

	// Profile returns the user's profile, creating it with defaults.
	Profile(ctx context.Context, userID string) (Profile, error)

	SetDisplayName(ctx context.Context, userID, name string) error
	SetVoiceMode(ctx context.Context, userID string, on bool) error
	SetVoice(ctx context.Context, userID string, engine VoiceEngine, identity string) error

	Ban(ctx context.Context, userID, reason string) error
	Unban(ctx context.Context, userID string) error
	IsBanned(ctx context.Context, userID string) (bool, error)

	// KnownUsers returns every distinct user id seen in history or
	// profiles, sorted.
	KnownUsers(ctx context.Context) ([]string, error)

	Close() error
}

func defaultProfile(userID string) Profile {
	return Profile{UserID: userID, VoiceEngine: VoiceDefault}
}
