package bot

import (
	"sort"
	"strings"
	"sync/atomic"
)

// Gate holds the maintenance flag and the admin set of one Bot. The flag is
// not persisted: every process starts live.
type Gate struct {
	maintenance atomic.Bool
	admins      map[string]struct{}
}

// NewGate builds a gate for the given admin ids. Blank ids are ignored.
func NewGate(admins []string) *Gate {
	g := &Gate{admins: make(map[string]struct{}, len(admins))}
	for _, id := range admins {
		id = strings.TrimSpace(id)
		if id != "" {
			g.admins[id] = struct{}{}
		}
	}
	return g
}

// IsAdmin reports whether id is in the admin set.
func (g *Gate) IsAdmin(id string) bool {
	_, ok := g.admins[id]
	return ok
}

// Admins returns the admin ids, sorted.
func (g *Gate) Admins() []string {
	ids := make([]string, 0, len(g.admins))
	for id := range g.admins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Maintenance reports whether the bot is refusing non-admin traffic.
func (g *Gate) Maintenance() bool { return g.maintenance.Load() }

// SetMaintenance toggles the flag and reports whether it changed. Callers
// are responsible for checking IsAdmin first.
func (g *Gate) SetMaintenance(on bool) bool {
	return g.maintenance.Swap(on) != on
}
