// Package migrations holds the versioned, reversible changes applied to the
// platform's system tables. Each migration registers itself from init; the
// runner in internal/migrate decides which ones to execute.
package migrations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// Migration is one reversible schema or data change. Up and Down receive the
// shared database handle and manage their own transaction boundaries: several
// migrations commit row by row and must not run inside one enclosing
// transaction.
type Migration struct {
	Version string
	Name    string
	Up      func(ctx context.Context, db *gorm.DB) error
	Down    func(ctx context.Context, db *gorm.DB) error
}

var (
	mu       sync.Mutex
	registry = map[string]Migration{}
)

// Register adds a migration to the package registry. Registration happens
// from init, so malformed or duplicate entries are programmer errors and
// panic immediately.
func Register(m Migration) {
	mu.Lock()
	defer mu.Unlock()

	if m.Version == "" {
		panic("migrations: version must not be empty")
	}
	if m.Up == nil || m.Down == nil {
		panic(fmt.Sprintf("migrations: %s must define both directions", m.Version))
	}
	if _, exists := registry[m.Version]; exists {
		panic(fmt.Sprintf("migrations: duplicate version %s", m.Version))
	}

	registry[m.Version] = m
}

// All returns the registered migrations sorted by version.
func All() []Migration {
	mu.Lock()
	defer mu.Unlock()

	out := make([]Migration, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out
}

// Find returns the migration registered under version.
func Find(version string) (Migration, bool) {
	mu.Lock()
	defer mu.Unlock()

	m, ok := registry[version]
	return m, ok
}
