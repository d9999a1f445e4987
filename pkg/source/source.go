// Package source defines the external event model, the fixed enumeration of
// source systems, and a registry of source implementations.
package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SystemID identifies the external provider that produced an event.
type SystemID int

const (
	Eventbrite SystemID = 1
)

var systemNames = map[SystemID]string{
	Eventbrite: "eventbrite",
}

func (id SystemID) String() string {
	if n, ok := systemNames[id]; ok {
		return n
	}
	return fmt.Sprintf("system(%d)", int(id))
}

// ParseSystem resolves a source system by name.
func ParseSystem(name string) (SystemID, error) {
	for id, n := range systemNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("source: unknown system %q", name)
}

// Event is an event as received from a source API. ID is the source-native
// identifier; Start and End are UTC.
type Event struct {
	ID    int64
	Name  string
	Start time.Time
	End   time.Time
	URL   string
}

// Source produces events newer than a cursor.
type Source interface {
	// System returns the enumeration value stored alongside persisted events.
	System() SystemID
	// Fetch returns a lazy stream of events with identifiers greater than since.
	Fetch(ctx context.Context, since int64, opts ...StreamOption) *Stream
}

// Factory constructs a Source from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (Source, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a Source factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("source: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("source: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("source: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Range iterates all registered factories.
func Range(fn func(name string, f Factory)) {
	regMu.RLock()
	defer regMu.RUnlock()
	for n, f := range factories {
		fn(n, f)
	}
}
