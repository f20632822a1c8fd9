package indexer

import (
	"log/slog"
	"sync"
)

// Registry manages open index handles in a thread-safe way. One registry is
// owned by whichever long-lived context created it (one per database
// instance); it guarantees at most one live Handle per physical location.
type Registry struct {
	mu        sync.Mutex
	handles   map[string]*Handle
	storeText bool
}

// NewRegistry creates an empty handle registry. storeText controls whether
// indexes created through it keep the searchable body text stored.
func NewRegistry(storeText bool) *Registry {
	return &Registry{
		handles:   make(map[string]*Handle),
		storeText: storeText,
	}
}

// LocationKey derives the physical index location for a database: its
// storage path suffixed with the analyzer identity. Databases without an
// addressable path (in-memory) cannot host a full-text index.
func LocationKey(dbPath string) (string, error) {
	if dbPath == "" {
		return "", &UnavailableError{
			Reason: "full-text search for in-memory databases is not supported",
		}
	}
	return dbPath + "_" + AnalyzerName, nil
}

// Acquire returns the live handle for location, opening or creating one
// when none exists. The check-then-create runs under the registry lock so
// two concurrent first callers never create two handles for the same
// location. Each Acquire adds a reference; pair it with Unref.
func (r *Registry) Acquire(location string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[location]
	if !ok {
		var err error
		h, err = OpenOrCreate(location, r.storeText)
		if err != nil {
			return nil, err
		}
		r.handles[location] = h
	}
	h.refs++
	return h, nil
}

// Unref drops one reference to the handle. The handle stays open even at
// zero references: multiple tables may share one physical location, and
// ordinary per-table teardown must not pull the index out from under the
// others. Only Drop closes handles.
func (r *Registry) Unref(location string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[location]
	if !ok {
		return
	}
	if h.refs > 0 {
		h.refs--
	}
}

// Drop removes and closes the handle for location. Used by destructive
// operations (full re-index, drop-all) that must guarantee no stale handle
// survives pointing at files about to be deleted.
func (r *Registry) Drop(location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[location]
	if !ok {
		return nil
	}
	delete(r.handles, location)
	return h.Close()
}

// CloseAll closes every registered handle (call on shutdown).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for location, h := range r.handles {
		if err := h.Close(); err != nil {
			slog.Error("failed to close index handle", "location", location, "error", err)
		}
	}
	r.handles = make(map[string]*Handle)
}
