package indexer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Document is one index entry derived from a row. ID is the identity key;
// Fields carries the analyzed column fields plus the reserved fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Handle owns the writable state of one physical index location plus its
// committed read view. Writes are staged into a pending batch and become
// visible (and durable) only on CommitAndRefresh. Searches run against the
// committed state; bleve hands every search its own immutable snapshot, so
// a commit never disturbs a search already in flight.
type Handle struct {
	mu         sync.Mutex
	path       string
	idx        bleve.Index
	batch      *bleve.Batch
	dirty      bool
	generation uint64
	refs       int
	closed     bool
}

// OpenOrCreate opens the index at path, creating an empty one when the
// location does not hold an index yet.
func OpenOrCreate(path string, storeText bool) (*Handle, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		slog.Info("creating full-text index", "path", path)
		idx, err = bleve.New(path, buildIndexMapping(storeText))
	}
	if err != nil {
		return nil, &UnavailableError{Path: path, Err: err}
	}
	h := &Handle{
		path:  path,
		idx:   idx,
		batch: idx.NewBatch(),
	}
	return h, nil
}

// Path returns the physical location this handle is bound to.
func (h *Handle) Path() string {
	return h.path
}

// AddDocument stages a document append. Not visible until CommitAndRefresh.
func (h *Handle) AddDocument(doc Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &UnavailableError{Path: h.path, Reason: "handle closed"}
	}
	if err := h.batch.Index(doc.ID, doc.Fields); err != nil {
		return err
	}
	h.dirty = true
	return nil
}

// DeleteByIdentity stages deletion of the document whose identity equals
// key exactly. The identity key is the document ID, so no escaping or
// term matching is involved.
func (h *Handle) DeleteByIdentity(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return &UnavailableError{Path: h.path, Reason: "handle closed"}
	}
	h.batch.Delete(key)
	h.dirty = true
	return nil
}

// CommitAndRefresh durably applies the pending batch and makes it visible
// to subsequent searches. A clean handle is a no-op.
func (h *Handle) CommitAndRefresh() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commitLocked()
}

func (h *Handle) commitLocked() error {
	if h.closed {
		return &UnavailableError{Path: h.path, Reason: "handle closed"}
	}
	if !h.dirty {
		return nil
	}
	if err := h.idx.Batch(h.batch); err != nil {
		return err
	}
	h.batch.Reset()
	h.dirty = false
	h.generation++
	slog.Debug("index committed", "path", h.path, "generation", h.generation)
	return nil
}

// Generation counts committed refreshes. A caller that observed a commit
// sees a strictly larger generation than before it.
func (h *Handle) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// Snapshot returns the read side of the handle. Every search executed
// against it operates on a point-in-time view captured at call time.
func (h *Handle) Snapshot() (bleve.Index, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &UnavailableError{Path: h.path, Reason: "handle closed"}
	}
	return h.idx, nil
}

// DocCount reports the number of committed documents.
func (h *Handle) DocCount() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, &UnavailableError{Path: h.path, Reason: "handle closed"}
	}
	return h.idx.DocCount()
}

// Close commits a dirty batch and releases the underlying index.
// Idempotent; a second call is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if h.dirty {
		if err := h.idx.Batch(h.batch); err != nil {
			slog.Error("commit on close failed", "path", h.path, "error", err)
		}
		h.dirty = false
	}
	h.closed = true
	return h.idx.Close()
}
