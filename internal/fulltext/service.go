// Package fulltext is the host-facing surface of the full-text engine: it
// owns the handle registry and the per-table synchronizers, persists which
// tables are indexed, and exposes the operational entry points
// (create-index, reindex, drop-all, commit, flush, search).
package fulltext

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/yuki792/fulltext/internal/indexer"
	"github.com/yuki792/fulltext/internal/relational"
	"github.com/yuki792/fulltext/internal/search"
	"github.com/yuki792/fulltext/internal/syncer"
)

// Catalog is the inbound interface to the relational engine: column
// metadata at synchronizer construction, full scans for re-indexing.
type Catalog interface {
	TableMeta(schema, table string) (*relational.TableMeta, error)
	ScanTable(schema, table string) ([]relational.Row, error)
}

// Options tune a Service. The zero value gives the defaults: body text not
// stored, commit per statement, config file next to the index location.
type Options struct {
	// StoreText keeps the concatenated body text stored in the index.
	StoreText bool
	// NoCommitOnWrite buffers trigger-path writes until an explicit commit.
	NoCommitOnWrite bool
	// ConfigPath overrides where the indexed-table bookkeeping is persisted.
	ConfigPath string
}

// Service wires the registry, the config store, and the per-table
// synchronizers for one database instance.
type Service struct {
	mu       sync.Mutex
	registry *indexer.Registry
	store    *ConfigStore
	catalog  Catalog
	location string
	handle   *indexer.Handle
	syncers  map[string]*syncer.Syncer
	opts     Options
}

// New creates the full-text service for the database stored at dbPath.
// Fails for databases without an addressable path (in-memory).
func New(dbPath string, catalog Catalog, opts Options) (*Service, error) {
	location, err := indexer.LocationKey(dbPath)
	if err != nil {
		return nil, err
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = location + ".indexes.json"
	}
	return &Service{
		registry: indexer.NewRegistry(opts.StoreText),
		store:    NewConfigStore(opts.ConfigPath),
		catalog:  catalog,
		location: location,
		syncers:  make(map[string]*syncer.Syncer),
		opts:     opts,
	}, nil
}

// Init opens (or creates) the index and builds synchronizers for every
// registered table. Idempotent; the other entry points call it as needed.
func (s *Service) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *Service) initLocked() error {
	if s.handle == nil {
		h, err := s.registry.Acquire(s.location)
		if err != nil {
			return err
		}
		s.handle = h
	}
	configs, err := s.store.All()
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if _, ok := s.syncers[cfg.key()]; ok {
			continue
		}
		sy, err := s.buildSyncerLocked(cfg)
		if err != nil {
			return err
		}
		s.syncers[cfg.key()] = sy
	}
	return nil
}

func (s *Service) buildSyncerLocked(cfg IndexConfig) (*syncer.Syncer, error) {
	meta, err := s.catalog.TableMeta(cfg.Schema, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("table %s.%s: %w", cfg.Schema, cfg.Table, err)
	}
	sy, err := syncer.New(meta, cfg.Columns, s.handle)
	if err != nil {
		return nil, err
	}
	sy.CommitOnWrite = !s.opts.NoCommitOnWrite
	return sy, nil
}

// CreateIndex registers a full-text index for a table and indexes its
// existing rows. columns nil means all columns. Each table may only have
// one index at a time; re-creating replaces the configuration.
func (s *Service) CreateIndex(schema, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initLocked(); err != nil {
		return err
	}
	cfg := IndexConfig{Schema: schema, Table: table, Columns: columns}

	// validate against live metadata before persisting anything
	sy, err := s.buildSyncerLocked(cfg)
	if err != nil {
		return err
	}
	if err := s.store.Put(cfg); err != nil {
		return err
	}
	s.syncers[cfg.key()] = sy

	rows, err := s.catalog.ScanTable(schema, table)
	if err != nil {
		return fmt.Errorf("scan %s.%s: %w", schema, table, err)
	}
	if err := sy.Reindex(rows); err != nil {
		return err
	}
	slog.Info("full-text index created",
		"schema", schema,
		"table", table,
		"rows", len(rows),
	)
	return nil
}

// Syncer returns the synchronizer for a table, for direct trigger wiring.
func (s *Service) Syncer(schema, table string) (*syncer.Syncer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sy, ok := s.syncers[IndexConfig{Schema: schema, Table: table}.key()]
	return sy, ok
}

// OnRowEvent routes a mutation event to the owning table's synchronizer.
// Events for tables without an index are ignored, so a host may broadcast
// every mutation here. Implements relational.RowObserver.
func (s *Service) OnRowEvent(ev relational.RowEvent) {
	sy, ok := s.Syncer(ev.Table.Schema, ev.Table.Name)
	if !ok {
		return
	}
	sy.OnRowEvent(ev)
}

// Apply is the error-returning form of OnRowEvent for hosts that surface
// trigger failures synchronously.
func (s *Service) Apply(ev relational.RowEvent) error {
	sy, ok := s.Syncer(ev.Table.Schema, ev.Table.Name)
	if !ok {
		return nil
	}
	return sy.Apply(ev)
}

// Reindex rebuilds the whole index with an explicit two-phase protocol:
// phase 1 drops the live handle and deletes the physical location, so no
// stale handle or file survives; phase 2 recreates the index and rebuilds
// it from full table scans.
func (s *Service) Reindex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dropIndexLocked(); err != nil {
		return err
	}
	if err := s.initLocked(); err != nil {
		return err
	}
	for key, sy := range s.syncers {
		meta := sy.Meta()
		rows, err := s.catalog.ScanTable(meta.Schema, meta.Name)
		if err != nil {
			return fmt.Errorf("scan %s: %w", key, err)
		}
		if err := sy.Reindex(rows); err != nil {
			return err
		}
		slog.Info("table re-indexed", "table", key, "rows", len(rows))
	}
	return nil
}

// DropAll removes the full-text index, its files, and all bookkeeping.
func (s *Service) DropAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dropIndexLocked(); err != nil {
		return err
	}
	return s.store.Clear()
}

// dropIndexLocked closes the shared handle and deletes the index files.
// Synchronizers are discarded; initLocked rebuilds them.
func (s *Service) dropIndexLocked() error {
	if err := s.registry.Drop(s.location); err != nil {
		return err
	}
	s.handle = nil
	s.syncers = make(map[string]*syncer.Syncer)
	if err := os.RemoveAll(s.location); err != nil {
		return fmt.Errorf("remove index files: %w", err)
	}
	return nil
}

// Commit durably applies buffered writes and refreshes the read snapshot.
func (s *Service) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return err
	}
	return s.handle.CommitAndRefresh()
}

// Flush forces buffered writes to durable storage. With the bleve backend
// durability and visibility share the commit boundary, so this is Commit
// without touching any host transaction.
func (s *Service) Flush() error {
	return s.Commit()
}

// CommitAll commits the index and then the host transaction.
func (s *Service) CommitAll(hostCommit func() error) error {
	if err := s.Commit(); err != nil {
		return err
	}
	if hostCommit != nil {
		return hostCommit()
	}
	return nil
}

// Search returns locator-shaped results for a free-text query.
func (s *Service) Search(text string, limit, offset int) ([]search.LocatorResult, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	return p.Search(text, limit, offset)
}

// SearchData returns structured results: schema, table, key column names
// and key values per hit.
func (s *Service) SearchData(text string, limit, offset int) ([]search.StructuredResult, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	return p.SearchData(text, limit, offset)
}

func (s *Service) pipeline() (*search.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return nil, err
	}
	return search.New(s.handle), nil
}

// Close releases every open handle. Buffered writes are committed first.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.CloseAll()
	s.handle = nil
	s.syncers = make(map[string]*syncer.Syncer)
}
