package fulltext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// IndexConfig is the persisted per-table record: which columns feed the
// searchable body. A nil column list means all columns. Immutable after
// creation except by explicit re-creation.
type IndexConfig struct {
	Schema  string   `json:"schema"`
	Table   string   `json:"table"`
	Columns []string `json:"columns,omitempty"`
}

func (c IndexConfig) key() string {
	return c.Schema + "." + c.Table
}

// ConfigStore persists the indexed-table bookkeeping as a JSON file,
// written atomically so a crash never leaves a half-written record set.
type ConfigStore struct {
	mu   sync.Mutex
	path string
}

func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// Put registers a table's index configuration. Re-creating an existing
// entry replaces it.
func (s *ConfigStore) Put(cfg IndexConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.loadLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range configs {
		if existing.key() == cfg.key() {
			configs[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		configs = append(configs, cfg)
	}
	return s.saveLocked(configs)
}

// Get looks up the configuration for one table.
func (s *ConfigStore) Get(schema, table string) (IndexConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.loadLocked()
	if err != nil {
		return IndexConfig{}, false, err
	}
	want := IndexConfig{Schema: schema, Table: table}.key()
	for _, cfg := range configs {
		if cfg.key() == want {
			return cfg, true, nil
		}
	}
	return IndexConfig{}, false, nil
}

// All returns every registered configuration.
func (s *ConfigStore) All() ([]IndexConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Clear removes all registered configurations.
func (s *ConfigStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear index config: %w", err)
	}
	return nil
}

func (s *ConfigStore) loadLocked() ([]IndexConfig, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index config: %w", err)
	}
	var configs []IndexConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse index config %s: %w", s.path, err)
	}
	return configs, nil
}

func (s *ConfigStore) saveLocked(configs []IndexConfig) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save index config: %w", err)
	}
	return nil
}
