// Package syncer keeps one table's index documents in step with its row
// mutations. It consumes one event at a time (insert, update, delete, and
// rollback compensation delivered as the inverse event) and drives the
// shared index handle accordingly.
package syncer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuki792/fulltext/internal/indexer"
	"github.com/yuki792/fulltext/internal/relational"
	"github.com/yuki792/fulltext/internal/rowcodec"
)

// ConfigError reports a table that cannot be indexed as requested: no
// usable primary key, or an explicit column list naming an unknown column.
type ConfigError struct {
	Schema string
	Table  string
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	name := e.Table
	if e.Schema != "" {
		name = e.Schema + "." + e.Table
	}
	if e.Column != "" {
		return fmt.Sprintf("index configuration for %s: column %s: %s", name, e.Column, e.Reason)
	}
	return fmt.Sprintf("index configuration for %s: %s", name, e.Reason)
}

// Syncer binds one table to the shared index handle of its database.
type Syncer struct {
	meta     *relational.TableMeta
	keyIdx   []int // primary key column positions
	indexIdx []int // indexed column positions
	handle   *indexer.Handle

	// CommitOnWrite makes every applied mutation commit and refresh the
	// index immediately. Default on; bulk re-indexing suppresses it.
	CommitOnWrite bool
}

// New builds a Syncer from the table's column metadata and the registered
// indexed column list. A nil or empty list means all columns. A table
// without a primary key cannot be indexed: the identity key is the entire
// correlation mechanism between document and row.
func New(meta *relational.TableMeta, indexedColumns []string, handle *indexer.Handle) (*Syncer, error) {
	keyIdx := meta.PrimaryKeyIndices()
	if len(keyIdx) == 0 {
		return nil, &ConfigError{Schema: meta.Schema, Table: meta.Name, Reason: "no primary key"}
	}

	var indexIdx []int
	if len(indexedColumns) == 0 {
		indexIdx = make([]int, len(meta.Columns))
		for i := range meta.Columns {
			indexIdx[i] = i
		}
	} else {
		for _, name := range indexedColumns {
			pos, ok := meta.ColumnIndex(name)
			if !ok {
				return nil, &ConfigError{
					Schema: meta.Schema,
					Table:  meta.Name,
					Column: name,
					Reason: "unknown column",
				}
			}
			indexIdx = append(indexIdx, pos)
		}
	}

	return &Syncer{
		meta:          meta,
		keyIdx:        keyIdx,
		indexIdx:      indexIdx,
		handle:        handle,
		CommitOnWrite: true,
	}, nil
}

// Meta returns the table metadata this syncer is bound to.
func (s *Syncer) Meta() *relational.TableMeta {
	return s.meta
}

// Apply drives the index from one mutation event:
//
//	old absent,  new present  insert
//	old present, new present  delete+add, but only if an indexed column changed
//	old present, new absent   delete
//	both absent               protocol violation, logged and ignored
func (s *Syncer) Apply(ev relational.RowEvent) error {
	switch {
	case ev.Old != nil && ev.New != nil:
		if !s.hasChanged(ev.Old, ev.New) {
			return nil
		}
		if err := s.delete(ev.Old); err != nil {
			return err
		}
		return s.insert(ev.New, s.CommitOnWrite)
	case ev.Old != nil:
		// no immediate commit: the deletion becomes visible with the next
		// committed write, matching the insert-side buffering policy
		return s.delete(ev.Old)
	case ev.New != nil:
		return s.insert(ev.New, s.CommitOnWrite)
	default:
		slog.Warn("row event with neither old nor new row",
			"table", s.meta.Name,
			"event_id", ev.ID,
		)
		return nil
	}
}

// OnRowEvent adapts Apply to the relational.RowObserver interface. Errors
// are logged; trigger delivery has no error channel.
func (s *Syncer) OnRowEvent(ev relational.RowEvent) {
	if err := s.Apply(ev); err != nil {
		slog.Error("index synchronization failed",
			"table", s.meta.Name,
			"event_id", ev.ID,
			"error", err,
		)
	}
}

// Reindex feeds a full table scan through the insert path with immediate
// commits suppressed and issues a single commit-and-refresh at the end.
// O(rows) buffered appends, O(1) refreshes.
func (s *Syncer) Reindex(rows []relational.Row) error {
	for _, row := range rows {
		if err := s.insert(row, false); err != nil {
			return err
		}
	}
	return s.handle.CommitAndRefresh()
}

// hasChanged compares only the indexed column subset, value by value. Any
// difference, including a NULL transition, triggers re-indexing.
func (s *Syncer) hasChanged(old, new relational.Row) bool {
	for _, i := range s.indexIdx {
		if old[i] != new[i] {
			return true
		}
	}
	return false
}

func (s *Syncer) insert(row relational.Row, commit bool) error {
	identity, err := rowcodec.BuildIdentityKey(s.meta, s.keyIdx, row)
	if err != nil {
		return err
	}

	fields := make(map[string]any, len(s.indexIdx)+3)
	var body strings.Builder
	for _, columnIndex := range s.indexIdx {
		col := s.meta.Columns[columnIndex]
		value := row[columnIndex]
		if value == nil {
			continue
		}
		text, err := rowcodec.StringValue(value, col.Type)
		if err != nil {
			return &rowcodec.EncodingError{
				Table:  s.meta.Name,
				Column: col.Name,
				Value:  value,
				Reason: err.Error(),
			}
		}
		fields[indexer.EscapeColumnField(col.Name)] = text
		if body.Len() > 0 {
			body.WriteByte(' ')
		}
		body.WriteString(text)
	}
	fields[indexer.FieldData] = body.String()
	fields[indexer.FieldQuery] = identity
	fields[indexer.FieldModified] = time.Now().UTC().Format("20060102150405")

	if err := s.handle.AddDocument(indexer.Document{ID: identity, Fields: fields}); err != nil {
		return fmt.Errorf("table %s: add document: %w", s.meta.Name, err)
	}
	if commit {
		return s.handle.CommitAndRefresh()
	}
	return nil
}

func (s *Syncer) delete(row relational.Row) error {
	identity, err := rowcodec.BuildIdentityKey(s.meta, s.keyIdx, row)
	if err != nil {
		return err
	}
	if err := s.handle.DeleteByIdentity(identity); err != nil {
		return fmt.Errorf("table %s: delete document: %w", s.meta.Name, err)
	}
	return nil
}
