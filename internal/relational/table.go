package relational

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Table is a minimal observable in-memory table. It is the host side of the
// mutation-event contract: every insert/update/delete notifies the
// registered observers with old/new row snapshots, and Rollback re-delivers
// the inverse events of the current statement batch.
type Table struct {
	mu        sync.RWMutex
	Meta      *TableMeta
	rows      []Row
	observers []RowObserver
	journal   []RowEvent // uncommitted events, replayed inverse on rollback
}

func NewTable(meta *TableMeta) *Table {
	return &Table{Meta: meta}
}

// AddObserver registers an observer to receive row mutation events
func (t *Table) AddObserver(observer RowObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, observer)
}

// RemoveObserver unregisters an observer
func (t *Table) RemoveObserver(observer RowObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, o := range t.observers {
		if o == observer {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Insert adds a new row with type validation and primary key enforcement
func (t *Table) Insert(mutRow Row) error {
	row := mutRow.Copy() // prevent mutation of caller's data

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.validateRow(row); err != nil {
		return err
	}
	if err := t.checkPrimaryKey(row, -1); err != nil {
		return err
	}

	t.rows = append(t.rows, row)
	t.notify(nil, row)
	return nil
}

// Update modifies rows that match the given predicate using the apply
// function. Returns the number of rows updated.
func (t *Table) Update(predicate func(Row) bool, apply func(Row) Row) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for i, row := range t.rows {
		if !predicate(row) {
			continue
		}
		updated := apply(row.Copy())
		if err := t.validateRow(updated); err != nil {
			return count, err
		}
		old := t.rows[i]
		t.rows[i] = updated
		t.notify(old, updated)
		count++
	}
	return count, nil
}

// Delete removes rows that match the given predicate
// Returns the number of rows deleted
func (t *Table) Delete(predicate func(Row) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var kept []Row
	deleted := 0
	for _, row := range t.rows {
		if predicate(row) {
			t.notify(row, nil)
			deleted++
		} else {
			kept = append(kept, row)
		}
	}
	if deleted > 0 {
		t.rows = kept
	}
	return deleted, nil
}

// SelectAll returns a copy of all rows
func (t *Table) SelectAll() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]Row, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row.Copy()
	}
	return rows
}

// Commit ends the current statement batch; rolled-back events before the
// next Commit only cover mutations made after this call.
func (t *Table) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.journal = nil
}

// Rollback undoes all uncommitted mutations in reverse order and delivers
// the compensating inverse events to observers. The index has no
// transactional log of its own, so inverse delivery is the only mechanism
// that keeps it consistent after a host rollback.
func (t *Table) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.journal) - 1; i >= 0; i-- {
		ev := t.journal[i]
		switch {
		case ev.Old == nil && ev.New != nil: // undo insert
			t.removeRowUnsafe(ev.New)
		case ev.Old != nil && ev.New != nil: // undo update
			t.replaceRowUnsafe(ev.New, ev.Old)
		case ev.Old != nil && ev.New == nil: // undo delete
			t.rows = append(t.rows, ev.Old)
		}
		inv := ev.Inverse()
		slog.Debug("rollback compensation",
			"table", t.Meta.Name,
			"event_id", inv.ID,
		)
		for _, observer := range t.observers {
			observer.OnRowEvent(inv)
		}
	}
	t.journal = nil
}

// notify journals the mutation and fans it out to observers
// Must be called while holding the write lock
func (t *Table) notify(old, new Row) {
	ev := NewRowEvent(t.Meta, old, new)
	ev.Timestamp = time.Now()
	t.journal = append(t.journal, ev)
	slog.Debug("row mutation",
		"table", t.Meta.Name,
		"event_id", ev.ID,
		"insert", old == nil,
		"delete", new == nil,
	)
	for _, observer := range t.observers {
		observer.OnRowEvent(ev)
	}
}

func (t *Table) removeRowUnsafe(target Row) {
	for i, row := range t.rows {
		if rowsEqual(row, target) {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return
		}
	}
}

func (t *Table) replaceRowUnsafe(from, to Row) {
	for i, row := range t.rows {
		if rowsEqual(row, from) {
			t.rows[i] = to
			return
		}
	}
}

func rowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validateRow validates a row against the table schema
// Must be called while holding a lock
func (t *Table) validateRow(row Row) error {
	if len(row) != len(t.Meta.Columns) {
		return fmt.Errorf("table %s: expected %d values, got %d",
			t.Meta.Name, len(t.Meta.Columns), len(row))
	}
	for i, col := range t.Meta.Columns {
		value := row[i]
		if value == nil {
			if col.NotNull || col.PrimaryKey {
				return fmt.Errorf("table %s: column %s must not be NULL", t.Meta.Name, col.Name)
			}
			continue
		}
		if err := validateType(t.Meta.Name, col, value); err != nil {
			return err
		}
	}
	return nil
}

// checkPrimaryKey rejects a row whose primary key values collide with an
// existing row. skip is the row position to ignore (-1 for inserts).
func (t *Table) checkPrimaryKey(row Row, skip int) error {
	keys := t.Meta.PrimaryKeyIndices()
	if len(keys) == 0 {
		return nil
	}
	for pos, existing := range t.rows {
		if pos == skip {
			continue
		}
		same := true
		for _, k := range keys {
			if existing[k] != row[k] {
				same = false
				break
			}
		}
		if same {
			return fmt.Errorf("table %s: duplicate primary key", t.Meta.Name)
		}
	}
	return nil
}

// validateType validates that a value matches the expected column type
func validateType(table string, col Column, value any) error {
	switch col.Type {
	case ColumnTypeInt, ColumnTypeBigInt:
		switch value.(type) {
		case int, int32, int64:
		default:
			return fmt.Errorf("table %s: column %s: expected %s, got %T", table, col.Name, col.Type, value)
		}
	case ColumnTypeFloat, ColumnTypeDecimal:
		switch value.(type) {
		case float32, float64, int, int64:
		default:
			return fmt.Errorf("table %s: column %s: expected %s, got %T", table, col.Name, col.Type, value)
		}
	case ColumnTypeText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("table %s: column %s: expected TEXT, got %T", table, col.Name, value)
		}
	case ColumnTypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("table %s: column %s: expected BOOL, got %T", table, col.Name, value)
		}
	case ColumnTypeDate, ColumnTypeTime, ColumnTypeTimestamp:
		switch value.(type) {
		case time.Time, string:
		default:
			return fmt.Errorf("table %s: column %s: expected %s, got %T", table, col.Name, col.Type, value)
		}
	}
	return nil
}
