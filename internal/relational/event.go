package relational

import (
	"time"

	"github.com/google/uuid"
)

// RowEvent describes one row mutation after the statement's effect is known.
// The old/new snapshots encode the kind of change:
//
//	Old == nil, New != nil  insert
//	Old != nil, New != nil  update
//	Old != nil, New == nil  delete
//
// A rollback is delivered as the inverse event (old/new swapped); there is
// no separate rollback kind.
type RowEvent struct {
	Table     *TableMeta // table the row belongs to
	Old       Row        // row before the change, nil on insert
	New       Row        // row after the change, nil on delete
	ID        string     // event ID for tracing
	Timestamp time.Time  // when the event was emitted
}

// RowObserver interface for mutation subscribers
// Observers receive one event per affected row
type RowObserver interface {
	OnRowEvent(event RowEvent)
}

// NewRowEvent stamps an event with an ID and the current time.
func NewRowEvent(meta *TableMeta, old, new Row) RowEvent {
	return RowEvent{
		Table:     meta,
		Old:       old,
		New:       new,
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
	}
}

// Inverse returns the compensating event for a rollback: old and new
// swapped, with a fresh ID.
func (e RowEvent) Inverse() RowEvent {
	return NewRowEvent(e.Table, e.New, e.Old)
}
