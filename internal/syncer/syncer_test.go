package syncer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"github.com/yuki792/fulltext/internal/indexer"
	"github.com/yuki792/fulltext/internal/relational"
)

func testMeta() *relational.TableMeta {
	return &relational.TableMeta{
		Schema: "PUBLIC",
		Name:   "DOCS",
		Columns: []relational.Column{
			{Name: "ID", Type: relational.ColumnTypeInt, PrimaryKey: true},
			{Name: "BODY", Type: relational.ColumnTypeText},
			{Name: "NOTES", Type: relational.ColumnTypeText},
		},
	}
}

func testHandle(t *testing.T) *indexer.Handle {
	t.Helper()
	h, err := indexer.OpenOrCreate(filepath.Join(t.TempDir(), "idx"), false)
	if err != nil {
		t.Fatalf("OpenOrCreate failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func event(meta *relational.TableMeta, old, new relational.Row) relational.RowEvent {
	return relational.NewRowEvent(meta, old, new)
}

func countHits(t *testing.T, h *indexer.Handle, text string) int {
	t.Helper()
	idx, err := h.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(text), 10, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	return len(res.Hits)
}

func mustCount(t *testing.T, h *indexer.Handle) uint64 {
	t.Helper()
	count, err := h.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	return count
}

func TestNewRequiresPrimaryKey(t *testing.T) {
	meta := &relational.TableMeta{
		Name: "NOPK",
		Columns: []relational.Column{
			{Name: "BODY", Type: relational.ColumnTypeText},
		},
	}
	_, err := New(meta, nil, testHandle(t))
	if err == nil {
		t.Fatal("Expected error for table without primary key")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *ConfigError, got %T", err)
	}
}

func TestNewRejectsUnknownColumn(t *testing.T) {
	_, err := New(testMeta(), []string{"NO_SUCH_COLUMN"}, testHandle(t))
	if err == nil {
		t.Fatal("Expected error for unknown column in explicit list")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *ConfigError, got %T", err)
	}
}

func TestApplyInsert(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ev := event(s.Meta(), nil, relational.Row{int64(1), "hello world", "n"})
	if err := s.Apply(ev); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// CommitOnWrite default: visible immediately
	if got := countHits(t, h, "hello"); got != 1 {
		t.Errorf("Expected 1 hit, got %d", got)
	}
}

func TestApplyInsertBufferedWithoutCommitPolicy(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.CommitOnWrite = false

	ev := event(s.Meta(), nil, relational.Row{int64(1), "hello world", "n"})
	if err := s.Apply(ev); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := countHits(t, h, "hello"); got != 0 {
		t.Errorf("Write visible before explicit commit: %d hits", got)
	}

	if err := h.CommitAndRefresh(); err != nil {
		t.Fatalf("CommitAndRefresh failed: %v", err)
	}
	if got := countHits(t, h, "hello"); got != 1 {
		t.Errorf("Expected 1 hit after commit, got %d", got)
	}
}

func TestApplyUpdateIndexedColumn(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), []string{"BODY"}, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	old := relational.Row{int64(1), "old text", "n"}
	if err := s.Apply(event(s.Meta(), nil, old)); err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}

	updated := relational.Row{int64(1), "fresh text", "n"}
	if err := s.Apply(event(s.Meta(), old, updated)); err != nil {
		t.Fatalf("Apply update failed: %v", err)
	}

	if got := mustCount(t, h); got != 1 {
		t.Errorf("Expected exactly one document after update, got %d", got)
	}
	if got := countHits(t, h, "old"); got != 0 {
		t.Errorf("Stale document still searchable: %d hits", got)
	}
	if got := countHits(t, h, "fresh"); got != 1 {
		t.Errorf("Expected updated document, got %d hits", got)
	}
}

func TestApplyUpdateNonIndexedColumnIsNoop(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), []string{"BODY"}, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	old := relational.Row{int64(1), "same body", "old notes"}
	if err := s.Apply(event(s.Meta(), nil, old)); err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}
	genBefore := h.Generation()

	// only the non-indexed NOTES column changes
	updated := relational.Row{int64(1), "same body", "new notes"}
	if err := s.Apply(event(s.Meta(), old, updated)); err != nil {
		t.Fatalf("Apply update failed: %v", err)
	}

	if got := h.Generation(); got != genBefore {
		t.Errorf("No-op update must not commit: generation %d -> %d", genBefore, got)
	}
	if got := mustCount(t, h); got != 1 {
		t.Errorf("Expected document count unchanged, got %d", got)
	}
}

func TestApplyUpdateNullTransition(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), []string{"BODY"}, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	old := relational.Row{int64(1), "text", "n"}
	if err := s.Apply(event(s.Meta(), nil, old)); err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}

	// NULL vs non-NULL counts as a change
	updated := relational.Row{int64(1), nil, "n"}
	if err := s.Apply(event(s.Meta(), old, updated)); err != nil {
		t.Fatalf("Apply update failed: %v", err)
	}
	if got := countHits(t, h, "text"); got != 0 {
		t.Errorf("Expected re-index on NULL transition, got %d hits", got)
	}
}

func TestApplyDelete(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	row := relational.Row{int64(1), "hello world", "n"}
	if err := s.Apply(event(s.Meta(), nil, row)); err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}
	if err := s.Apply(event(s.Meta(), row, nil)); err != nil {
		t.Fatalf("Apply delete failed: %v", err)
	}
	// deletions are buffered until the next commit
	if err := h.CommitAndRefresh(); err != nil {
		t.Fatalf("CommitAndRefresh failed: %v", err)
	}

	if got := countHits(t, h, "hello"); got != 0 {
		t.Errorf("Deleted row still searchable: %d hits", got)
	}
	if got := mustCount(t, h); got != 0 {
		t.Errorf("Expected empty index, got %d docs", got)
	}
}

func TestApplyRollbackCompensation(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	row := relational.Row{int64(1), "transient row", "n"}
	insert := event(s.Meta(), nil, row)
	if err := s.Apply(insert); err != nil {
		t.Fatalf("Apply insert failed: %v", err)
	}

	// rollback arrives as the inverse event through the same path
	if err := s.Apply(insert.Inverse()); err != nil {
		t.Fatalf("Apply compensation failed: %v", err)
	}
	if err := h.CommitAndRefresh(); err != nil {
		t.Fatalf("CommitAndRefresh failed: %v", err)
	}
	if got := countHits(t, h, "transient"); got != 0 {
		t.Errorf("Rolled-back row still searchable: %d hits", got)
	}
}

func TestApplyEmptyEventIgnored(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// protocol violation: logged and ignored, never an error
	if err := s.Apply(event(s.Meta(), nil, nil)); err != nil {
		t.Errorf("Expected nil error for empty event, got %v", err)
	}
}

func TestReindexSingleRefresh(t *testing.T) {
	h := testHandle(t)
	s, err := New(testMeta(), nil, h)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	genBefore := h.Generation()

	rows := []relational.Row{
		{int64(1), "first row", "n"},
		{int64(2), "second row", "n"},
		{int64(3), "third row", "n"},
	}
	if err := s.Reindex(rows); err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}

	if got := mustCount(t, h); got != 3 {
		t.Errorf("Expected 3 documents, got %d", got)
	}
	// one refresh for the whole scan, not one per row
	if got := h.Generation(); got != genBefore+1 {
		t.Errorf("Expected exactly one commit, generation %d -> %d", genBefore, got)
	}
}
