// Command ftsearch demonstrates the full-text engine end to end: it builds
// a small in-memory table backed by an on-disk index, wires the mutation
// events, and runs a query from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/yuki792/fulltext/internal/fulltext"
	"github.com/yuki792/fulltext/internal/logging"
	"github.com/yuki792/fulltext/internal/relational"
)

// tableCatalog adapts a single relational.Table to the fulltext.Catalog
// interface.
type tableCatalog struct {
	table *relational.Table
}

func (c *tableCatalog) TableMeta(schema, table string) (*relational.TableMeta, error) {
	if schema != c.table.Meta.Schema || table != c.table.Meta.Name {
		return nil, fmt.Errorf("unknown table %s.%s", schema, table)
	}
	return c.table.Meta, nil
}

func (c *tableCatalog) ScanTable(schema, table string) ([]relational.Row, error) {
	if schema != c.table.Meta.Schema || table != c.table.Meta.Name {
		return nil, fmt.Errorf("unknown table %s.%s", schema, table)
	}
	return c.table.SelectAll(), nil
}

func main() {
	var (
		dbPath     = pflag.String("db", "", "database storage path (default: temp directory)")
		limit      = pflag.Int("limit", 0, "maximum number of results, 0 for the default batch")
		offset     = pflag.Int("offset", 0, "number of leading results to skip")
		structured = pflag.Bool("data", false, "decode results into schema/table/key columns")
		seqURL     = pflag.String("seq", "", "optional Seq logging endpoint")
		debug      = pflag.Bool("debug", false, "enable debug logging")
	)
	pflag.Parse()
	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <query>\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(2)
	}
	query := pflag.Arg(0)

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger, closeLog := logging.Setup(level, *seqURL)
	defer closeLog()

	path := *dbPath
	if path == "" {
		dir, err := os.MkdirTemp("", "ftsearch")
		if err != nil {
			logger.Error("failed to create temp directory", "error", err)
			os.Exit(1)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "demo")
	}

	meta := &relational.TableMeta{
		Schema: "PUBLIC",
		Name:   "ARTICLES",
		Columns: []relational.Column{
			{Name: "ID", Type: relational.ColumnTypeInt, PrimaryKey: true},
			{Name: "TITLE", Type: relational.ColumnTypeText},
			{Name: "BODY", Type: relational.ColumnTypeText},
		},
	}
	table := relational.NewTable(meta)

	svc, err := fulltext.New(path, &tableCatalog{table: table}, fulltext.Options{})
	if err != nil {
		logger.Error("failed to create full-text service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// index first, then insert through the event path
	if err := svc.CreateIndex("PUBLIC", "ARTICLES", nil); err != nil {
		logger.Error("failed to create index", "error", err)
		os.Exit(1)
	}
	table.AddObserver(svc)

	seed := []relational.Row{
		{int64(1), "Hello", "hello world, welcome to full text search"},
		{int64(2), "Goodbye", "goodbye world, thanks for all the fish"},
		{int64(3), "Indexing", "incremental index synchronization for relational rows"},
	}
	for _, row := range seed {
		if err := table.Insert(row); err != nil {
			logger.Error("insert failed", "error", err)
			os.Exit(1)
		}
	}

	if *structured {
		results, err := svc.SearchData(query, *limit, *offset)
		if err != nil {
			logger.Error("search failed", "query", query, "error", err)
			os.Exit(1)
		}
		for _, r := range results {
			fmt.Printf("%s.%s %v=%v score=%.4f\n", r.Schema, r.Table, r.Columns, r.Keys, r.Score)
		}
		return
	}

	results, err := svc.Search(query, *limit, *offset)
	if err != nil {
		logger.Error("search failed", "query", query, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("%s score=%.4f\n", r.Locator, r.Score)
	}
}
