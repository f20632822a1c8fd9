// Package search turns free-text queries into ranked results mapped back
// to relational row identity, in either locator or structured shape.
package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/yuki792/fulltext/internal/indexer"
	"github.com/yuki792/fulltext/internal/rowcodec"
)

// DefaultBatchSize bounds a search requested with limit 0 ("no limit").
// The underlying search primitive needs a hard cap; a result set larger
// than this is truncated, not silently complete.
const DefaultBatchSize = 100

// Error wraps any failure inside the search pipeline: query parsing,
// snapshot acquisition, or a corrupt stored identity during decode.
type Error struct {
	Query string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LocatorResult is one hit in locator shape: the raw identity key of the
// originating row plus its relevance score.
type LocatorResult struct {
	Locator string
	Score   float64
}

// StructuredResult is one hit decoded back into relational identity.
// Keys holds the literal value text of the primary key columns.
type StructuredResult struct {
	Schema  string
	Table   string
	Columns []string
	Keys    []string
	Score   float64
}

// Pipeline executes queries against one shared index handle.
type Pipeline struct {
	handle *indexer.Handle
}

func New(handle *indexer.Handle) *Pipeline {
	return &Pipeline{handle: handle}
}

// Search runs a top-K query and returns locator-shaped results in
// descending relevance order. limit 0 means "no limit" and falls back to
// DefaultBatchSize; offset skips the leading hits. A blank query returns
// an empty result, not an error.
func (p *Pipeline) Search(text string, limit, offset int) ([]LocatorResult, error) {
	hits, err := p.run(text, limit, offset)
	if err != nil || hits == nil {
		return nil, err
	}
	results := make([]LocatorResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, LocatorResult{Locator: hit.locator, Score: hit.score})
	}
	return results, nil
}

// SearchData runs the same query but decodes each hit's identity key into
// schema, table, key column names and key values.
func (p *Pipeline) SearchData(text string, limit, offset int) ([]StructuredResult, error) {
	hits, err := p.run(text, limit, offset)
	if err != nil || hits == nil {
		return nil, err
	}
	results := make([]StructuredResult, 0, len(hits))
	for _, hit := range hits {
		id, err := rowcodec.DecodeIdentityKey(hit.locator)
		if err != nil {
			return nil, &Error{Query: text, Err: err}
		}
		results = append(results, StructuredResult{
			Schema:  id.Schema,
			Table:   id.Table,
			Columns: id.Columns,
			Keys:    id.Keys,
			Score:   hit.score,
		})
	}
	return results, nil
}

type rawHit struct {
	locator string
	score   float64
}

func (p *Pipeline) run(text string, limit, offset int) ([]rawHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	// capture the snapshot reference once; a concurrent commit swaps what
	// future searches see, never what this one already holds
	idx, err := p.handle.Snapshot()
	if err != nil {
		return nil, &Error{Query: text, Err: err}
	}

	size := limit
	if size == 0 {
		size = DefaultBatchSize
	}
	query := bleve.NewQueryStringQuery(text)
	req := bleve.NewSearchRequestOptions(query, size, offset, false)
	req.Fields = []string{indexer.FieldQuery}

	res, err := idx.Search(req)
	if err != nil {
		return nil, &Error{Query: text, Err: err}
	}

	hits := make([]rawHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		locator := hit.ID
		if stored, ok := hit.Fields[indexer.FieldQuery].(string); ok && stored != "" {
			locator = stored
		}
		hits = append(hits, rawHit{locator: locator, score: hit.Score})
	}
	return hits, nil
}
