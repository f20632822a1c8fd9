package indexer

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Reserved field names inside every index document. Column fields whose
// name collides with the reserved prefix are escaped, see EscapeColumnField.
const (
	// FieldData holds the concatenated text of all indexed columns and is
	// the default search field.
	FieldData = "_DATA"
	// FieldQuery stores the identity key verbatim (keyword, not analyzed).
	FieldQuery = "_QUERY"
	// FieldModified stores the document's modification timestamp.
	FieldModified = "_MODIFIED"

	fieldColumnPrefix = "_"
)

// AnalyzerName identifies the text analyzer baked into the index mapping.
// It is part of the index location key: two databases sharing a storage
// path but analyzed differently must not share a physical index.
const AnalyzerName = standard.Name

// EscapeColumnField escapes column names that collide with the reserved
// internal field names by prepending the prefix once more.
func EscapeColumnField(name string) string {
	if strings.HasPrefix(name, fieldColumnPrefix) {
		return fieldColumnPrefix + name
	}
	return name
}

// buildIndexMapping describes the document layout: dynamic analyzed column
// fields (never stored), the analyzed _DATA body, the stored _QUERY keyword
// and the stored _MODIFIED timestamp. storeText controls whether the body
// text itself is kept in the index.
func buildIndexMapping(storeText bool) mapping.IndexMapping {
	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name
	body.Store = storeText
	body.IncludeInAll = false
	body.IncludeTermVectors = false

	identity := bleve.NewKeywordFieldMapping()
	identity.Store = true
	identity.IncludeInAll = false

	modified := bleve.NewKeywordFieldMapping()
	modified.Store = true
	modified.Index = false
	modified.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldData, body)
	doc.AddFieldMappingsAt(FieldQuery, identity)
	doc.AddFieldMappingsAt(FieldModified, modified)

	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	im.DefaultMapping = doc
	im.DefaultField = FieldData
	// column fields are searchable but never stored
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	return im
}
