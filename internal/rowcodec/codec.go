// Package rowcodec converts relational rows to and from their index
// representation: a canonical identity key built from the primary key
// columns, and the flattened searchable text built from the indexed
// columns. The identity key is the sole correlation between an index
// document and its source row, so its byte output is a contract:
// two rows with the same primary key values always produce the same key.
package rowcodec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuki792/fulltext/internal/relational"
)

const whereSeparator = " WHERE "

// EncodingError reports an unsupported column type or a value that cannot
// be rendered during identity/text construction.
type EncodingError struct {
	Table  string
	Column string
	Value  any
	Reason string
}

func (e *EncodingError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("encoding failed for %s.%s", e.Table, e.Column))
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v (%T)", e.Value, e.Value))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return strings.Join(parts, " - ")
}

// Identity is the decoded form of an identity key.
type Identity struct {
	Schema  string   // empty when the key carried a single-part table reference
	Table   string
	Columns []string // primary key column names
	Keys    []string // literal value text, quotes stripped, "NULL" for IS NULL
}

// BuildIdentityKey renders the canonical locator for a row:
//
//	SCHEMA.TABLE WHERE COL1=VAL1 AND COL2=VAL2 ...
//
// over the primary key columns only, with NULL rendered as IS NULL.
// Identifiers are quoted only when they need escaping.
func BuildIdentityKey(meta *relational.TableMeta, keyIdx []int, row relational.Row) (string, error) {
	var buff strings.Builder
	if meta.Schema != "" {
		buff.WriteString(QuoteIdentifier(meta.Schema))
		buff.WriteByte('.')
	}
	buff.WriteString(QuoteIdentifier(meta.Name))
	buff.WriteString(whereSeparator)
	for i, columnIndex := range keyIdx {
		if i > 0 {
			buff.WriteString(" AND ")
		}
		col := meta.Columns[columnIndex]
		buff.WriteString(QuoteIdentifier(col.Name))
		value := row[columnIndex]
		if value == nil {
			buff.WriteString(" IS NULL")
			continue
		}
		lit, err := Literal(value, col.Type)
		if err != nil {
			return "", &EncodingError{Table: meta.Name, Column: col.Name, Value: value, Reason: err.Error()}
		}
		buff.WriteByte('=')
		buff.WriteString(lit)
	}
	return buff.String(), nil
}

// BuildSearchText concatenates the string form of each indexed column,
// space separated. NULL columns contribute nothing. The per-value
// conversion is the same StringValue the literal renderer builds on, so
// delete matching and searchable content stay consistent.
func BuildSearchText(meta *relational.TableMeta, indexIdx []int, row relational.Row) (string, error) {
	var buff strings.Builder
	for _, columnIndex := range indexIdx {
		col := meta.Columns[columnIndex]
		value := row[columnIndex]
		if value == nil {
			continue
		}
		text, err := StringValue(value, col.Type)
		if err != nil {
			return "", &EncodingError{Table: meta.Name, Column: col.Name, Value: value, Reason: err.Error()}
		}
		if buff.Len() > 0 {
			buff.WriteByte(' ')
		}
		buff.WriteString(text)
	}
	return buff.String(), nil
}

// DecodeIdentityKey is the inverse of BuildIdentityKey, used by the
// structured search result path.
//
// The table reference and the conditions are separated at the FIRST
// occurrence of " WHERE ". A quoted identifier or literal containing that
// substring would confuse the split; this mirrors the encoding scheme's
// documented behavior and is pinned by tests rather than defended against.
func DecodeIdentityKey(key string) (Identity, error) {
	idx := strings.Index(key, whereSeparator)
	if idx < 0 {
		return Identity{}, fmt.Errorf("identity key %q: missing WHERE separator", key)
	}
	tableRef := key[:idx]
	rest := key[idx+len(whereSeparator):]

	var id Identity
	parts := splitOutsideQuotes(tableRef, ".")
	switch len(parts) {
	case 1:
		id.Table = UnquoteIdentifier(parts[0])
	case 2:
		id.Schema = UnquoteIdentifier(parts[0])
		id.Table = UnquoteIdentifier(parts[1])
	default:
		return Identity{}, fmt.Errorf("identity key %q: malformed table reference", key)
	}

	for _, cond := range splitOutsideQuotes(rest, " AND ") {
		if col, ok := strings.CutSuffix(cond, " IS NULL"); ok {
			id.Columns = append(id.Columns, UnquoteIdentifier(col))
			id.Keys = append(id.Keys, "NULL")
			continue
		}
		eq := indexOutsideQuotes(cond, "=")
		if eq < 0 {
			return Identity{}, fmt.Errorf("identity key %q: malformed condition %q", key, cond)
		}
		id.Columns = append(id.Columns, UnquoteIdentifier(cond[:eq]))
		id.Keys = append(id.Keys, unquoteLiteral(cond[eq+1:]))
	}
	return id, nil
}

// StringValue renders the plain string form of a typed value. This is the
// single per-value conversion shared by the searchable body and, through
// Literal, the identity key.
func StringValue(value any, typ relational.ColumnType) (string, error) {
	switch typ {
	case relational.ColumnTypeInt, relational.ColumnTypeBigInt:
		switch v := value.(type) {
		case int:
			return strconv.FormatInt(int64(v), 10), nil
		case int32:
			return strconv.FormatInt(int64(v), 10), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			// integers loaded from JSON arrive as float64
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
	case relational.ColumnTypeFloat, relational.ColumnTypeDecimal:
		switch v := value.(type) {
		case float32:
			return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case int:
			return strconv.FormatInt(int64(v), 10), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		}
	case relational.ColumnTypeText:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case relational.ColumnTypeBool:
		if v, ok := value.(bool); ok {
			if v {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
	case relational.ColumnTypeDate:
		switch v := value.(type) {
		case time.Time:
			return v.Format("2006-01-02"), nil
		case string:
			return v, nil
		}
	case relational.ColumnTypeTime:
		switch v := value.(type) {
		case time.Time:
			return v.Format("15:04:05"), nil
		case string:
			return v, nil
		}
	case relational.ColumnTypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			return v.Format("2006-01-02 15:04:05"), nil
		case string:
			return v, nil
		}
	default:
		return "", fmt.Errorf("unsupported column type %s", typ)
	}
	return "", fmt.Errorf("value %v (%T) does not match column type %s", value, value, typ)
}

// Literal renders the SQL-literal-compatible form of a typed value:
// the StringValue, single-quoted for text and temporal types.
func Literal(value any, typ relational.ColumnType) (string, error) {
	text, err := StringValue(value, typ)
	if err != nil {
		return "", err
	}
	switch typ {
	case relational.ColumnTypeText, relational.ColumnTypeDate,
		relational.ColumnTypeTime, relational.ColumnTypeTimestamp:
		return "'" + strings.ReplaceAll(text, "'", "''") + "'", nil
	}
	return text, nil
}

// QuoteIdentifier wraps an identifier in double quotes when it is not a
// plain uppercase identifier, doubling embedded quotes.
func QuoteIdentifier(s string) string {
	if isPlainIdentifier(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// UnquoteIdentifier strips the double quotes QuoteIdentifier may have added.
func UnquoteIdentifier(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func unquoteLiteral(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

// splitOutsideQuotes splits s on sep, ignoring occurrences inside single-
// or double-quoted sections.
func splitOutsideQuotes(s, sep string) []string {
	var parts []string
	start := 0
	for i := 0; i+len(sep) <= len(s); {
		if c := s[i]; c == '\'' || c == '"' {
			i = skipQuoted(s, i)
			continue
		}
		if s[i:i+len(sep)] == sep {
			parts = append(parts, s[start:i])
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	parts = append(parts, s[start:])
	return parts
}

func indexOutsideQuotes(s, sep string) int {
	for i := 0; i+len(sep) <= len(s); {
		if c := s[i]; c == '\'' || c == '"' {
			i = skipQuoted(s, i)
			continue
		}
		if s[i:i+len(sep)] == sep {
			return i
		}
		i++
	}
	return -1
}

// skipQuoted returns the position just past the quoted section opening at
// i. Doubled quote characters inside the section are treated as escapes.
func skipQuoted(s string, i int) int {
	quote := s[i]
	i++
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}
