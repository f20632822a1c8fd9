package relational

// ColumnType is the SQL-ish type tag carried per column. The codec uses it
// to pick the literal rendering for identity keys and searchable text.
type ColumnType string

const (
	ColumnTypeInt       ColumnType = "INT"
	ColumnTypeBigInt    ColumnType = "BIGINT"
	ColumnTypeFloat     ColumnType = "FLOAT"
	ColumnTypeDecimal   ColumnType = "DECIMAL"
	ColumnTypeText      ColumnType = "TEXT"
	ColumnTypeBool      ColumnType = "BOOL"
	ColumnTypeDate      ColumnType = "DATE"
	ColumnTypeTime      ColumnType = "TIME"
	ColumnTypeTimestamp ColumnType = "TIMESTAMP"
)

type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	PrimaryKey bool       `json:"primary_key"`
	NotNull    bool       `json:"not_null"`
}

// TableMeta describes one table: schema, name, and the ordered column list.
// Rows are positional, so column order here is the row layout.
type TableMeta struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column names in row order.
func (m *TableMeta) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Name
	}
	return names
}

// PrimaryKeyIndices returns the positions of the primary key columns,
// in row order. Empty if the table has no primary key.
func (m *TableMeta) PrimaryKeyIndices() []int {
	var keys []int
	for i, col := range m.Columns {
		if col.PrimaryKey {
			keys = append(keys, i)
		}
	}
	return keys
}

// ColumnIndex returns the position of the named column.
func (m *TableMeta) ColumnIndex(name string) (int, bool) {
	for i, col := range m.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return 0, false
}
