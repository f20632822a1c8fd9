package relational

// Row is one tuple snapshot: values in column order, nil for SQL NULL.
type Row []any

// Copy creates a copy of the row to prevent mutation of caller's data
func (r Row) Copy() Row {
	if r == nil {
		return nil
	}
	dup := make(Row, len(r))
	copy(dup, r)
	return dup
}
