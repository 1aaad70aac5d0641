package frame

// WithConstant returns a frame where every row carries the given values,
// either as leading index levels or as leading columns
func (f *Frame) WithConstant(names []string, values []interface{}, asIndex bool) *Frame {
	if len(names) == 0 {
		return f
	}
	if asIndex {
		out := New(f.columns, append(append([]string(nil), names...), f.index...)...)
		for r, row := range f.rows {
			key := append(append([]interface{}(nil), values...), f.keys[r]...)
			out.keys = append(out.keys, key)
			out.rows = append(out.rows, row)
		}
		return out
	}
	out := New(append(append([]string(nil), names...), f.columns...), f.index...)
	for r, row := range f.rows {
		out.keys = append(out.keys, f.keys[r])
		out.rows = append(out.rows, append(append([]interface{}(nil), values...), row...))
	}
	return out
}

// HasColumns reports whether every name is a column of the frame
func (f *Frame) HasColumns(names ...string) bool {
	for _, n := range names {
		if f.ColumnIndex(n) < 0 {
			return false
		}
	}
	return true
}
