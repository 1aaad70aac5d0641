// Package frame provides Frame, the local row/column container that holds
// materialized results. A Frame has named columns and an optional index made
// of one or more named levels. Missing values are represented by nil.
package frame

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/params"
)

// Frame is a materialized table of values
type Frame struct {
	index   []string
	columns []string
	keys    [][]interface{}
	rows    [][]interface{}
}

// New creates an empty Frame with the given columns and index levels
func New(columns []string, index ...string) *Frame {
	return &Frame{
		index:   append([]string(nil), index...),
		columns: append([]string(nil), columns...),
	}
}

// AppendRow appends a row. key must hold one value per index level.
func (f *Frame) AppendRow(key []interface{}, values []interface{}) error {
	if len(key) != len(f.index) {
		return errors.NewParameterError("row key has %d levels, frame index has %d", len(key), len(f.index))
	}
	if len(values) != len(f.columns) {
		return errors.NewParameterError("row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	f.keys = append(f.keys, append([]interface{}(nil), key...))
	f.rows = append(f.rows, append([]interface{}(nil), values...))
	return nil
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.rows)
}

// Columns returns the column names
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// IndexNames returns the index level names
func (f *Frame) IndexNames() []string {
	return append([]string(nil), f.index...)
}

// ColumnIndex returns the position of a column, matched case-insensitively, or -1
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}
	fn := params.FoldKey(name)
	for i, c := range f.columns {
		if params.FoldKey(c) == fn {
			return i
		}
	}
	return -1
}

func (f *Frame) indexLevel(name string) int {
	fn := params.FoldKey(name)
	for i, c := range f.index {
		if params.FoldKey(c) == fn {
			return i
		}
	}
	return -1
}

// Row returns the values of row i
func (f *Frame) Row(i int) []interface{} {
	return f.rows[i]
}

// Key returns the index values of row i
func (f *Frame) Key(i int) []interface{} {
	return f.keys[i]
}

// Value returns the value at row i of the named column
func (f *Frame) Value(i int, column string) (interface{}, error) {
	if i < 0 || i >= len(f.rows) {
		return nil, errors.IndexError{Index: i, Size: len(f.rows)}
	}
	c := f.ColumnIndex(column)
	if c < 0 {
		return nil, errors.KeyNotFoundError{Key: column}
	}
	return f.rows[i][c], nil
}

// At returns the value at row i and column position j
func (f *Frame) At(i, j int) (interface{}, error) {
	if i < 0 || i >= len(f.rows) {
		return nil, errors.IndexError{Index: i, Size: len(f.rows)}
	}
	if j < 0 || j >= len(f.columns) {
		return nil, errors.IndexError{Index: j, Size: len(f.columns)}
	}
	return f.rows[i][j], nil
}

// Column returns all values of the named column
func (f *Frame) Column(name string) ([]interface{}, error) {
	c := f.ColumnIndex(name)
	if c < 0 {
		return nil, errors.KeyNotFoundError{Key: name}
	}
	out := make([]interface{}, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[c]
	}
	return out, nil
}

// Loc returns the position of the first row whose index equals key
func (f *Frame) Loc(key ...interface{}) (int, bool) {
	for i, k := range f.keys {
		if len(k) != len(key) {
			continue
		}
		match := true
		for j := range k {
			if !ValuesEqual(k[j], key[j]) {
				match = false
				break
			}
		}
		if match {
			return i, true
		}
	}
	return -1, false
}

// Select returns a Frame restricted to the given columns, in the given order
func (f *Frame) Select(columns ...string) (*Frame, error) {
	pos := make([]int, len(columns))
	for i, c := range columns {
		pos[i] = f.ColumnIndex(c)
		if pos[i] < 0 {
			return nil, errors.KeyNotFoundError{Key: c}
		}
	}
	out := New(columns, f.index...)
	for r, row := range f.rows {
		values := make([]interface{}, len(pos))
		for i, p := range pos {
			values[i] = row[p]
		}
		out.keys = append(out.keys, f.keys[r])
		out.rows = append(out.rows, values)
	}
	return out, nil
}

// Slice returns rows [start, end)
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end > len(f.rows) {
		end = len(f.rows)
	}
	out := New(f.columns, f.index...)
	if start < end {
		out.keys = append(out.keys, f.keys[start:end]...)
		out.rows = append(out.rows, f.rows[start:end]...)
	}
	return out
}

// SetIndex moves the given columns into the index, after any existing levels
func (f *Frame) SetIndex(columns ...string) (*Frame, error) {
	pos := make([]int, len(columns))
	moved := make(map[int]bool, len(columns))
	for i, c := range columns {
		pos[i] = f.ColumnIndex(c)
		if pos[i] < 0 {
			return nil, errors.KeyNotFoundError{Key: c}
		}
		moved[pos[i]] = true
	}
	var remaining []string
	for i, c := range f.columns {
		if !moved[i] {
			remaining = append(remaining, c)
		}
	}
	index := append(append([]string(nil), f.index...), columns...)
	out := New(remaining, index...)
	for r, row := range f.rows {
		key := append([]interface{}(nil), f.keys[r]...)
		for _, p := range pos {
			key = append(key, row[p])
		}
		values := make([]interface{}, 0, len(remaining))
		for i, v := range row {
			if !moved[i] {
				values = append(values, v)
			}
		}
		out.keys = append(out.keys, key)
		out.rows = append(out.rows, values)
	}
	return out, nil
}

// ResetIndex moves index levels back into leading columns, in level order.
// With no arguments every level is moved.
func (f *Frame) ResetIndex(levels ...string) *Frame {
	var move []int
	if len(levels) == 0 {
		for i := range f.index {
			move = append(move, i)
		}
	} else {
		for _, l := range levels {
			if p := f.indexLevel(l); p >= 0 {
				move = append(move, p)
			}
		}
	}
	moved := make(map[int]bool, len(move))
	var newCols []string
	for _, p := range move {
		moved[p] = true
		newCols = append(newCols, f.index[p])
	}
	var keep []string
	for i, name := range f.index {
		if !moved[i] {
			keep = append(keep, name)
		}
	}
	out := New(append(newCols, f.columns...), keep...)
	for r, row := range f.rows {
		var key []interface{}
		for i, v := range f.keys[r] {
			if !moved[i] {
				key = append(key, v)
			}
		}
		values := make([]interface{}, 0, len(move)+len(row))
		for _, p := range move {
			values = append(values, f.keys[r][p])
		}
		values = append(values, row...)
		if key == nil {
			key = []interface{}{}
		}
		out.keys = append(out.keys, key)
		out.rows = append(out.rows, values)
	}
	return out
}

// Rename returns a Frame with columns and index levels renamed according to names
func (f *Frame) Rename(names map[string]string) *Frame {
	out := &Frame{keys: f.keys, rows: f.rows}
	for _, c := range f.columns {
		if n, ok := names[c]; ok {
			c = n
		}
		out.columns = append(out.columns, c)
	}
	for _, c := range f.index {
		if n, ok := names[c]; ok {
			c = n
		}
		out.index = append(out.index, c)
	}
	return out
}

// Scalar returns the single value of a one-by-one Frame
func (f *Frame) Scalar() (interface{}, error) {
	if len(f.rows) != 1 || len(f.columns) != 1 {
		return nil, errors.NewParameterError("frame of shape (%d, %d) is not a scalar", len(f.rows), len(f.columns))
	}
	return f.rows[0][0], nil
}

// Concat stacks frames vertically. Columns are the union of all frame columns
// in order of first appearance; absent values are nil. Index levels are taken
// from the first frame.
func Concat(frames ...*Frame) *Frame {
	var nonNil []*Frame
	for _, fr := range frames {
		if fr != nil {
			nonNil = append(nonNil, fr)
		}
	}
	if len(nonNil) == 0 {
		return New(nil)
	}
	var columns []string
	seen := map[string]bool{}
	for _, fr := range nonNil {
		for _, c := range fr.columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	out := New(columns, nonNil[0].index...)
	for _, fr := range nonNil {
		pos := make([]int, len(columns))
		for i, c := range columns {
			pos[i] = -1
			for j, fc := range fr.columns {
				if fc == c {
					pos[i] = j
					break
				}
			}
		}
		for r, row := range fr.rows {
			values := make([]interface{}, len(columns))
			for i, p := range pos {
				if p >= 0 {
					values[i] = row[p]
				}
			}
			key := make([]interface{}, len(out.index))
			copy(key, fr.keys[r])
			out.keys = append(out.keys, key)
			out.rows = append(out.rows, values)
		}
	}
	return out
}

// IsMissing reports whether v is nil or a floating point NaN
func IsMissing(v interface{}) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(tv)
	case float32:
		return math.IsNaN(float64(tv))
	}
	return false
}

// ValuesEqual compares two cell values, treating numbers of different kinds
// as equal when their float64 representations match
func ValuesEqual(a, b interface{}) bool {
	if IsMissing(a) || IsMissing(b) {
		return IsMissing(a) && IsMissing(b)
	}
	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// ToFloat converts numeric cell values to float64
func ToFloat(v interface{}) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case uint64:
		return float64(tv), true
	case bool:
		if tv {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// String renders the frame as an aligned text table
func (f *Frame) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	header := append(append([]string(nil), f.index...), f.columns...)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for r, row := range f.rows {
		cells := make([]string, 0, len(header))
		for _, v := range f.keys[r] {
			cells = append(cells, formatCell(v))
		}
		for _, v := range row {
			cells = append(cells, formatCell(v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	return sb.String()
}

func formatCell(v interface{}) string {
	if IsMissing(v) {
		return "."
	}
	return fmt.Sprint(v)
}
