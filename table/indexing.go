package table

import (
	"context"
	"fmt"

	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/frame"
	"github.com/hashicorp/go-multierror"
)

type rowKind int

const (
	rowsAll rowKind = iota
	rowsOne
	rowsSpan
)

// RowSelector picks rows by position. Spans include their upper bound.
type RowSelector struct {
	kind     rowKind
	start    int
	stop     int
	hasStart bool
	hasStop  bool
	step     int
}

// Row selects one row
func Row(i int) RowSelector {
	return RowSelector{kind: rowsOne, start: i, stop: i, hasStart: true, hasStop: true}
}

// Rows selects rows start through stop, inclusive
func Rows(start, stop int) RowSelector {
	return RowSelector{kind: rowsSpan, start: start, stop: stop, hasStart: true, hasStop: true}
}

// RowsFrom selects rows from start to the end
func RowsFrom(start int) RowSelector {
	return RowSelector{kind: rowsSpan, start: start, hasStart: true}
}

// RowsTo selects rows from the beginning through stop
func RowsTo(stop int) RowSelector {
	return RowSelector{kind: rowsSpan, stop: stop, hasStop: true}
}

// AllRows selects every row
func AllRows() RowSelector {
	return RowSelector{kind: rowsAll}
}

// Step sets the stride of a span. Only 1 is supported.
func (r RowSelector) Step(n int) RowSelector {
	r.step = n
	return r
}

// resolve converts the selector into 1-based inclusive fetch bounds, where
// zero leaves a bound open. numRows is called only for negative positions.
// ok is false when the selector matches no rows.
func (r RowSelector) resolve(labels bool, numRows func() (int, error)) (from, to int, ok bool, err error) {
	if r.step != 0 && r.step != 1 {
		return 0, 0, false, errors.NewParameterError("row step %d is not supported", r.step)
	}
	if r.kind == rowsAll {
		return 0, 0, true, nil
	}
	start, stop := r.start, r.stop
	if labels {
		for _, b := range []struct {
			set bool
			v   int
		}{{r.hasStart, start}, {r.hasStop, stop}} {
			if b.set && b.v < 0 {
				return 0, 0, false, errors.KeyNotFoundError{Key: fmt.Sprint(b.v)}
			}
		}
	}
	if (r.hasStart && start < 0) || (r.hasStop && stop < 0) {
		n, err := numRows()
		if err != nil {
			return 0, 0, false, err
		}
		if r.hasStart && start < 0 {
			start += n
		}
		if r.hasStop && stop < 0 {
			stop += n
		}
		if r.kind == rowsOne && start < 0 {
			return 0, 0, false, errors.IndexError{Index: r.start, Size: n}
		}
		start = max(start, 0)
	}
	if r.hasStop && (stop < 0 || (r.hasStart && start > stop)) {
		return 0, 0, false, nil
	}
	from, to = 1, 0
	if r.hasStart {
		from = start + 1
	}
	if r.hasStop {
		to = stop + 1
	}
	return from, to, true, nil
}

type colKind int

const (
	colsAll colKind = iota
	colsPosition
	colsName
	colsList
	colsSpan
)

// ColSelector picks columns by position or name
type ColSelector struct {
	kind        colKind
	item        interface{}
	items       []interface{}
	start, stop interface{}
}

// ColAt selects the column at position i
func ColAt(i int) ColSelector { return ColSelector{kind: colsPosition, item: i} }

// ColNamed selects one column by name
func ColNamed(name string) ColSelector { return ColSelector{kind: colsName, item: name} }

// ColList selects columns by name or position, in order
func ColList(items ...interface{}) ColSelector { return ColSelector{kind: colsList, items: items} }

// ColSpan selects a range of columns. Position spans exclude stop; name
// spans include it. A nil bound is open.
func ColSpan(start, stop interface{}) ColSelector {
	return ColSelector{kind: colsSpan, start: start, stop: stop}
}

// AllCols selects every visible column
func AllCols() ColSelector { return ColSelector{kind: colsAll} }

// resolve returns the selected column names. Names in a list which are
// neither visible nor computed are returned in missing as well; they become
// computed columns holding missing values.
func (c ColSelector) resolve(visible, computed []string) (names, missing []string, err error) {
	switch c.kind {
	case colsAll:
		return visible, nil, nil
	case colsPosition, colsName:
		name, err := pickColumn(visible, c.item)
		if err != nil {
			return nil, nil, err
		}
		return []string{name}, nil, nil
	case colsList:
		var errs *multierror.Error
		names = make([]string, 0, len(c.items))
		for _, item := range c.items {
			if v, ok := item.(string); ok && indexFold(visible, v) < 0 {
				if i := indexFold(computed, v); i >= 0 {
					names = append(names, computed[i])
				} else {
					names = append(names, v)
					missing = append(missing, v)
				}
				continue
			}
			name, err := pickColumn(visible, item)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			names = append(names, name)
		}
		if err := errs.ErrorOrNil(); err != nil {
			return nil, nil, err
		}
		return names, missing, nil
	}
	start, stop := 0, len(visible)
	for i, bound := range []interface{}{c.start, c.stop} {
		if bound == nil {
			continue
		}
		var p int
		switch v := bound.(type) {
		case int:
			p = v
			if p < 0 {
				p += len(visible)
			}
			p = min(max(p, 0), len(visible))
		case string:
			p = indexFold(visible, v)
			if p < 0 {
				return nil, nil, errors.KeyNotFoundError{Key: v}
			}
			if i == 1 {
				p++
			}
		default:
			return nil, nil, errors.NewParameterError("column bound %v is neither a name nor a position", bound)
		}
		if i == 0 {
			start = p
		} else {
			stop = p
		}
	}
	if start >= stop {
		return []string{}, nil, nil
	}
	return visible[start:stop], nil, nil
}

func pickColumn(visible []string, item interface{}) (string, error) {
	switch v := item.(type) {
	case int:
		i := v
		if i < 0 {
			i += len(visible)
		}
		if i < 0 || i >= len(visible) {
			return "", errors.IndexError{Index: v, Size: len(visible)}
		}
		return visible[i], nil
	case string:
		if i := indexFold(visible, v); i >= 0 {
			return visible[i], nil
		}
		return "", errors.KeyNotFoundError{Key: v}
	}
	return "", errors.NewParameterError("column selector %v is neither a name nor a position", item)
}

func (t *Table) locate(ctx context.Context, rows RowSelector, cols ColSelector, labels bool) (*frame.Frame, error) {
	visible, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	names, missing, err := cols.resolve(visible, t.Compvars())
	if err != nil {
		return nil, err
	}
	from, to, ok, err := rows.resolve(labels, func() (int, error) { return t.NumRows(ctx) })
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return frame.New(nil), nil
	}
	if !ok {
		return frame.New(names), nil
	}
	src := t
	if len(missing) > 0 {
		src = t.Copy()
		for _, name := range missing {
			src.AppendComputedColumns([]string{name}, []string{expr.Nlit(name) + " = ."})
		}
		if len(src.Varlist()) > 0 {
			src.AppendVarlist(missing...)
		}
	}
	if to == 0 && rows.kind == rowsAll {
		sess, err := t.Session()
		if err != nil {
			return nil, err
		}
		to = sess.Options().MaxRowsFetched
	}
	return src.Fetch(ctx, FetchOptions{From: from, To: to, Columns: names})
}

// ILoc selects rows and columns by position
func (t *Table) ILoc(ctx context.Context, rows RowSelector, cols ColSelector) (*frame.Frame, error) {
	return t.locate(ctx, rows, cols, false)
}

// Loc selects rows by label and columns by name. Row labels are the default
// positional labels, so negative labels do not exist.
func (t *Table) Loc(ctx context.Context, rows RowSelector, cols ColSelector) (*frame.Frame, error) {
	return t.locate(ctx, rows, cols, true)
}

func (t *Table) scalar(ctx context.Context, row int, col ColSelector, labels bool) (interface{}, error) {
	f, err := t.locate(ctx, Row(row), col, labels)
	if err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		if labels {
			return nil, errors.KeyNotFoundError{Key: fmt.Sprint(row)}
		}
		return nil, errors.IndexError{Index: row, Size: -1}
	}
	return f.At(0, 0)
}

// IAt returns one value by row and column position
func (t *Table) IAt(ctx context.Context, row, col int) (interface{}, error) {
	return t.scalar(ctx, row, ColAt(col), false)
}

// At returns one value by row label and column name
func (t *Table) At(ctx context.Context, row int, col string) (interface{}, error) {
	return t.scalar(ctx, row, ColNamed(col), true)
}

// GetValue returns one value by row position and column name or position
func (t *Table) GetValue(ctx context.Context, row int, col interface{}) (interface{}, error) {
	switch v := col.(type) {
	case int:
		return t.IAt(ctx, row, v)
	case string:
		return t.scalar(ctx, row, ColNamed(v), false)
	}
	return nil, errors.NewParameterError("column selector %v is neither a name nor a position", col)
}

// Lookup returns the values at each (rows[i], cols[i]) pair
func (t *Table) Lookup(ctx context.Context, rows []int, cols []string) ([]interface{}, error) {
	if len(rows) != len(cols) {
		return nil, errors.NewParameterError("got %d rows and %d columns", len(rows), len(cols))
	}
	out := make([]interface{}, len(rows))
	for i := range rows {
		v, err := t.At(ctx, rows[i], cols[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
