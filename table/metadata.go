package table

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
	"github.com/hashicorp/go-multierror"
)

// ColumnMeta describes one column as reported by table.columninfo
type ColumnMeta struct {
	Name            string
	ID              int
	Type            string
	RawLength       int
	FormattedLength int
	Format          string
}

// ColumnInfo returns the column metadata of the table, including computed
// columns. Results are cached per session.
func (t *Table) ColumnInfo(ctx context.Context) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	tbl := t.ungroupedParams()
	return sess.CachedFrame(ctx, columnInfoKey(tbl), func(ctx context.Context) (*frame.Frame, error) {
		res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{Action: "table.columninfo", Table: tbl})
		if err != nil {
			return nil, err
		}
		return bridge.Concat(res, "ColumnInfo", false), nil
	})
}

func columnInfoKey(tbl *params.Bundle) uint64 {
	return params.New("action", "table.columninfo", "table", tbl).Fingerprint()
}

// cachedDtype returns the type of column name from metadata the session has
// already loaded, for this table or for the same table without a column
// selection. It never contacts the server.
func (t *Table) cachedDtype(name string) (string, bool) {
	sess, err := t.Session()
	if err != nil {
		return "", false
	}
	tbl := t.ungroupedParams()
	unselected := tbl.Copy()
	unselected.Discard("vars")
	for _, key := range []uint64{columnInfoKey(tbl), columnInfoKey(unselected)} {
		info, ok := sess.PeekCachedFrame(key)
		if !ok {
			continue
		}
		for i := 0; i < info.Len(); i++ {
			if strings.EqualFold(cellString(info, i, "Column"), name) {
				return strings.ToLower(cellString(info, i, "Type")), true
			}
		}
	}
	return "", false
}

// Dtypes returns the metadata of the visible columns, in order
func (t *Table) Dtypes(ctx context.Context) ([]ColumnMeta, error) {
	info, err := t.ColumnInfo(ctx)
	if err != nil {
		return nil, err
	}
	aux := t.auxvars()
	var metas []ColumnMeta
	for i := 0; i < info.Len(); i++ {
		m := ColumnMeta{
			Name:            cellString(info, i, "Column"),
			ID:              cellInt(info, i, "ID"),
			Type:            strings.ToLower(cellString(info, i, "Type")),
			RawLength:       cellInt(info, i, "RawLength"),
			FormattedLength: cellInt(info, i, "FormattedLength"),
			Format:          cellString(info, i, "Format"),
		}
		if containsFold(aux, m.Name) && !containsFold(t.Varlist(), m.Name) {
			continue
		}
		metas = append(metas, m)
	}
	if varlist := t.Varlist(); len(varlist) > 0 {
		ordered := make([]ColumnMeta, 0, len(varlist))
		for _, name := range varlist {
			for _, m := range metas {
				if strings.EqualFold(m.Name, name) {
					ordered = append(ordered, m)
					break
				}
			}
		}
		metas = ordered
	}
	return metas, nil
}

// Columns returns the names of the visible columns. A table with an explicit
// column selection answers without contacting the server.
func (t *Table) Columns(ctx context.Context) ([]string, error) {
	if varlist := t.Varlist(); len(varlist) > 0 {
		return append([]string(nil), varlist...), nil
	}
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return names, nil
}

// NumRows returns the number of rows which pass the table's filters
func (t *Table) NumRows(ctx context.Context) (int, error) {
	sess, err := t.Session()
	if err != nil {
		return 0, err
	}
	res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{Action: "simple.numrows", Table: t.ungroupedParams()})
	if err != nil {
		return 0, err
	}
	n, ok := frame.ToFloat(res.Values["numrows"])
	if !ok {
		return 0, errors.RemoteOperationError{Action: "simple.numrows", Status: "no row count was returned", Severity: res.Severity}
	}
	return int(n), nil
}

// NumColumns returns the number of visible columns
func (t *Table) NumColumns(ctx context.Context) (int, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}

// Shape returns the number of rows and visible columns
func (t *Table) Shape(ctx context.Context) (int, int, error) {
	rows, err := t.NumRows(ctx)
	if err != nil {
		return 0, 0, err
	}
	cols, err := t.NumColumns(ctx)
	if err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// Size returns the number of cells
func (t *Table) Size(ctx context.Context) (int, error) {
	rows, cols, err := t.Shape(ctx)
	return rows * cols, err
}

// SelectDtypes selects the columns whose type matches any class in include
// and none in exclude. Classes are "number", "character", "datetime64", or
// concrete types such as "varchar".
func (t *Table) SelectDtypes(ctx context.Context, include, exclude []string) (*Table, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, errors.NewParameterError("at least one of include or exclude must be given")
	}
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range metas {
		keep := len(include) == 0
		for _, class := range include {
			keep = keep || matchesDtype(m.Type, class)
		}
		for _, class := range exclude {
			keep = keep && !matchesDtype(m.Type, class)
		}
		if keep {
			names = append(names, m.Name)
		}
	}
	return t.Select(names...), nil
}

// Col returns a visible or computed column, with its type resolved
func (t *Table) Col(ctx context.Context, name string) (*Column, error) {
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		if strings.EqualFold(m.Name, name) {
			return t.ToColumn(m.Name).WithDtype(m.Type), nil
		}
	}
	if i := indexFold(t.Compvars(), name); i >= 0 {
		return t.ToColumn(t.Compvars()[i]), nil
	}
	return nil, errors.KeyNotFoundError{Key: name}
}

// Project selects columns by name or position. Unknown names become
// computed columns holding missing values. Invalid positions are reported together.
func (t *Table) Project(ctx context.Context, cols ...interface{}) (*Table, error) {
	visible, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	out := t.Copy()
	var names []string
	var errs *multierror.Error
	for _, c := range cols {
		switch v := c.(type) {
		case int:
			i := v
			if i < 0 {
				i += len(visible)
			}
			if i < 0 || i >= len(visible) {
				errs = multierror.Append(errs, errors.IndexError{Index: v, Size: len(visible)})
				continue
			}
			names = append(names, visible[i])
		case string:
			if i := indexFold(visible, v); i >= 0 {
				names = append(names, visible[i])
				continue
			}
			if i := indexFold(t.Compvars(), v); i >= 0 {
				names = append(names, t.Compvars()[i])
				continue
			}
			out.AppendComputedColumns([]string{v}, []string{expr.Nlit(v) + " = ."})
			names = append(names, v)
		default:
			errs = multierror.Append(errs, errors.NewParameterError("column selector %v is neither a name nor a position", c))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	out.params.Set(paramVarlist, names)
	return out, nil
}

// Info writes a summary of the table layout to w
func (t *Table) Info(ctx context.Context, w io.Writer) error {
	rows, err := t.NumRows(ctx)
	if err != nil {
		return err
	}
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return err
	}
	summary := frame.New([]string{"#", "Column", "Type", "Length"})
	for i, m := range metas {
		if err := summary.AppendRow([]interface{}{}, []interface{}{i, m.Name, m.Type, m.RawLength}); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "Table: %s\nRows: %d\nColumns: %d\n%s", t.TableName(), rows, len(metas), summary)
	return err
}

func cellString(f *frame.Frame, row int, column string) string {
	v, err := f.Value(row, column)
	if err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func cellInt(f *frame.Frame, row int, column string) int {
	v, err := f.Value(row, column)
	if err != nil {
		return 0
	}
	n, _ := frame.ToFloat(v)
	return int(n)
}
