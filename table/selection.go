package table

import (
	"context"
	"fmt"

	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/params"
)

// Select returns a table showing only the given columns, in the given order
func (t *Table) Select(names ...string) *Table {
	out := t.Copy()
	out.params.Set(paramVarlist, append([]string(nil), names...))
	return out
}

// Filter returns a table keeping the rows where cond is true. The computed
// variables cond relies on are carried along without becoming visible.
func (t *Table) Filter(cond *Column) *Table {
	out := t.Copy()
	ref, names, code := cond.Expression()
	known := out.Compvars()
	var aux []string
	for _, n := range names {
		if !containsFold(known, n) {
			aux = append(aux, n)
		}
	}
	out.AppendComputedColumns(names, code)
	out.params.AppendStrings(paramAuxvars, aux...)
	out.AppendWhere(ref)
	return out
}

// Query returns a table keeping the rows matching a raw where expression
func (t *Table) Query(where string) *Table {
	return t.Copy().AppendWhere(where)
}

// SortValues returns a table whose rows are fetched ordered by the given
// columns. ascending holds one flag per column, or a single flag for all of
// them; columns sort ascending by default. Keys are added after any existing
// sort order.
func (t *Table) SortValues(by []string, ascending ...bool) (*Table, error) {
	if len(ascending) > 1 && len(ascending) != len(by) {
		return nil, errors.NewParameterError("got %d sort directions for %d columns", len(ascending), len(by))
	}
	specs := make([]params.SortSpec, len(by))
	for i, name := range by {
		asc := true
		switch {
		case len(ascending) == 1:
			asc = ascending[0]
		case len(ascending) > 1:
			asc = ascending[i]
		}
		specs[i] = params.NewSortSpec(name, asc)
	}
	return t.Copy().AppendOrderBy(specs...), nil
}

// Sort is SortValues with every column ascending
func (t *Table) Sort(by ...string) *Table {
	return t.Copy().AppendOrderBy(ascendingSpecs(by)...)
}

func ascendingSpecs(names []string) []params.SortSpec {
	specs := make([]params.SortSpec, len(names))
	for i, n := range names {
		specs[i] = params.NewSortSpec(n, true)
	}
	return specs
}

// SetItem adds or replaces a computed column in place. value may be a
// Column, whose dependencies are carried along, or a scalar.
func (t *Table) SetItem(name string, value interface{}) error {
	var rhs string
	switch v := value.(type) {
	case *Column:
		ref, names, code := v.Expression()
		t.AppendComputedColumns(names, code)
		rhs = ref
	case string:
		rhs = expr.Quote(v)
	default:
		lit, err := expr.Literal(v, true)
		if err != nil {
			return errors.NewParameterError("cannot assign %T to column %s", value, name)
		}
		rhs = lit
	}
	t.AppendCompvars(name)
	t.AppendComppgm(fmt.Sprintf("%s = %s", expr.Nlit(name), rhs))
	if aux := t.auxvars(); containsFold(aux, name) {
		t.params.Set(paramAuxvars, removeFold(aux, name))
	}
	if len(t.Varlist()) > 0 {
		t.AppendVarlist(name)
	}
	return nil
}

// DelItem hides a column in place
func (t *Table) DelItem(ctx context.Context, name string) error {
	cols, err := t.Columns(ctx)
	if err != nil {
		return err
	}
	if !containsFold(cols, name) {
		return errors.KeyNotFoundError{Key: name}
	}
	t.params.Set(paramVarlist, removeFold(cols, name))
	return nil
}

// Pop returns a column and hides it from t in place
func (t *Table) Pop(ctx context.Context, name string) (*Column, error) {
	col, err := t.Col(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := t.DelItem(ctx, name); err != nil {
		return nil, err
	}
	return col, nil
}

func removeFold(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if params.FoldKey(item) != params.FoldKey(name) {
			out = append(out, item)
		}
	}
	return out
}
