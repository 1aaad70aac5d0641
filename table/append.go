package table

import (
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/params"
)

// AppendVarlist adds visible columns in place
func (t *Table) AppendVarlist(names ...string) *Table {
	t.params.AppendStrings(paramVarlist, names...)
	return t
}

// AppendCompvars adds computed variable names in place
func (t *Table) AppendCompvars(names ...string) *Table {
	t.params.AppendStrings(paramCompvars, names...)
	return t
}

// AppendComppgm adds statements to the computed variable program in place.
// Statements already present are skipped.
func (t *Table) AppendComppgm(code ...string) *Table {
	stmts := make([]string, 0, len(code))
	for _, c := range code {
		stmts = append(stmts, expr.Statement(c))
	}
	t.params.AppendText(paramComppgm, stmts...)
	return t
}

// AppendComputedColumns adds computed variables and the statements defining them
func (t *Table) AppendComputedColumns(names []string, code []string) *Table {
	return t.AppendCompvars(names...).AppendComppgm(code...)
}

// AppendWhere adds filter conditions in place. Conditions are combined with
// "and"; a condition which is already present is skipped.
func (t *Table) AppendWhere(conds ...string) *Table {
	t.params.AppendText(paramWhere, conds...)
	return t
}

// AppendGroupBy adds group-by variables in place
func (t *Table) AppendGroupBy(names ...string) *Table {
	t.params.AppendStrings(paramGroupBy, names...)
	return t
}

// AppendOrderBy adds sort keys to the fetch defaults in place
func (t *Table) AppendOrderBy(specs ...params.SortSpec) *Table {
	if len(specs) == 0 {
		return t
	}
	p := t.actionBundle(fetchActionKey)
	existing := p.SortSpecs(paramSortBy)
	out := make([]params.SortSpec, 0, len(existing)+len(specs))
	out = append(out, existing...)
	out = append(out, specs...)
	p.Set(paramSortBy, out)
	return t
}

// Varlist returns the selected columns, or nil when every column is visible
func (t *Table) Varlist() []string {
	return t.params.Strings(paramVarlist)
}

// Compvars returns the computed variable names
func (t *Table) Compvars() []string {
	return t.params.Strings(paramCompvars)
}

// Comppgm returns the statements defining computed variables
func (t *Table) Comppgm() []string {
	return t.params.Strings(paramComppgm)
}

// Where returns the filter conditions
func (t *Table) Where() []string {
	return t.params.Strings(paramWhere)
}

// GroupByVars returns the group-by variables
func (t *Table) GroupByVars() []string {
	return t.params.Strings(paramGroupBy)
}

// HasGroupByVars reports whether the table is grouped
func (t *Table) HasGroupByVars() bool {
	return len(t.GroupByVars()) > 0
}

// SortBy returns the pending sort order
func (t *Table) SortBy() []params.SortSpec {
	if p, ok := t.actions[fetchActionKey]; ok {
		return p.SortSpecs(paramSortBy)
	}
	return nil
}

func (t *Table) auxvars() []string {
	return t.params.Strings(paramAuxvars)
}
