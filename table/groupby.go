package table

import (
	"context"
	"math"

	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// GroupBy is a table grouped by one or more columns. Results are indexed by
// the group keys unless AsIndex(false) is given.
type GroupBy struct {
	table   *Table
	keys    []string
	asIndex bool
}

// GroupByOption configures a GroupBy
type GroupByOption func(*GroupBy)

// AsIndex sets whether group keys form the index of results, or leading columns
func AsIndex(v bool) GroupByOption {
	return func(g *GroupBy) { g.asIndex = v }
}

// GroupBy groups the table by the given columns
func (t *Table) GroupBy(by []string, opts ...GroupByOption) *GroupBy {
	g := &GroupBy{
		table:   t.DeepCopy().AppendGroupBy(by...),
		keys:    append([]string(nil), by...),
		asIndex: true,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Table returns the grouped table
func (g *GroupBy) Table() *Table {
	return g.table.Copy()
}

// Keys returns the group-by variables given to GroupBy
func (g *GroupBy) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Col returns the grouping restricted to one column
func (g *GroupBy) Col(name string) *GroupBy {
	return &GroupBy{table: g.table.Select(name), keys: g.keys, asIndex: g.asIndex}
}

func (g *GroupBy) finish(f *frame.Frame, err error) (*frame.Frame, error) {
	if err != nil || g.asIndex {
		return f, err
	}
	return f.ResetIndex(g.table.GroupByVars()...), nil
}

// Head returns the first n rows
func (g *GroupBy) Head(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	return g.finish(g.table.Head(ctx, n, cols...))
}

// Tail returns the last n rows
func (g *GroupBy) Tail(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	return g.finish(g.table.Tail(ctx, n, cols...))
}

// Slice returns rows [start, stop)
func (g *GroupBy) Slice(ctx context.Context, start, stop int, cols ...string) (*frame.Frame, error) {
	return g.finish(g.table.Slice(ctx, start, stop, cols...))
}

// ToFrame materializes the grouped table
func (g *GroupBy) ToFrame(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.ToFrame(ctx))
}

func (g *GroupBy) Count(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Count(ctx))
}

func (g *GroupBy) NMiss(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.NMiss(ctx))
}

func (g *GroupBy) Min(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Min(ctx))
}

func (g *GroupBy) Max(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Max(ctx))
}

func (g *GroupBy) Mean(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Mean(ctx))
}

func (g *GroupBy) Sum(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Sum(ctx))
}

func (g *GroupBy) Std(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Std(ctx))
}

func (g *GroupBy) Var(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Var(ctx))
}

func (g *GroupBy) StdErr(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.StdErr(ctx))
}

func (g *GroupBy) USS(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.USS(ctx))
}

func (g *GroupBy) CSS(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.CSS(ctx))
}

func (g *GroupBy) CV(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.CV(ctx))
}

func (g *GroupBy) TValue(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.TValue(ctx))
}

func (g *GroupBy) ProbT(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.ProbT(ctx))
}

func (g *GroupBy) NUnique(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.NUnique(ctx))
}

func (g *GroupBy) Quantile(ctx context.Context, q ...float64) (*frame.Frame, error) {
	return g.finish(g.table.Quantile(ctx, q...))
}

func (g *GroupBy) Median(ctx context.Context) (*frame.Frame, error) {
	return g.finish(g.table.Median(ctx))
}

func (g *GroupBy) Mode(ctx context.Context, maxTie int) (*frame.Frame, error) {
	return g.finish(g.table.Mode(ctx, maxTie))
}

func (g *GroupBy) Describe(ctx context.Context, opts DescribeOptions) (*frame.Frame, error) {
	return g.finish(g.table.Describe(ctx, opts))
}

// Nth returns the n-th row of each group. Negative positions count from
// the end of each group.
func (g *GroupBy) Nth(ctx context.Context, n int) (*frame.Frame, error) {
	groups := g.table.GroupByVars()
	flat := g.table.Copy()
	flat.params.Discard(paramGroupBy)
	visible, err := flat.Columns(ctx)
	if err != nil {
		return nil, err
	}
	var others []string
	for _, c := range visible {
		if !containsFold(groups, c) {
			others = append(others, c)
		}
	}
	sorted := flat.Copy()
	existing := sorted.SortBy()
	sorted.actions[fetchActionKey] = sorted.ActionParams(fetchActionKey)
	sorted.actions[fetchActionKey].Set(paramSortBy, append(ascendingSpecs(groups), existing...))
	all, err := sorted.Fetch(ctx, FetchOptions{Columns: append(append([]string(nil), groups...), others...)})
	if err != nil {
		return nil, err
	}

	var order []string
	rows := make(map[string][]int)
	keys := make(map[string][]interface{})
	for i := 0; i < all.Len(); i++ {
		key := all.Row(i)[:len(groups)]
		ks := keyString(key)
		if _, ok := rows[ks]; !ok {
			order = append(order, ks)
			keys[ks] = key
		}
		rows[ks] = append(rows[ks], i)
	}
	out := frame.New(others, groups...)
	for _, ks := range order {
		members := rows[ks]
		i := n
		if i < 0 {
			i += len(members)
		}
		if i < 0 || i >= len(members) {
			continue
		}
		if err := out.AppendRow(keys[ks], all.Row(members[i])[len(groups):]); err != nil {
			return nil, err
		}
	}
	return g.finish(out, nil)
}

// GetGroup returns the rows of one group as an ungrouped table
func (g *GroupBy) GetGroup(key ...interface{}) (*Table, error) {
	groups := g.table.GroupByVars()
	if len(key) != len(groups) {
		return nil, errors.NewParameterError("group key has %d values, table is grouped by %d variables", len(key), len(groups))
	}
	out := g.table.Copy()
	out.params.Discard(paramGroupBy)
	for i, name := range groups {
		cond, err := groupCondition(name, key[i])
		if err != nil {
			return nil, err
		}
		out.AppendWhere(cond)
	}
	return out, nil
}

func groupCondition(name string, value interface{}) (string, error) {
	if f, ok := value.(float64); value == nil || (ok && math.IsNaN(f)) {
		return expr.Nlit(name) + " = .", nil
	}
	lit, err := expr.Literal(value, true)
	if err != nil {
		return "", errors.NewParameterError("group key %v: %s", value, err)
	}
	return expr.Nlit(name) + " = " + lit, nil
}

// Groups calls fn with each distinct group key and the table of its rows
func (g *GroupBy) Groups(ctx context.Context, fn func(key []interface{}, t *Table) error) error {
	sess, err := g.table.Session()
	if err != nil {
		return err
	}
	groups := g.table.GroupByVars()
	res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{
		Action: "simple.groupby",
		Table:  g.table.ungroupedParams(),
		Args:   params.New("inputs", groups),
	})
	if err != nil {
		return err
	}
	f := bridge.Concat(res, "Groupby", false)
	for i := 0; i < f.Len(); i++ {
		key := make([]interface{}, len(groups))
		for j, name := range groups {
			if v, err := f.Value(i, name); err == nil {
				key[j] = v
			}
		}
		t, err := g.GetGroup(key...)
		if err != nil {
			return err
		}
		if err := fn(key, t); err != nil {
			return err
		}
	}
	return nil
}
