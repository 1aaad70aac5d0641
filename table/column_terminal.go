package table

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// Values materializes the column, up to the session's MaxRowsFetched rows
func (c *Column) Values(ctx context.Context) ([]interface{}, error) {
	f, err := c.ToFrame(ctx)
	if err != nil {
		return nil, err
	}
	return f.Column(c.Name())
}

// Get returns the value at position i, or def when there is no such row
func (c *Column) Get(ctx context.Context, i int, def interface{}) (interface{}, error) {
	v, err := c.scalar(ctx, i, ColAt(0), false)
	if _, ok := err.(errors.IndexError); ok {
		return def, nil
	}
	return v, err
}

// frequencies runs simple.freq over the ungrouped column, including missing levels
func (c *Column) frequencies(ctx context.Context, grouped bool) (*frame.Frame, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	tbl := c.ungroupedParams()
	if grouped {
		tbl = c.TableParams()
	}
	res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{
		Action: "simple.freq",
		Table:  tbl,
		Args:   params.New("inputs", []string{c.Name()}, "includeMissing", true),
	})
	if err != nil {
		return nil, err
	}
	return bridge.Concat(res, "Frequency", true), nil
}

// Unique returns the distinct values of the column, missing values included,
// in the order the server reports them
func (c *Column) Unique(ctx context.Context) ([]interface{}, error) {
	f, err := c.frequencies(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, f.Len())
	sawMissing := false
	for r := 0; r < f.Len(); r++ {
		v := freqValue(f, r)
		if isMissingLevel(v) {
			if sawMissing {
				continue
			}
			sawMissing = true
			v = nil
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Column) distinct(ctx context.Context) (distinct, nmiss int, err error) {
	sess, err := c.Session()
	if err != nil {
		return 0, 0, err
	}
	res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{
		Action: "simple.distinct",
		Table:  c.ungroupedParams(),
		Args:   params.New("inputs", []string{c.Name()}),
	})
	if err != nil {
		return 0, 0, err
	}
	f := bridge.Concat(res, "Distinct", false)
	if f.Len() == 0 {
		return 0, 0, nil
	}
	return cellInt(f, 0, "NDistinct"), cellInt(f, 0, "NMiss"), nil
}

// NUnique returns the number of distinct present values
func (c *Column) NUnique(ctx context.Context) (int, error) {
	distinct, nmiss, err := c.distinct(ctx)
	if err != nil {
		return 0, err
	}
	if nmiss > 0 {
		distinct--
	}
	return distinct, nil
}

// IsUnique reports whether no value occurs more than once
func (c *Column) IsUnique(ctx context.Context) (bool, error) {
	distinct, _, err := c.distinct(ctx)
	if err != nil {
		return false, err
	}
	rows, err := c.NumRows(ctx)
	if err != nil {
		return false, err
	}
	return distinct == rows, nil
}

// ValueCountsOptions controls ValueCounts
type ValueCountsOptions struct {
	// Normalize reports proportions within each group instead of counts
	Normalize bool
	// NoSort keeps the server's level order
	NoSort bool
	// Ascending sorts by increasing count
	Ascending bool
	// KeepNA counts missing values as a level
	KeepNA bool
}

// ValueCounts counts the occurrences of each value. The result is indexed
// by the group keys and the value, and holds a "count" or "proportion" column.
func (c *Column) ValueCounts(ctx context.Context, opts ValueCountsOptions) (*frame.Frame, error) {
	f, err := c.frequencies(ctx, true)
	if err != nil {
		return nil, err
	}
	groups := c.GroupByVars()
	type level struct {
		key   []interface{}
		value interface{}
		count float64
	}
	var levels []level
	totals := make(map[string]float64)
	for r := 0; r < f.Len(); r++ {
		v := freqValue(f, r)
		if isMissingLevel(v) {
			if !opts.KeepNA {
				continue
			}
			v = nil
		}
		key := normalizeKey(f.Key(r), len(groups))
		n := float64(cellInt(f, r, "Frequency"))
		levels = append(levels, level{key: key, value: v, count: n})
		totals[keyString(key)] += n
	}
	if !opts.NoSort {
		rank := make(map[string]int)
		for _, l := range levels {
			if _, ok := rank[keyString(l.key)]; !ok {
				rank[keyString(l.key)] = len(rank)
			}
		}
		sort.SliceStable(levels, func(i, j int) bool {
			ri, rj := rank[keyString(levels[i].key)], rank[keyString(levels[j].key)]
			if ri != rj {
				return ri < rj
			}
			if opts.Ascending {
				return levels[i].count < levels[j].count
			}
			return levels[i].count > levels[j].count
		})
	}
	column := "count"
	if opts.Normalize {
		column = "proportion"
	}
	out := frame.New([]string{column}, append(append([]string(nil), groups...), c.Name())...)
	for _, l := range levels {
		var v interface{} = l.count
		if opts.Normalize {
			if total := totals[keyString(l.key)]; total > 0 {
				v = l.count / total
			}
		}
		if err := out.AppendRow(append(append([]interface{}(nil), l.key...), l.value), []interface{}{v}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Corr returns the correlation between this column and other
func (c *Column) Corr(ctx context.Context, other *Column) (float64, error) {
	both, err := c.Combine(other)
	if err != nil {
		return 0, err
	}
	f, err := both.Corr(ctx)
	if err != nil {
		return 0, err
	}
	row, ok := f.Loc(c.Name())
	if !ok {
		return 0, errors.KeyNotFoundError{Key: c.Name()}
	}
	v, err := f.Value(row, other.Name())
	if err != nil {
		return 0, err
	}
	r, _ := frame.ToFloat(v)
	return r, nil
}

// truthCondition is true where the column value is considered true
func (c *Column) truthCondition(ctx context.Context) (string, error) {
	dtype, err := c.ResolveDtype(ctx)
	if err != nil {
		return "", err
	}
	ref := expr.Nlit(c.Name())
	if IsCharacter(dtype) {
		return "lengthn(" + ref + ") ^= 0", nil
	}
	return "(" + ref + ") ^= 0", nil
}

// All reports whether every value is true. Character values are true when non-blank.
func (c *Column) All(ctx context.Context) (bool, error) {
	cond, err := c.truthCondition(ctx)
	if err != nil {
		return false, err
	}
	total, err := c.NumRows(ctx)
	if err != nil {
		return false, err
	}
	n, err := c.Query(cond).NumRows(ctx)
	if err != nil {
		return false, err
	}
	return n == total, nil
}

// Any reports whether at least one present value is true
func (c *Column) Any(ctx context.Context) (bool, error) {
	cond, err := c.truthCondition(ctx)
	if err != nil {
		return false, err
	}
	n, err := c.Query(cond + " and not missing(" + expr.Nlit(c.Name()) + ")").NumRows(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Combine merges the columns into one table. Every column must refer to the
// same source table.
func (c *Column) Combine(others ...*Column) (*Table, error) {
	out := c.Table.Copy()
	for _, o := range others {
		if !strings.EqualFold(o.TableName(), c.TableName()) ||
			!strings.EqualFold(o.params.String(paramCaslib), c.params.String(paramCaslib)) {
			return nil, errors.NewParameterError("cannot combine columns of %q and %q", c.TableName(), o.TableName())
		}
		for _, name := range o.Compvars() {
			if !containsFold(out.Compvars(), name) {
				out.params.AppendStrings(paramCompvars, name)
			}
		}
		for _, code := range o.Comppgm() {
			if !slices.Contains(out.Comppgm(), code) {
				out.params.AppendStrings(paramComppgm, code)
			}
		}
		if name := o.Name(); !containsFold(out.Varlist(), name) {
			out.params.AppendStrings(paramVarlist, name)
		}
	}
	return out, nil
}
