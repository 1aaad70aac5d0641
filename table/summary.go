package table

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// summaryColumns maps statistic labels onto simple.summary result columns
var summaryColumns = map[string]string{
	"count":  "N",
	"nmiss":  "NMiss",
	"mean":   "Mean",
	"sum":    "Sum",
	"std":    "Std",
	"stderr": "StdErr",
	"var":    "Var",
	"uss":    "USS",
	"css":    "CSS",
	"cv":     "CV",
	"tvalue": "TValue",
	"probt":  "ProbT",
	"min":    "Min",
	"max":    "Max",
}

// frequencyStats are derived from simple.freq
var frequencyStats = map[string]bool{
	"count": true, "nmiss": true, "unique": true, "top": true, "freq": true, "min": true, "max": true,
}

// statColumns splits the visible, ungrouped columns by type
func (t *Table) statColumns(ctx context.Context) (all, numeric, character []string, err error) {
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	groups := t.GroupByVars()
	for _, m := range metas {
		if containsFold(groups, m.Name) {
			continue
		}
		all = append(all, m.Name)
		if IsCharacter(m.Type) {
			character = append(character, m.Name)
		} else {
			numeric = append(numeric, m.Name)
		}
	}
	return all, numeric, character, nil
}

func (t *Table) aggregate(ctx context.Context, sess *castable.Session, action, name string, args *params.Bundle) (*frame.Frame, error) {
	res, err := bridge.Aggregate(ctx, sess, &bridge.AggregateRequest{Action: action, Table: t.TableParams(), Args: args})
	if err != nil {
		return nil, err
	}
	return bridge.Concat(res, name, true), nil
}

func (t *Table) gatherSummary(ctx context.Context, sess *castable.Session, g *statGrid, inputs []string) error {
	if len(inputs) == 0 {
		return nil
	}
	f, err := t.aggregate(ctx, sess, "simple.summary", "Summary", params.New("inputs", inputs))
	if err != nil {
		return err
	}
	for r := 0; r < f.Len(); r++ {
		col := cellString(f, r, "Column")
		for label, src := range summaryColumns {
			if v, err := f.Value(r, src); err == nil {
				g.set(f.Key(r), label, col, v)
			}
		}
	}
	return nil
}

func percentLabel(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

func (t *Table) gatherPercentiles(ctx context.Context, sess *castable.Session, g *statGrid, inputs []string, pcts []float64) error {
	if len(inputs) == 0 || len(pcts) == 0 {
		return nil
	}
	f, err := t.aggregate(ctx, sess, "percentile.percentile", "Percentile", params.New("inputs", inputs, "values", pcts))
	if err != nil {
		return err
	}
	for r := 0; r < f.Len(); r++ {
		v, _ := f.Value(r, "Pctl")
		p, ok := frame.ToFloat(v)
		if !ok {
			continue
		}
		value, _ := f.Value(r, "Value")
		g.set(f.Key(r), percentLabel(p), cellString(f, r, "Variable"), value)
	}
	return nil
}

// freqValue returns the level value of a simple.freq or simple.topk row
func freqValue(f *frame.Frame, r int) interface{} {
	for _, c := range []string{"CharVar", "NumVar"} {
		if v, err := f.Value(r, c); err == nil && v != nil {
			return v
		}
	}
	if f.ColumnIndex("CharVar") < 0 && f.ColumnIndex("NumVar") < 0 {
		v, _ := f.Value(r, "FmtVar")
		return v
	}
	return nil
}

func isMissingLevel(v interface{}) bool {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return frame.IsMissing(v)
}

// lessValue orders numbers numerically and anything else as text
func lessValue(a, b interface{}) bool {
	af, aok := frame.ToFloat(a)
	bf, bok := frame.ToFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

type levelStats struct {
	key                  []interface{}
	column               string
	count, nmiss, unique float64
	top                  interface{}
	freq                 float64
	min, max             interface{}
}

// gatherFrequencies derives the labels in want from level frequencies
func (t *Table) gatherFrequencies(ctx context.Context, sess *castable.Session, g *statGrid, inputs []string, want map[string]bool) error {
	if len(inputs) == 0 || len(want) == 0 {
		return nil
	}
	f, err := t.aggregate(ctx, sess, "simple.freq", "Frequency", params.New("inputs", inputs, "includeMissing", true))
	if err != nil {
		return err
	}
	var order []string
	stats := make(map[string]*levelStats)
	for r := 0; r < f.Len(); r++ {
		col := cellString(f, r, "Column")
		id := keyString(f.Key(r)) + "\x01" + params.FoldKey(col)
		s, ok := stats[id]
		if !ok {
			s = &levelStats{key: f.Key(r), column: col}
			stats[id] = s
			order = append(order, id)
		}
		freq := float64(cellInt(f, r, "Frequency"))
		value := freqValue(f, r)
		if isMissingLevel(value) {
			s.nmiss += freq
			continue
		}
		s.count += freq
		s.unique++
		if s.top == nil || freq > s.freq {
			s.top, s.freq = value, freq
		}
		if s.min == nil || lessValue(value, s.min) {
			s.min = value
		}
		if s.max == nil || lessValue(s.max, value) {
			s.max = value
		}
	}
	for _, id := range order {
		s := stats[id]
		values := map[string]interface{}{
			"count": s.count, "nmiss": s.nmiss, "unique": s.unique,
			"top": s.top, "freq": s.freq, "min": s.min, "max": s.max,
		}
		if s.unique == 0 {
			values["freq"] = nil
		}
		for label := range want {
			g.set(s.key, label, s.column, values[label])
		}
	}
	return nil
}

func (t *Table) gatherDistinct(ctx context.Context, sess *castable.Session, g *statGrid, inputs []string) error {
	if len(inputs) == 0 {
		return nil
	}
	f, err := t.aggregate(ctx, sess, "simple.distinct", "Distinct", params.New("inputs", inputs))
	if err != nil {
		return err
	}
	for r := 0; r < f.Len(); r++ {
		col := cellString(f, r, "Column")
		distinct := cellInt(f, r, "NDistinct")
		nmiss := cellInt(f, r, "NMiss")
		nunique := distinct
		if nmiss > 0 {
			nunique--
		}
		g.set(f.Key(r), "ndistinct", col, distinct)
		g.set(f.Key(r), "nunique", col, nunique)
	}
	return nil
}

// stat computes one statistic for every column the statistic applies to
func (t *Table) stat(ctx context.Context, label string, withCharacter bool) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	all, numeric, character, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	columns := numeric
	if withCharacter {
		columns = all
	}
	g := newStatGrid(t.GroupByVars(), columns)
	if err := t.gatherSummary(ctx, sess, g, numeric); err != nil {
		return nil, err
	}
	if withCharacter {
		if err := t.gatherFrequencies(ctx, sess, g, character, map[string]bool{label: true}); err != nil {
			return nil, err
		}
	}
	if label == "count" || label == "nmiss" {
		g.fill(label, 0.0)
	}
	return g.frame([]string{label}, "", nil), nil
}

// Count returns the number of present values of each column
func (t *Table) Count(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "count", true)
}

// NMiss returns the number of missing values of each column
func (t *Table) NMiss(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "nmiss", true)
}

// Min returns the smallest value of each column
func (t *Table) Min(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "min", true)
}

// Max returns the largest value of each column
func (t *Table) Max(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "max", true)
}

// Mean returns the mean of each numeric column
func (t *Table) Mean(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "mean", false)
}

// Sum returns the sum of each numeric column
func (t *Table) Sum(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "sum", false)
}

// Std returns the standard deviation of each numeric column
func (t *Table) Std(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "std", false)
}

// Var returns the variance of each numeric column
func (t *Table) Var(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "var", false)
}

// StdErr returns the standard error of the mean of each numeric column
func (t *Table) StdErr(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "stderr", false)
}

// USS returns the uncorrected sum of squares of each numeric column
func (t *Table) USS(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "uss", false)
}

// CSS returns the corrected sum of squares of each numeric column
func (t *Table) CSS(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "css", false)
}

// CV returns the coefficient of variation of each numeric column
func (t *Table) CV(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "cv", false)
}

// TValue returns the Student's t statistic of each numeric column
func (t *Table) TValue(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "tvalue", false)
}

// ProbT returns the two-tailed p-value of the t statistic of each numeric column
func (t *Table) ProbT(ctx context.Context) (*frame.Frame, error) {
	return t.stat(ctx, "probt", false)
}

// NUnique returns the number of distinct present values of each column
func (t *Table) NUnique(ctx context.Context) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	all, _, _, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	g := newStatGrid(t.GroupByVars(), all)
	if err := t.gatherDistinct(ctx, sess, g, all); err != nil {
		return nil, err
	}
	return g.frame([]string{"nunique"}, "", nil), nil
}

// Quantile returns the given quantiles of each numeric column. The
// quantiles, in [0, 1], form the last index level.
func (t *Table) Quantile(ctx context.Context, q ...float64) (*frame.Frame, error) {
	if len(q) == 0 {
		q = []float64{0.5}
	}
	labels := make([]string, len(q))
	levels := make([]interface{}, len(q))
	pcts := make([]float64, len(q))
	for i, v := range q {
		if v < 0 || v > 1 {
			return nil, errors.NewParameterError("quantile %g is outside of [0, 1]", v)
		}
		pcts[i] = v * 100
		labels[i] = percentLabel(pcts[i])
		levels[i] = v
	}
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	_, numeric, _, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	g := newStatGrid(t.GroupByVars(), numeric)
	if err := t.gatherPercentiles(ctx, sess, g, numeric, pcts); err != nil {
		return nil, err
	}
	return g.frame(labels, "quantile", levels), nil
}

// Median returns the median of each numeric column
func (t *Table) Median(ctx context.Context) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	_, numeric, _, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	g := newStatGrid(t.GroupByVars(), numeric)
	if err := t.gatherPercentiles(ctx, sess, g, numeric, []float64{50}); err != nil {
		return nil, err
	}
	return g.frame([]string{percentLabel(50)}, "", nil), nil
}

// Mode returns the most frequent values of each column, one row per tied
// value in ascending order. maxTie bounds the number of ties; zero uses the
// server default.
func (t *Table) Mode(ctx context.Context, maxTie int) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	all, _, _, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	args := params.New("inputs", all, "topk", 1, "bottomk", 0, "order", "freq")
	if maxTie > 0 {
		args.Set("maxTie", maxTie)
	}
	f, err := t.aggregate(ctx, sess, "simple.topk", "Topk", args)
	if err != nil {
		return nil, err
	}

	groups := t.GroupByVars()
	var keys [][]interface{}
	modes := make(map[string]map[string][]interface{})
	for r := 0; r < f.Len(); r++ {
		key := normalizeKey(f.Key(r), len(groups))
		ks := keyString(key)
		if _, ok := modes[ks]; !ok {
			modes[ks] = make(map[string][]interface{})
			keys = append(keys, key)
		}
		col := params.FoldKey(cellString(f, r, "Column"))
		modes[ks][col] = append(modes[ks][col], freqValue(f, r))
	}
	if len(groups) == 0 && len(keys) == 0 {
		keys = [][]interface{}{{}}
	}

	out := frame.New(all, groups...)
	for _, key := range keys {
		byCol := modes[keyString(key)]
		depth := 0
		for _, values := range byCol {
			sort.SliceStable(values, func(i, j int) bool { return lessValue(values[i], values[j]) })
			depth = max(depth, len(values))
		}
		for i := 0; i < depth; i++ {
			row := make([]interface{}, len(all))
			for ci, c := range all {
				if values := byCol[params.FoldKey(c)]; i < len(values) {
					row[ci] = values[i]
				}
			}
			if err := out.AppendRow(key, row); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Corr returns the pairwise correlation of the numeric columns
func (t *Table) Corr(ctx context.Context) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	_, numeric, _, err := t.statColumns(ctx)
	if err != nil {
		return nil, err
	}
	f, err := t.aggregate(ctx, sess, "simple.correlation", "Correlation", params.New("inputs", numeric, "simple", false))
	if err != nil {
		return nil, err
	}
	f, err = f.SetIndex("Variable")
	if err != nil {
		return nil, err
	}
	var present []string
	for _, c := range numeric {
		if f.ColumnIndex(c) >= 0 {
			present = append(present, c)
		}
	}
	return f.Select(present...)
}

// DescribeOptions selects the statistics computed by Describe
type DescribeOptions struct {
	// Percentiles in [0, 1]. Defaults to 0.25, 0.5 and 0.75; the median is
	// always included.
	Percentiles []float64
	// Include selects column types: "all", "number" or "character". By
	// default numeric columns are described, or character columns when
	// there are no numeric ones.
	Include []string
	// Exclude drops column types
	Exclude []string
	// Stats lists statistic labels, or "all". "pct" expands to the percentiles.
	Stats []string
}

var knownStats = map[string]bool{
	"count": true, "unique": true, "top": true, "freq": true, "mean": true, "std": true,
	"min": true, "max": true, "nmiss": true, "sum": true, "stderr": true, "var": true,
	"uss": true, "css": true, "cv": true, "tvalue": true, "probt": true,
}

func describeColumns(all []string, types map[string]string, opts DescribeOptions) []string {
	for _, inc := range opts.Include {
		if strings.EqualFold(inc, "all") {
			return all
		}
	}
	if len(opts.Include) == 0 && len(opts.Exclude) == 0 {
		var numeric, character []string
		for _, c := range all {
			if IsCharacter(types[params.FoldKey(c)]) {
				character = append(character, c)
			} else {
				numeric = append(numeric, c)
			}
		}
		if len(numeric) > 0 {
			return numeric
		}
		return character
	}
	var out []string
	for _, c := range all {
		dtype := types[params.FoldKey(c)]
		keep := len(opts.Include) == 0
		for _, inc := range opts.Include {
			keep = keep || matchesDtype(dtype, inc)
		}
		for _, exc := range opts.Exclude {
			keep = keep && !matchesDtype(dtype, exc)
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

func describePercentiles(ps []float64) ([]float64, error) {
	if ps == nil {
		ps = []float64{0.25, 0.5, 0.75}
	}
	seen := map[float64]bool{50: true}
	out := []float64{50}
	for _, p := range ps {
		if p < 0 || p > 1 {
			return nil, errors.NewParameterError("percentile %g is outside of [0, 1]", p)
		}
		if !seen[p*100] {
			seen[p*100] = true
			out = append(out, p*100)
		}
	}
	sort.Float64s(out)
	return out, nil
}

func describeStats(stats []string, pcts []string, hasNumeric, hasCharacter bool) ([]string, error) {
	all := len(stats) == 1 && strings.EqualFold(stats[0], "all")
	if len(stats) == 0 || all {
		var out []string
		switch {
		case !hasNumeric:
			out = []string{"count", "unique", "top", "freq"}
			if all {
				out = append(out, "min", "max", "nmiss")
			}
			return out, nil
		case hasCharacter:
			out = []string{"count", "unique", "top", "freq", "mean", "std", "min"}
		default:
			out = []string{"count", "mean", "std", "min"}
		}
		out = append(append(out, pcts...), "max")
		if all {
			out = append(out, "nmiss", "sum", "stderr", "var", "uss", "css", "cv", "tvalue", "probt")
		}
		return out, nil
	}
	var out []string
	for _, s := range stats {
		s = strings.ToLower(s)
		switch {
		case s == "pct":
			out = append(out, pcts...)
		case knownStats[s] || strings.HasSuffix(s, "%"):
			out = append(out, s)
		default:
			return nil, errors.NewParameterError("unknown statistic %q", s)
		}
	}
	return out, nil
}

// Describe computes summary statistics. The result has one column per
// described column; its index holds the group keys followed by the
// statistic label.
func (t *Table) Describe(ctx context.Context, opts DescribeOptions) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	metas, err := t.Dtypes(ctx)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(metas))
	var all []string
	for _, m := range metas {
		if containsFold(t.GroupByVars(), m.Name) {
			continue
		}
		types[params.FoldKey(m.Name)] = m.Type
		all = append(all, m.Name)
	}
	columns := describeColumns(all, types, opts)
	var numeric, character []string
	for _, c := range columns {
		if IsCharacter(types[params.FoldKey(c)]) {
			character = append(character, c)
		} else {
			numeric = append(numeric, c)
		}
	}

	pcts, err := describePercentiles(opts.Percentiles)
	if err != nil {
		return nil, err
	}
	pctLabels := make([]string, len(pcts))
	for i, p := range pcts {
		pctLabels[i] = percentLabel(p)
	}
	stats, err := describeStats(opts.Stats, pctLabels, len(numeric) > 0, len(character) > 0)
	if err != nil {
		return nil, err
	}

	wantSummary := false
	var wantPcts []float64
	numFreq := map[string]bool{}
	charFreq := map[string]bool{}
	for _, s := range stats {
		if _, ok := summaryColumns[s]; ok {
			wantSummary = true
		}
		if strings.HasSuffix(s, "%") {
			p, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
			if err != nil {
				return nil, errors.NewParameterError("unknown statistic %q", s)
			}
			wantPcts = append(wantPcts, p)
		}
		if s == "unique" || s == "top" || s == "freq" {
			numFreq[s] = true
		}
		if frequencyStats[s] {
			charFreq[s] = true
		}
	}

	g := newStatGrid(t.GroupByVars(), columns)
	if wantSummary {
		if err := t.gatherSummary(ctx, sess, g, numeric); err != nil {
			return nil, err
		}
	}
	if err := t.gatherPercentiles(ctx, sess, g, numeric, wantPcts); err != nil {
		return nil, err
	}
	if err := t.gatherFrequencies(ctx, sess, g, numeric, numFreq); err != nil {
		return nil, err
	}
	if err := t.gatherFrequencies(ctx, sess, g, character, charFreq); err != nil {
		return nil, err
	}
	g.fill("count", 0.0)
	g.fill("nmiss", 0.0)
	return g.frame(stats, "stat", nil), nil
}
