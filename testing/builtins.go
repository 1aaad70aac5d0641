package testing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// group is the rows of a view sharing one combination of by-group values
type group struct {
	key  []interface{}
	rows []map[string]interface{}
}

// partition splits the rows of v by the values of by, in ascending key
// order. An empty by yields one group holding every row.
func (v *view) partition(by []string) []group {
	if len(by) == 0 {
		return []group{{rows: v.rows}}
	}
	var groups []group
	index := make(map[string]int)
	for _, row := range v.rows {
		key := make([]interface{}, len(by))
		parts := make([]string, len(by))
		for i, name := range by {
			key[i] = row[params.FoldKey(name)]
			parts[i] = fmt.Sprint(key[i])
		}
		id := strings.Join(parts, "\x00")
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, group{key: key})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		for k := range by {
			if c := compare(groups[i].key[k], groups[j].key[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return groups
}

// addGrouped adds a sub-result for one group, keyed the way the server
// keys by-group results
func addGrouped(res *castable.Result, name string, by []string, n int, g group, f *frame.Frame) {
	if len(by) == 0 {
		res.AddTable(name, f)
		return
	}
	bgs := make([]castable.ByGroupValue, len(by))
	for i, b := range by {
		bgs[i] = castable.ByGroupValue{Name: b, Value: g.key[i]}
	}
	res.AddTable(fmt.Sprintf("ByGroup%d.%s", n+1, name), f, bgs...)
}

func (v *view) dtype(name string) string {
	for i, c := range v.columns {
		if strings.EqualFold(c, name) {
			return v.types[i]
		}
	}
	return ""
}

func isCharacter(dtype string) bool {
	return dtype == "varchar" || dtype == "char"
}

// inputs returns the requested input variables, or every column which is
// not a by-group variable, optionally restricted to numeric columns
func (v *view) inputs(args *params.Bundle, by []string, numericOnly bool) []string {
	if in := args.Strings("inputs"); len(in) > 0 {
		return in
	}
	var out []string
	for i, c := range v.columns {
		if containsFold(by, c) || (numericOnly && isCharacter(v.types[i])) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func containsFold(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}

func numbers(rows []map[string]interface{}, column string) (values []float64, nmiss int) {
	key := params.FoldKey(column)
	for _, row := range rows {
		f, ok := frame.ToFloat(row[key])
		if !ok || frame.IsMissing(row[key]) {
			nmiss++
			continue
		}
		values = append(values, f)
	}
	return values, nmiss
}

func (s *Server) summary(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	by := tbl.Strings("groupBy")
	res := &castable.Result{}
	columns := []string{"Column", "Min", "Max", "N", "NMiss", "Mean", "Sum", "Std", "StdErr", "Var", "USS", "CSS", "CV", "TValue", "ProbT"}
	for n, g := range v.partition(by) {
		out := frame.New(columns)
		for _, c := range v.inputs(args, by, true) {
			values, nmiss := numbers(g.rows, c)
			row := make([]interface{}, len(columns))
			row[0], row[3], row[4] = c, float64(len(values)), float64(nmiss)
			if len(values) > 0 {
				fillSummary(row, values)
			}
			if err := out.AppendRow([]interface{}{}, row); err != nil {
				return nil, err
			}
		}
		addGrouped(res, "Summary", by, n, g, out)
	}
	return res, nil
}

// fillSummary computes the moments of values into a simple.summary row.
// ProbT is left missing.
func fillSummary(row []interface{}, values []float64) {
	n := float64(len(values))
	lo, hi, sum, uss := math.Inf(1), math.Inf(-1), 0.0, 0.0
	for _, x := range values {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
		sum += x
		uss += x * x
	}
	mean := sum / n
	css := 0.0
	for _, x := range values {
		css += (x - mean) * (x - mean)
	}
	row[1], row[2], row[5], row[6], row[10], row[11] = lo, hi, mean, sum, uss, css
	if n > 1 {
		variance := css / (n - 1)
		std := math.Sqrt(variance)
		stderr := std / math.Sqrt(n)
		row[7], row[8], row[9] = std, stderr, variance
		if mean != 0 {
			row[12] = 100 * std / mean
		}
		if stderr != 0 {
			row[13] = mean / stderr
		}
	}
}

// level is one distinct value of a column and its frequency
type level struct {
	value interface{}
	count int
}

func levels(rows []map[string]interface{}, column string, character bool) []level {
	key := params.FoldKey(column)
	var out []level
	index := make(map[string]int)
	for _, row := range rows {
		value := row[key]
		if character {
			if sv, ok := value.(string); ok && strings.TrimSpace(sv) == "" {
				value = ""
			}
		}
		id := "."
		if !frame.IsMissing(value) {
			id = fmt.Sprintf("%T:%v", value, value)
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, level{value: value})
		}
		out[i].count++
	}
	sort.SliceStable(out, func(i, j int) bool { return compare(out[i].value, out[j].value) < 0 })
	return out
}

func isMissingLevel(v interface{}) bool {
	if sv, ok := v.(string); ok {
		return strings.TrimSpace(sv) == ""
	}
	return frame.IsMissing(v)
}

func (s *Server) distinct(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	by := tbl.Strings("groupBy")
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		out := frame.New([]string{"Column", "NDistinct", "NMiss", "Trunc"})
		for _, c := range v.inputs(args, by, false) {
			nmiss := 0
			lv := levels(g.rows, c, isCharacter(v.dtype(c)))
			for _, l := range lv {
				if isMissingLevel(l.value) {
					nmiss += l.count
				}
			}
			if err := out.AppendRow([]interface{}{}, []interface{}{c, float64(len(lv)), float64(nmiss), float64(0)}); err != nil {
				return nil, err
			}
		}
		addGrouped(res, "Distinct", by, n, g, out)
	}
	return res, nil
}

// levelRow renders a level in the layout of simple.freq and simple.topk
func levelRow(character bool, value interface{}) (charVar, numVar interface{}, fmtVar string) {
	if character {
		sv, _ := value.(string)
		return sv, nil, sv
	}
	if frame.IsMissing(value) {
		return nil, nil, "."
	}
	return nil, value, fmt.Sprint(value)
}

func (s *Server) freq(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	by := tbl.Strings("groupBy")
	includeMissing, _ := args.GetDefault("includeMissing", false).(bool)
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		out := frame.New([]string{"Column", "CharVar", "NumVar", "FmtVar", "Level", "Frequency"})
		for _, c := range v.inputs(args, by, false) {
			character := isCharacter(v.dtype(c))
			for i, l := range levels(g.rows, c, character) {
				if !includeMissing && isMissingLevel(l.value) {
					continue
				}
				charVar, numVar, fmtVar := levelRow(character, l.value)
				row := []interface{}{c, charVar, numVar, fmtVar, float64(i + 1), float64(l.count)}
				if err := out.AppendRow([]interface{}{}, row); err != nil {
					return nil, err
				}
			}
		}
		addGrouped(res, "Frequency", by, n, g, out)
	}
	return res, nil
}

// quantile interpolates linearly between the closest ranks of sorted values
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	return sorted[int(lo)] + (pos-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

func (s *Server) percentile(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	by := tbl.Strings("groupBy")
	pcts := []float64{25, 50, 75}
	if raw, ok := args.Get("values"); ok {
		pcts = floats(raw)
	}
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		out := frame.New([]string{"Variable", "Pctl", "Value"})
		for _, c := range v.inputs(args, by, true) {
			values, _ := numbers(g.rows, c)
			if len(values) == 0 {
				continue
			}
			sort.Float64s(values)
			for _, p := range pcts {
				if err := out.AppendRow([]interface{}{}, []interface{}{c, p, quantile(values, p/100)}); err != nil {
					return nil, err
				}
			}
		}
		addGrouped(res, "Percentile", by, n, g, out)
	}
	return res, nil
}

func floats(raw interface{}) []float64 {
	switch v := raw.(type) {
	case []float64:
		return append([]float64(nil), v...)
	case []interface{}:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if f, ok := frame.ToFloat(item); ok {
				out = append(out, f)
			}
		}
		return out
	}
	if f, ok := frame.ToFloat(raw); ok {
		return []float64{f}
	}
	return nil
}

// topK serves order=freq requests: the most frequent present levels, ties
// included up to maxTie
func (s *Server) topK(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	if order := args.String("order"); order != "" && !strings.EqualFold(order, "freq") {
		return Failure(fmt.Sprintf("ERROR: order=%s is not supported.", order)), nil
	}
	by := tbl.Strings("groupBy")
	maxTie := toInt(args.GetDefault("maxTie", 0))
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		out := frame.New([]string{"Column", "FmtVar", "Rank", "CharVar", "NumVar", "Score"})
		for _, c := range v.inputs(args, by, false) {
			character := isCharacter(v.dtype(c))
			var present []level
			top := 0
			for _, l := range levels(g.rows, c, character) {
				if isMissingLevel(l.value) {
					continue
				}
				present = append(present, l)
				top = max(top, l.count)
			}
			emitted := 0
			for _, l := range present {
				if l.count != top || (maxTie > 0 && emitted >= maxTie) {
					continue
				}
				emitted++
				charVar, numVar, fmtVar := levelRow(character, l.value)
				row := []interface{}{c, fmtVar, float64(1), charVar, numVar, float64(l.count)}
				if err := out.AppendRow([]interface{}{}, row); err != nil {
					return nil, err
				}
			}
		}
		addGrouped(res, "Topk", by, n, g, out)
	}
	return res, nil
}

func (s *Server) groupBy(args *params.Bundle) (*castable.Result, error) {
	v, failed := s.resolve(args.Nested("table"))
	if failed != nil {
		return failed, nil
	}
	inputs := args.Strings("inputs")
	if len(inputs) == 0 {
		return Failure("ERROR: Parameter 'inputs' is required."), nil
	}
	out := frame.New(inputs)
	for _, g := range v.partition(inputs) {
		if err := out.AppendRow([]interface{}{}, g.key); err != nil {
			return nil, err
		}
	}
	res := &castable.Result{}
	res.AddTable("Groupby", out)
	return res, nil
}

func (s *Server) correlation(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	by := tbl.Strings("groupBy")
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		inputs := v.inputs(args, by, true)
		out := frame.New(append([]string{"Variable"}, inputs...))
		for _, a := range inputs {
			row := []interface{}{a}
			for _, b := range inputs {
				row = append(row, pearson(g.rows, a, b))
			}
			if err := out.AppendRow([]interface{}{}, row); err != nil {
				return nil, err
			}
		}
		addGrouped(res, "Correlation", by, n, g, out)
	}
	return res, nil
}

// pearson correlates the rows where both columns are present
func pearson(rows []map[string]interface{}, a, b string) interface{} {
	ka, kb := params.FoldKey(a), params.FoldKey(b)
	var xs, ys []float64
	for _, row := range rows {
		x, xok := frame.ToFloat(row[ka])
		y, yok := frame.ToFloat(row[kb])
		if xok && yok && !frame.IsMissing(row[ka]) && !frame.IsMissing(row[kb]) {
			xs, ys = append(xs, x), append(ys, y)
		}
	}
	if len(xs) < 2 {
		return nil
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))
	var sxy, sxx, syy float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
		syy += (ys[i] - my) * (ys[i] - my)
	}
	if sxx == 0 || syy == 0 {
		return nil
	}
	return sxy / math.Sqrt(sxx*syy)
}

// createView creates a table from the first entry of "tables", with its
// computed columns and filters applied
func (s *Server) createView(args *params.Bundle) (*castable.Result, error) {
	name := args.String("name")
	if name == "" {
		return Failure("ERROR: Parameter 'name' is required."), nil
	}
	var src *params.Bundle
	switch tables := args.GetDefault("tables", nil).(type) {
	case []*params.Bundle:
		if len(tables) > 0 {
			src = tables[0]
		}
	case *params.Bundle:
		src = tables
	}
	v, failed := s.resolve(src)
	if failed != nil {
		return failed, nil
	}
	out := frame.New(v.columns)
	overrides := make(map[string]string)
	for i, c := range v.columns {
		overrides[c] = v.types[i]
	}
	for _, row := range v.rows {
		values := make([]interface{}, len(v.columns))
		for i, c := range v.columns {
			values[i] = row[params.FoldKey(c)]
		}
		if err := out.AppendRow([]interface{}{}, values); err != nil {
			return nil, err
		}
	}
	if err := s.AddTable(name, out, overrides); err != nil {
		return nil, err
	}
	return &castable.Result{Values: map[string]interface{}{
		"viewName": strings.ToUpper(name),
		"caslib":   fmt.Sprint(args.GetDefault("caslib", "CASUSER")),
	}}, nil
}
