// Package testing provides an in-memory stand-in for a server, so that
// table handles can be exercised without a network connection.
package testing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-sif/castable"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// Handler serves one action
type Handler func(args *params.Bundle) (*castable.Result, error)

// Call records one action invocation
type Call struct {
	Action string
	Args   *params.Bundle
}

// Server holds tables as Arrow records. It serves table metadata, fetches,
// views and the simple and percentile statistics itself, honoring the
// groupBy of the table argument. Any other action must be registered with
// Handle, which also overrides the built-in actions.
type Server struct {
	mu       sync.Mutex
	mem      memory.Allocator
	tables   map[string]arrow.RecordBatch
	dtypes   map[string]map[string]string
	handlers map[string]Handler
	calls    []Call
	closed   bool

	// Evaluate computes the value of a computed variable for a row, whose
	// keys are case-folded column names. When nil, computed values are missing.
	Evaluate func(name string, row map[string]interface{}) interface{}
	// Filter reports whether a row satisfies a where clause. When nil, every row is kept.
	Filter func(where string, row map[string]interface{}) bool
}

// NewServer creates an empty Server. A nil allocator uses the Go allocator.
func NewServer(mem memory.Allocator) *Server {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Server{
		mem:      mem,
		tables:   make(map[string]arrow.RecordBatch),
		dtypes:   make(map[string]map[string]string),
		handlers: make(map[string]Handler),
	}
}

// AddTable stores a frame as a table. dtypes overrides the reported type of
// columns, for types such as "date" or "char" which have no distinct Go representation.
func (s *Server) AddTable(name string, f *frame.Frame, dtypes map[string]string) error {
	rec, err := f.ToRecord(s.mem)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := params.FoldKey(name)
	if old, ok := s.tables[key]; ok {
		old.Release()
	}
	s.tables[key] = rec
	overrides := make(map[string]string, len(dtypes))
	for k, v := range dtypes {
		overrides[params.FoldKey(k)] = v
	}
	s.dtypes[key] = overrides
	return nil
}

// Handle registers a handler for a qualified action
func (s *Server) Handle(action string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[strings.ToLower(action)] = h
}

// Calls returns recorded invocations of action, or of every action when action is empty
func (s *Server) Calls(action string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if action == "" || strings.EqualFold(c.Action, action) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded invocations
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Release frees every stored record
func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.tables {
		rec.Release()
		delete(s.tables, k)
	}
}

// Invoke serves an action
func (s *Server) Invoke(ctx context.Context, action string, args *params.Bundle) (*castable.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("connection is closed")
	}
	s.calls = append(s.calls, Call{Action: action, Args: args.DeepCopy()})
	h, ok := s.handlers[strings.ToLower(action)]
	s.mu.Unlock()
	if ok {
		return h(args)
	}
	switch strings.ToLower(action) {
	case "table.fetch":
		return s.fetch(args)
	case "table.columninfo":
		return s.columnInfo(args)
	case "table.tableinfo":
		return s.tableInfo(args)
	case "simple.numrows":
		return s.numRows(args)
	case "simple.summary":
		return s.summary(args)
	case "simple.distinct":
		return s.distinct(args)
	case "simple.freq":
		return s.freq(args)
	case "simple.topk":
		return s.topK(args)
	case "simple.groupby":
		return s.groupBy(args)
	case "simple.correlation":
		return s.correlation(args)
	case "percentile.percentile":
		return s.percentile(args)
	case "table.view":
		return s.createView(args)
	}
	return Failure(fmt.Sprintf("ERROR: Action '%s' was not found.", action)), nil
}

// Reflect describes builtins.cascommon and, generically, any other action
func (s *Server) Reflect(ctx context.Context, action string) (*castable.ActionInfo, error) {
	if !strings.EqualFold(action, castable.CommonParamsAction) {
		return &castable.ActionInfo{
			Name:   action,
			Params: []castable.ParamInfo{{Name: "table", Type: "castable", Required: true}},
		}, nil
	}
	list := func(names ...string) []castable.ParamInfo {
		out := make([]castable.ParamInfo, len(names))
		for i, n := range names {
			out[i] = castable.ParamInfo{Name: n, Type: "string"}
		}
		return out
	}
	return &castable.ActionInfo{
		Name: action,
		Params: []castable.ParamInfo{
			{Name: "castable", Type: "dict", ParmList: list("name", "caslib", "where", "groupBy",
				"groupByMode", "orderBy", "computedVars", "computedVarsProgram", "vars",
				"importOptions", "singlePass", "dataSourceOptions")},
			{Name: "casouttable", Type: "dict", ParmList: list("name", "caslib", "label",
				"replace", "promote", "compress", "indexVars", "replication")},
		},
	}, nil
}

// ListActions lists the built-in actions and every registered handler
func (s *Server) ListActions(ctx context.Context) (map[string][]string, error) {
	out := map[string][]string{
		"builtins":   {"reflect", "cascommon", "loadActionSet"},
		"table":      {"fetch", "columnInfo", "tableInfo", "view", "dropTable"},
		"simple":     {"numRows", "summary", "topK", "distinct", "freq", "correlation", "groupBy"},
		"percentile": {"percentile"},
		"dataStep":   {"runCode"},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for action := range s.handlers {
		if i := strings.Index(action, "."); i > 0 {
			set, name := action[:i], action[i+1:]
			found := false
			for existing := range out {
				if strings.EqualFold(existing, set) {
					set = existing
				}
			}
			for _, n := range out[set] {
				if strings.EqualFold(n, name) {
					found = true
				}
			}
			if !found {
				out[set] = append(out[set], name)
			}
		}
	}
	return out, nil
}

// Close marks the server as closed
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Failure builds a result with error severity
func Failure(status string) *castable.Result {
	return &castable.Result{
		Severity:   castable.SeverityError,
		Reason:     "abort",
		Status:     status,
		StatusCode: 2710999,
	}
}

// view is the resolved content of a table reference
type view struct {
	columns []string
	types   []string
	rows    []map[string]interface{}
}

func (s *Server) resolve(tbl *params.Bundle) (*view, *castable.Result) {
	if tbl == nil {
		return nil, Failure("ERROR: Parameter 'table' is required.")
	}
	name := tbl.String("name")
	s.mu.Lock()
	rec, ok := s.tables[params.FoldKey(name)]
	overrides := s.dtypes[params.FoldKey(name)]
	if ok {
		rec.Retain()
	}
	s.mu.Unlock()
	if !ok {
		return nil, Failure(fmt.Sprintf("ERROR: Table '%s' could not be located.", name))
	}
	defer rec.Release()
	base, err := frame.FromRecord(rec)
	if err != nil {
		return nil, Failure(err.Error())
	}

	v := &view{}
	for i, c := range base.Columns() {
		t := arrowDtype(rec.Schema().Field(i).Type)
		if o, ok := overrides[params.FoldKey(c)]; ok {
			t = o
		}
		v.columns = append(v.columns, c)
		v.types = append(v.types, t)
	}
	computed := tbl.Strings("computedVars")
	for _, c := range computed {
		v.columns = append(v.columns, c)
		v.types = append(v.types, "double")
	}
	where := tbl.String("where")
	for r := 0; r < base.Len(); r++ {
		row := make(map[string]interface{}, len(v.columns))
		for i, c := range base.Columns() {
			row[params.FoldKey(c)] = base.Row(r)[i]
		}
		for _, c := range computed {
			var value interface{}
			if s.Evaluate != nil {
				value = s.Evaluate(c, row)
			}
			row[params.FoldKey(c)] = value
		}
		if where != "" && s.Filter != nil && !s.Filter(where, row) {
			continue
		}
		v.rows = append(v.rows, row)
	}
	if vars := tbl.Strings("vars"); len(vars) > 0 {
		if res := v.restrict(vars); res != nil {
			return nil, res
		}
	}
	return v, nil
}

func (v *view) restrict(vars []string) *castable.Result {
	var columns, types []string
	for _, want := range vars {
		found := false
		for i, c := range v.columns {
			if strings.EqualFold(c, want) {
				columns = append(columns, c)
				types = append(types, v.types[i])
				found = true
				break
			}
		}
		if !found {
			return Failure(fmt.Sprintf("ERROR: The variable %s does not exist in the table.", want))
		}
	}
	v.columns, v.types = columns, types
	return nil
}

func arrowDtype(t arrow.DataType) string {
	switch t.ID() {
	case arrow.FLOAT64, arrow.BOOL:
		return "double"
	case arrow.INT64:
		return "int64"
	case arrow.INT32:
		return "int32"
	case arrow.TIMESTAMP:
		return "datetime"
	}
	return "varchar"
}

func (s *Server) fetch(args *params.Bundle) (*castable.Result, error) {
	tbl := args.Nested("table")
	v, failed := s.resolve(tbl)
	if failed != nil {
		return failed, nil
	}
	if fetchVars := args.Strings("fetchVars"); len(fetchVars) > 0 {
		if res := v.restrict(fetchVars); res != nil {
			return res, nil
		}
	}
	by := tbl.Strings("groupBy")
	if len(by) > 0 {
		var columns, types []string
		for i, c := range v.columns {
			if !containsFold(by, c) {
				columns = append(columns, c)
				types = append(types, v.types[i])
			}
		}
		v.columns, v.types = columns, types
	}
	res := &castable.Result{}
	for n, g := range v.partition(by) {
		out, err := v.fetchRows(args, g.rows)
		if err != nil {
			return nil, err
		}
		addGrouped(res, "Fetch", by, n, g, out)
	}
	return res, nil
}

// fetchRows sorts rows and applies the from and to bounds
func (v *view) fetchRows(args *params.Bundle, rows []map[string]interface{}) (*frame.Frame, error) {
	if specs := args.SortSpecs("sortby"); len(specs) > 0 {
		rows = append([]map[string]interface{}(nil), rows...)
		sort.SliceStable(rows, func(i, j int) bool {
			for _, spec := range specs {
				a, b := rows[i][params.FoldKey(spec.Name)], rows[j][params.FoldKey(spec.Name)]
				c := compare(a, b)
				if c == 0 {
					continue
				}
				if spec.Ascending() {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	from, to := 1, len(rows)
	if f, ok := args.Get("from"); ok {
		from = toInt(f)
	}
	if t, ok := args.Get("to"); ok {
		to = toInt(t)
	} else if m, ok := args.Get("maxRows"); ok && toInt(m) > 0 {
		to = from + toInt(m) - 1
	}
	if to > len(rows) {
		to = len(rows)
	}
	if from < 1 {
		from = 1
	}
	out := frame.New(v.columns)
	for r := from - 1; r < to; r++ {
		values := make([]interface{}, len(v.columns))
		for i, c := range v.columns {
			values[i] = rows[r][params.FoldKey(c)]
		}
		if err := out.AppendRow([]interface{}{}, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Server) columnInfo(args *params.Bundle) (*castable.Result, error) {
	v, failed := s.resolve(args.Nested("table"))
	if failed != nil {
		return failed, nil
	}
	out := frame.New([]string{"Column", "ID", "Type", "RawLength", "FormattedLength", "Format", "NFL", "NFD"})
	for i, c := range v.columns {
		length := int64(8)
		if v.types[i] == "varchar" || v.types[i] == "char" {
			length = 0
			for _, row := range v.rows {
				if sv, ok := row[params.FoldKey(c)].(string); ok && int64(len(sv)) > length {
					length = int64(len(sv))
				}
			}
		}
		err := out.AppendRow([]interface{}{}, []interface{}{c, int64(i + 1), v.types[i], length, length, "", int64(0), int64(0)})
		if err != nil {
			return nil, err
		}
	}
	res := &castable.Result{}
	res.AddTable("ColumnInfo", out)
	return res, nil
}

func (s *Server) tableInfo(args *params.Bundle) (*castable.Result, error) {
	v, failed := s.resolve(args.Nested("table"))
	if failed != nil {
		return failed, nil
	}
	out := frame.New([]string{"Name", "Rows", "Columns"})
	name := strings.ToUpper(args.Nested("table").String("name"))
	if err := out.AppendRow([]interface{}{}, []interface{}{name, int64(len(v.rows)), int64(len(v.columns))}); err != nil {
		return nil, err
	}
	res := &castable.Result{}
	res.AddTable("TableInfo", out)
	return res, nil
}

func (s *Server) numRows(args *params.Bundle) (*castable.Result, error) {
	v, failed := s.resolve(args.Nested("table"))
	if failed != nil {
		return failed, nil
	}
	return &castable.Result{Values: map[string]interface{}{"numrows": int64(len(v.rows))}}, nil
}

func compare(a, b interface{}) int {
	switch {
	case frame.IsMissing(a) && frame.IsMissing(b):
		return 0
	case frame.IsMissing(a):
		return -1
	case frame.IsMissing(b):
		return 1
	}
	af, aok := frame.ToFloat(a)
	bf, bok := frame.ToFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toInt(v interface{}) int {
	if f, ok := frame.ToFloat(v); ok {
		return int(f)
	}
	return 0
}
