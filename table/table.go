// Package table provides lazy handles on server-resident tables.
//
// A Table is a symbolic reference to a table plus the transformations
// pending on it: selected columns, computed columns, filters, sort order and
// group-by variables. Deriving a Table is cheap and never contacts the
// server. Only methods which take a context.Context perform remote calls.
package table

import (
	"fmt"
	"strings"
	"weak"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/params"
)

// Internal parameter keys of a table bundle
const (
	paramName     = "name"
	paramCaslib   = "caslib"
	paramVarlist  = "varlist"
	paramCompvars = "compvars"
	paramComppgm  = "comppgm"
	paramWhere    = "where"
	paramGroupBy  = "groupby"
	// computed variables referenced only by filters
	paramAuxvars = "auxvars"
)

const (
	fetchActionKey = "table.fetch"
	paramSortBy    = "sortby"
)

// Table is a lazy handle on a server-resident table
type Table struct {
	params  *params.Bundle
	actions map[string]*params.Bundle // qualified action name -> default arguments
	conn    weak.Pointer[castable.Session]
}

// New creates a Table which is not yet bound to a session. kv holds
// alternating parameter names and values, such as "caslib", "casuser".
func New(name string, kv ...interface{}) *Table {
	t := &Table{
		params:  params.New(paramName, name),
		actions: make(map[string]*params.Bundle),
	}
	t.SetParams(kv...)
	return t
}

// Open creates a Table bound to sess
func Open(sess *castable.Session, name string, kv ...interface{}) *Table {
	t := New(name, kv...)
	t.SetSession(sess)
	return t
}

// Copy returns an independent handle with the same pending state
func (t *Table) Copy() *Table {
	out := &Table{
		params:  t.params.Copy(),
		actions: make(map[string]*params.Bundle, len(t.actions)),
		conn:    t.conn,
	}
	for k, v := range t.actions {
		out.actions[k] = v.Copy()
	}
	return out
}

// DeepCopy is like Copy, but also duplicates nested values
func (t *Table) DeepCopy() *Table {
	out := &Table{
		params:  t.params.DeepCopy(),
		actions: make(map[string]*params.Bundle, len(t.actions)),
		conn:    t.conn,
	}
	for k, v := range t.actions {
		out.actions[k] = v.DeepCopy()
	}
	return out
}

// Equal reports whether two handles have equal table parameters. Action
// defaults such as the sort order are not compared.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.params.Equals(other.params)
}

// TableName returns the name of the referenced table
func (t *Table) TableName() string {
	return t.params.String(paramName)
}

// Params returns a copy of the table parameters in their internal form
func (t *Table) Params() *params.Bundle {
	return t.params.Copy()
}

// Param returns a table parameter. Wire names such as "vars" or
// "computedVarsProgram" are accepted.
func (t *Table) Param(key string) (interface{}, bool) {
	return t.params.Get(internalKey(key))
}

// HasParam reports whether a table parameter is set
func (t *Table) HasParam(key string) bool {
	return t.params.Has(internalKey(key))
}

// SetParam sets a table parameter in place
func (t *Table) SetParam(key string, value interface{}) *Table {
	key = internalKey(key)
	t.params.Set(key, internalValue(key, value))
	return t
}

// SetParams sets alternating names and values in place
func (t *Table) SetParams(kv ...interface{}) *Table {
	for i := 0; i+1 < len(kv); i += 2 {
		t.SetParam(fmt.Sprint(kv[i]), kv[i+1])
	}
	return t
}

// DelParam removes a table parameter in place
func (t *Table) DelParam(key string) error {
	return t.params.Delete(internalKey(key))
}

// ActionParams returns a copy of the default arguments of an action
func (t *Table) ActionParams(action string) *params.Bundle {
	if p, ok := t.actions[strings.ToLower(action)]; ok {
		return p.Copy()
	}
	return params.New()
}

// SetActionParams sets default arguments of an action in place
func (t *Table) SetActionParams(action string, kv ...interface{}) *Table {
	p := t.actionBundle(action)
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return t
}

func (t *Table) actionBundle(action string) *params.Bundle {
	key := strings.ToLower(action)
	p, ok := t.actions[key]
	if !ok {
		p = params.New()
		t.actions[key] = p
	}
	return p
}

// String renders the table reference and its pending state
func (t *Table) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Table(%q", t.TableName())
	t.params.ForEach(func(key string, value interface{}) {
		if strings.EqualFold(key, paramName) {
			return
		}
		switch v := value.(type) {
		case string:
			fmt.Fprintf(&sb, ", %s=%q", key, v)
		case []string:
			fmt.Fprintf(&sb, ", %s=%q", key, v)
		default:
			fmt.Fprintf(&sb, ", %s=%v", key, v)
		}
	})
	sb.WriteString(")")
	if specs := t.SortBy(); len(specs) > 0 {
		names := make([]string, len(specs))
		for i, s := range specs {
			names[i] = s.String()
		}
		fmt.Fprintf(&sb, ".SortValues(%s)", strings.Join(names, ", "))
	}
	return sb.String()
}

// internalKey maps wire parameter names onto the keys used in table bundles
func internalKey(key string) string {
	switch params.FoldKey(key) {
	case "vars", paramVarlist:
		return paramVarlist
	case "computedvars", paramCompvars:
		return paramCompvars
	case "computedvarsprogram", paramComppgm:
		return paramComppgm
	case paramGroupBy:
		return paramGroupBy
	case paramWhere:
		return paramWhere
	}
	return key
}

func internalValue(key string, value interface{}) interface{} {
	switch key {
	case paramVarlist, paramCompvars, paramGroupBy, paramComppgm, paramWhere:
		return stringList(value)
	}
	return value
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return []string{fmt.Sprint(value)}
}

func containsFold(list []string, name string) bool {
	return indexFold(list, name) >= 0
}

func indexFold(list []string, name string) int {
	fn := params.FoldKey(name)
	for i, item := range list {
		if params.FoldKey(item) == fn {
			return i
		}
	}
	return -1
}
