package table

import (
	"context"
	"strings"

	"github.com/go-sif/castable/params"
)

// WhereClause combines filter conditions into one expression
func WhereClause(conds []string) string {
	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = "(" + c + ")"
	}
	return strings.Join(parts, " and ")
}

// TableParams renders the pending state as the "table" argument of an action
func (t *Table) TableParams() *params.Bundle {
	out := params.New()
	t.params.ForEach(func(key string, value interface{}) {
		switch params.FoldKey(key) {
		case paramVarlist:
			if names := stringList(value); len(names) > 0 {
				out.Set("vars", names)
			}
		case paramCompvars:
			if names := stringList(value); len(names) > 0 {
				out.Set("computedVars", names)
			}
		case paramComppgm:
			if code := stringList(value); len(code) > 0 {
				out.Set("computedVarsProgram", strings.Join(code, " "))
			}
		case paramWhere:
			if where := WhereClause(stringList(value)); where != "" {
				out.Set("where", where)
			}
		case paramGroupBy:
			if names := stringList(value); len(names) > 0 {
				out.Set("groupBy", names)
			}
		case paramAuxvars:
		default:
			out.Set(key, value)
		}
	})
	return out
}

// ungroupedParams is TableParams without group-by variables
func (t *Table) ungroupedParams() *params.Bundle {
	p := t.TableParams()
	p.Discard("groupBy")
	return p
}

// ToTableParams returns the table arguments the server accepts for an input table
func (t *Table) ToTableParams(ctx context.Context) (*params.Bundle, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	names, err := sess.TableParamNames(ctx)
	if err != nil {
		return nil, err
	}
	return filterParams(t.TableParams(), names), nil
}

// ToOutTableParams returns the table arguments the server accepts for an output table
func (t *Table) ToOutTableParams(ctx context.Context) (*params.Bundle, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	names, err := sess.OutTableParamNames(ctx)
	if err != nil {
		return nil, err
	}
	return filterParams(t.params, names), nil
}

// ToTable returns a handle holding only input table parameters
func (t *Table) ToTable(ctx context.Context) (*Table, error) {
	p, err := t.ToTableParams(ctx)
	if err != nil {
		return nil, err
	}
	return t.fromWire(p), nil
}

// ToOutTable returns a handle holding only output table parameters
func (t *Table) ToOutTable(ctx context.Context) (*Table, error) {
	p, err := t.ToOutTableParams(ctx)
	if err != nil {
		return nil, err
	}
	return t.fromWire(p), nil
}

func (t *Table) fromWire(p *params.Bundle) *Table {
	out := &Table{params: params.New(paramName, p.String(paramName)), actions: make(map[string]*params.Bundle), conn: t.conn}
	p.ForEach(func(key string, value interface{}) {
		if !strings.EqualFold(key, paramName) {
			out.SetParam(key, value)
		}
	})
	return out
}

func filterParams(p *params.Bundle, names []string) *params.Bundle {
	out := params.New()
	p.ForEach(func(key string, value interface{}) {
		if containsFold(names, key) {
			out.Set(key, value)
		}
	})
	return out
}
