package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
	"github.com/go-sif/castable/params"
	uuid "github.com/gofrs/uuid"
)

const viewPrefix = "_CASTABLE_"

// hasPending reports whether the table carries state which only exists
// client-side, such as computed columns or filters
func (t *Table) hasPending() bool {
	for _, key := range []string{paramVarlist, paramCompvars, paramComppgm, paramWhere, paramGroupBy} {
		if t.params.Has(key) {
			return true
		}
	}
	return len(t.SortBy()) > 0
}

func newTableName() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return viewPrefix + strings.ReplaceAll(strings.ToUpper(id.String()), "-", "_"), nil
}

// ToView materializes the pending state of the table as a server-side view
// and returns a Table bound to it. An empty name generates one.
func (t *Table) ToView(ctx context.Context, name string) (*Table, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	if name == "" {
		if name, err = newTableName(); err != nil {
			return nil, err
		}
	}
	args := params.New("name", name, "tables", []*params.Bundle{t.ungroupedParams()})
	if caslib := t.params.String(paramCaslib); caslib != "" {
		args.Set("caslib", caslib)
	}
	res, err := bridge.Retrieve(ctx, sess, "table.view", args)
	if err != nil {
		return nil, err
	}
	viewName, caslib := name, t.params.String(paramCaslib)
	if v, ok := res.Values["viewName"]; ok {
		viewName = fmt.Sprint(v)
	}
	if v, ok := res.Values["caslib"]; ok {
		caslib = fmt.Sprint(v)
	}
	sess.Logger().DebugContext(ctx, "created view", "view", viewName, "caslib", caslib)
	out := Open(sess, viewName)
	if caslib != "" {
		out.SetParam(paramCaslib, caslib)
	}
	if groups := t.GroupByVars(); len(groups) > 0 {
		out.AppendGroupBy(groups...)
	}
	out.AppendOrderBy(t.SortBy()...)
	return out, nil
}

// Datastep runs a DATA step which reads this table and writes casout. code
// holds the statements placed between the SET statement and RUN. Pending
// state is first materialized as a view. An empty casout generates a name.
func (t *Table) Datastep(ctx context.Context, code string, casout string) (*Table, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	in := t
	if t.hasPending() {
		if in, err = t.ToView(ctx, ""); err != nil {
			return nil, err
		}
	}
	if casout == "" {
		if casout, err = newTableName(); err != nil {
			return nil, err
		}
	}
	caslib := in.params.String(paramCaslib)
	ref := func(name string) string {
		if caslib != "" {
			return fmt.Sprintf("%s.%s", expr.Nlit(caslib), expr.Nlit(name))
		}
		return expr.Nlit(name)
	}
	program := fmt.Sprintf("data %s; set %s; %s; run;", ref(casout), ref(in.TableName()), strings.TrimRight(strings.TrimSpace(code), ";"))
	res, err := bridge.Retrieve(ctx, sess, "datastep.runcode", params.New("code", program))
	if err != nil {
		return nil, err
	}
	out := bridge.Concat(res, "OutputCasTables", false)
	if out.Len() == 0 {
		return nil, errors.RemoteOperationError{Action: "datastep.runcode", Status: "no output table was reported", Severity: res.Severity}
	}
	name := cellString(out, 0, "Name")
	lib := cellString(out, 0, "casLib")
	tbl := Open(sess, name)
	if lib != "" {
		tbl.SetParam(paramCaslib, lib)
	}
	return tbl, nil
}
