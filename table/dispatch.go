package table

import (
	"context"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/params"
)

// ResolutionKind identifies what a name resolved to
type ResolutionKind int

const (
	ResolvedParam ResolutionKind = iota
	ResolvedActionSet
	ResolvedAction
	ResolvedColumn
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedParam:
		return "param"
	case ResolvedActionSet:
		return "action set"
	case ResolvedAction:
		return "action"
	case ResolvedColumn:
		return "column"
	}
	return "unknown"
}

// Resolution is the result of resolving a name against a table
type Resolution struct {
	Kind ResolutionKind
	Name string
	// Value is set for ResolvedParam
	Value interface{}
	// Column is set for ResolvedColumn
	Column *Column
	// Action is set for ResolvedAction
	Action *ActionCall
}

// Resolve looks a name up, in order, among the table parameters, the
// server's action sets, the server's actions and the table's columns.
// Unknown names are offered to the server as columns only when the session
// enables SpeculativeColumnLookup.
func (t *Table) Resolve(ctx context.Context, name string) (*Resolution, error) {
	if v, ok := t.Param(name); ok {
		return &Resolution{Kind: ResolvedParam, Name: name, Value: v}, nil
	}
	sess, _ := t.Session()
	if sess != nil {
		ok, err := sess.HasActionSet(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Resolution{Kind: ResolvedActionSet, Name: name}, nil
		}
		q, ok, err := sess.QualifiedAction(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Resolution{Kind: ResolvedAction, Name: q, Action: t.Action(q)}, nil
		}
	}
	for _, list := range [][]string{t.Varlist(), t.Compvars()} {
		if i := indexFold(list, name); i >= 0 {
			col := t.ToColumn(list[i])
			if sess != nil {
				if typed, err := t.Col(ctx, list[i]); err == nil {
					col = typed
				}
			}
			return &Resolution{Kind: ResolvedColumn, Name: col.Name(), Column: col}, nil
		}
	}
	if sess != nil && sess.Options().SpeculativeColumnLookup {
		col, err := t.Col(ctx, name)
		if err == nil {
			return &Resolution{Kind: ResolvedColumn, Name: col.Name(), Column: col}, nil
		}
		if _, ok := err.(errors.KeyNotFoundError); !ok {
			return nil, err
		}
	}
	return nil, errors.KeyNotFoundError{Key: name}
}

// ActionCall is an action bound to a table. The table reference and the
// table's default arguments for the action are supplied on every call.
type ActionCall struct {
	table *Table
	name  string
}

// Action binds the named action to a copy of the table
func (t *Table) Action(name string) *ActionCall {
	return &ActionCall{table: t.Copy(), name: name}
}

// Name returns the action name as given, or as qualified by Resolve
func (a *ActionCall) Name() string {
	return a.name
}

// Invoke runs the action. args override the table's defaults; a "table"
// argument overrides the bound table reference.
func (a *ActionCall) Invoke(ctx context.Context, args *params.Bundle) (*castable.Result, error) {
	sess, err := a.table.Session()
	if err != nil {
		return nil, err
	}
	q, ok, err := sess.QualifiedAction(ctx, a.name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.KeyNotFoundError{Key: a.name}
	}
	call := a.table.ActionParams(q)
	if args != nil {
		call.Merge(args.Copy())
	}
	if !call.Has("table") {
		call.Set("table", a.table.TableParams())
	}
	return bridge.Retrieve(ctx, sess, q, call)
}
