// Package bridge turns finalized parameter bundles into action requests and
// turns action results into local frames. It is the only place where pending
// queries reach the server.
package bridge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// FetchAction is the action used to retrieve rows
const FetchAction = "table.fetch"

// Invoker runs actions. *castable.Session implements it.
type Invoker interface {
	Invoke(ctx context.Context, action string, args *params.Bundle) (*castable.Result, error)
	Logger() *slog.Logger
}

// Retrieve invokes an action, converting a result with error severity into a
// RemoteOperationError. Warnings are logged and the result is returned.
// No retries are attempted.
func Retrieve(ctx context.Context, inv Invoker, action string, args *params.Bundle) (*castable.Result, error) {
	res, err := inv.Invoke(ctx, action, args)
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, errors.RemoteOperationError{
			Action:     action,
			Status:     res.Status,
			Reason:     res.Reason,
			Severity:   res.Severity,
			StatusCode: res.StatusCode,
		}
	}
	if res.Severity == castable.SeverityWarning {
		inv.Logger().WarnContext(ctx, "action completed with warnings",
			"action", action,
			"status", res.Status,
			"messages", strings.Join(res.Messages, "; "),
		)
	}
	return res, nil
}

// FetchRequest describes a row fetch
type FetchRequest struct {
	// Table is the wire form of the table reference
	Table *params.Bundle
	// From and To are 1-based inclusive row positions. Zero leaves them unset.
	From int
	To   int
	// SortBy orders rows before the range is applied
	SortBy []params.SortSpec
	// Vars selects and orders the returned columns
	Vars []string
	// Defaults are action parameters merged before the request fields
	Defaults *params.Bundle
	// GroupsAsIndex places by-group values of grouped results in the index
	GroupsAsIndex bool
}

// Args renders the request as table.fetch arguments
func (r *FetchRequest) Args() *params.Bundle {
	args := params.New()
	if r.Defaults != nil {
		args.Merge(r.Defaults.Copy())
	}
	args.Set("table", r.Table)
	if r.From > 0 {
		args.Set("from", r.From)
	}
	if r.To > 0 {
		args.Set("to", r.To)
	}
	if len(r.SortBy) > 0 {
		args.Set("sortby", append([]params.SortSpec(nil), r.SortBy...))
	}
	if len(r.Vars) > 0 {
		args.Set("fetchVars", append([]string(nil), r.Vars...))
	}
	args.Set("noindex", true)
	args.Set("sastypes", false)
	return args
}

// Fetch retrieves rows and concatenates every "Fetch" sub-result into one frame
func Fetch(ctx context.Context, inv Invoker, req *FetchRequest) (*frame.Frame, error) {
	res, err := Retrieve(ctx, inv, FetchAction, req.Args())
	if err != nil {
		return nil, err
	}
	out := Concat(res, "Fetch", req.GroupsAsIndex)
	if len(req.Vars) > 0 && out.HasColumns(req.Vars...) {
		return out.Select(req.Vars...)
	}
	return out, nil
}

// AggregateRequest describes a summarizing action applied to a table
type AggregateRequest struct {
	// Action is the qualified action name, such as "simple.summary"
	Action string
	// Table is the wire form of the table reference, including any group-by variables
	Table *params.Bundle
	// Args holds additional action arguments
	Args *params.Bundle
}

// Aggregate runs a summarizing action
func Aggregate(ctx context.Context, inv Invoker, req *AggregateRequest) (*castable.Result, error) {
	args := params.New()
	if req.Args != nil {
		args.Merge(req.Args.Copy())
	}
	args.Set("table", req.Table)
	return Retrieve(ctx, inv, req.Action, args)
}

// Tables returns the sub-results whose name (ignoring any by-group prefix)
// equals name, in result order
func Tables(res *castable.Result, name string) []*castable.ResultTable {
	var out []*castable.ResultTable
	for _, t := range res.Tables {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.Key, name) {
			out = append(out, t)
		}
	}
	return out
}

// Concat concatenates the named sub-results in result order. By-group values
// of each sub-result become leading index levels when groupsAsIndex is set,
// and leading columns otherwise. Sub-results which already contain their
// by-group columns are left as they are. Returns an empty frame when no
// sub-result matches.
func Concat(res *castable.Result, name string, groupsAsIndex bool) *frame.Frame {
	tables := Tables(res, name)
	frames := make([]*frame.Frame, 0, len(tables))
	for _, t := range tables {
		if t.Frame == nil {
			continue
		}
		names := make([]string, 0, len(t.ByGroups))
		values := make([]interface{}, 0, len(t.ByGroups))
		for _, bg := range t.ByGroups {
			names = append(names, bg.Name)
			values = append(values, bg.Value)
		}
		f := t.Frame
		if len(names) > 0 && (groupsAsIndex || !f.HasColumns(names...)) {
			f = f.WithConstant(names, values, groupsAsIndex)
		}
		frames = append(frames, f)
	}
	return frame.Concat(frames...)
}
