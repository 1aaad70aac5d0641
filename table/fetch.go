package table

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-sif/castable/bridge"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// FetchOptions selects the rows and columns returned by Fetch
type FetchOptions struct {
	// From and To are 1-based inclusive row positions. Zero leaves a bound
	// open; a negative To selects no rows.
	From int
	To   int
	// Columns restricts the fetched columns. Defaults to the visible columns.
	Columns []string
	// SortBy is applied after the table's own sort order
	SortBy []params.SortSpec
}

// fetchVars returns the columns a fetch must request explicitly, or nil when
// the server default is correct
func (t *Table) fetchVars(ctx context.Context) ([]string, error) {
	if v := t.Varlist(); len(v) > 0 {
		return v, nil
	}
	if len(t.auxvars()) > 0 {
		return t.Columns(ctx)
	}
	return nil, nil
}

// Fetch retrieves rows of the table. Grouped tables return their group keys
// as index levels.
func (t *Table) Fetch(ctx context.Context, opts FetchOptions) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	vars := opts.Columns
	if len(vars) == 0 {
		if vars, err = t.fetchVars(ctx); err != nil {
			return nil, err
		}
	}
	if opts.To < 0 || (opts.To > 0 && opts.From > opts.To) {
		return frame.New(vars), nil
	}
	defaults := t.ActionParams(fetchActionKey)
	defaults.Discard(paramSortBy)
	if !defaults.Has("maxRows") {
		defaults.Set("maxRows", sess.Options().MaxRowsFetched)
	}
	sortBy := append(append([]params.SortSpec(nil), t.SortBy()...), opts.SortBy...)
	return bridge.Fetch(ctx, sess, &bridge.FetchRequest{
		Table:         t.TableParams(),
		From:          opts.From,
		To:            opts.To,
		SortBy:        sortBy,
		Vars:          vars,
		Defaults:      defaults,
		GroupsAsIndex: true,
	})
}

func (t *Table) empty(ctx context.Context, cols []string) (*frame.Frame, error) {
	if len(cols) == 0 {
		var err error
		if cols, err = t.Columns(ctx); err != nil {
			return nil, err
		}
	}
	return frame.New(cols), nil
}

// Head returns the first n rows
func (t *Table) Head(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	if n <= 0 {
		return t.empty(ctx, cols)
	}
	return t.Fetch(ctx, FetchOptions{From: 1, To: n, Columns: cols})
}

// Tail returns the last n rows
func (t *Table) Tail(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	rows, err := t.NumRows(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 || rows == 0 {
		return t.empty(ctx, cols)
	}
	return t.Fetch(ctx, FetchOptions{From: max(rows-n, 0) + 1, To: rows, Columns: cols})
}

// Slice returns rows [start, stop). Negative positions count from the end.
func (t *Table) Slice(ctx context.Context, start, stop int, cols ...string) (*frame.Frame, error) {
	if start < 0 || stop < 0 {
		rows, err := t.NumRows(ctx)
		if err != nil {
			return nil, err
		}
		if start < 0 {
			start = max(start+rows, 0)
		}
		if stop < 0 {
			stop = max(stop+rows, 0)
		}
	}
	if start >= stop {
		return t.empty(ctx, cols)
	}
	return t.Fetch(ctx, FetchOptions{From: start + 1, To: stop, Columns: cols})
}

// ToFrame materializes the table, up to the session's MaxRowsFetched rows
func (t *Table) ToFrame(ctx context.Context) (*frame.Frame, error) {
	sess, err := t.Session()
	if err != nil {
		return nil, err
	}
	return t.Fetch(ctx, FetchOptions{From: 1, To: sess.Options().MaxRowsFetched})
}

// ToRecord materializes the table as an Arrow record. The caller must
// release the record.
func (t *Table) ToRecord(ctx context.Context, mem memory.Allocator) (arrow.RecordBatch, error) {
	f, err := t.ToFrame(ctx)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return f.ToRecord(mem)
}

// IterRows calls fn for each row, fetching FetchChunkSize rows per request.
// Iteration stops at the first error.
func (t *Table) IterRows(ctx context.Context, fn func(pos int, columns []string, values []interface{}) error) error {
	sess, err := t.Session()
	if err != nil {
		return err
	}
	chunk := sess.Options().FetchChunkSize
	vars, err := t.fetchVars(ctx)
	if err != nil {
		return err
	}
	for from := 1; ; from += chunk {
		f, err := t.Fetch(ctx, FetchOptions{From: from, To: from + chunk - 1, Columns: vars})
		if err != nil {
			return err
		}
		columns := f.Columns()
		for i := 0; i < f.Len(); i++ {
			if err := fn(from-1+i, columns, f.Row(i)); err != nil {
				return err
			}
		}
		if f.Len() < chunk {
			return nil
		}
	}
}

func (t *Table) extremes(ctx context.Context, n int, cols []string, ascending bool) (*frame.Frame, error) {
	if len(cols) == 0 {
		var err error
		if cols, err = t.Columns(ctx); err != nil {
			return nil, err
		}
	}
	out := t.Copy()
	out.actions[fetchActionKey] = out.ActionParams(fetchActionKey)
	out.actions[fetchActionKey].Discard(paramSortBy)
	specs := make([]params.SortSpec, len(cols))
	for i, c := range cols {
		specs[i] = params.NewSortSpec(c, ascending)
	}
	if n <= 0 {
		return out.empty(ctx, nil)
	}
	return out.Fetch(ctx, FetchOptions{From: 1, To: n, SortBy: specs})
}

// NLargest returns the n rows with the largest values of cols, which default
// to every visible column
func (t *Table) NLargest(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	return t.extremes(ctx, n, cols, false)
}

// NSmallest returns the n rows with the smallest values of cols
func (t *Table) NSmallest(ctx context.Context, n int, cols ...string) (*frame.Frame, error) {
	return t.extremes(ctx, n, cols, true)
}
