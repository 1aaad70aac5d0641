package testing

import (
	"github.com/go-sif/castable"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/logging"
)

// LocalSession creates a Session backed by srv. Logging is discarded unless
// opts provides a Logger.
func LocalSession(srv *Server, opts *castable.Options) (*castable.Session, error) {
	if opts == nil {
		opts = castable.DefaultOptions()
	}
	copied := *opts
	opts = &copied
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return castable.CreateSession(srv, opts)
}

// Rows builds a frame from column names and rows of values
func Rows(columns []string, rows ...[]interface{}) *frame.Frame {
	f := frame.New(columns)
	for _, r := range rows {
		if err := f.AppendRow([]interface{}{}, r); err != nil {
			panic(err)
		}
	}
	return f
}

// Result builds a successful result holding one table per key, in order
func Result(tables ...interface{}) *castable.Result {
	res := &castable.Result{}
	for i := 0; i+1 < len(tables); i += 2 {
		res.AddTable(tables[i].(string), tables[i+1].(*frame.Frame))
	}
	return res
}
