package castable

import (
	"log/slog"
	"os"

	"github.com/go-sif/castable/logging"
)

// Options configures a Session
type Options struct {
	// MaxRowsFetched caps the number of rows fetched by a single request
	// when no explicit range is given. Defaults to 10000.
	MaxRowsFetched int
	// FetchChunkSize is the number of rows requested per round trip while
	// iterating over a table. Defaults to 200.
	FetchChunkSize int
	// CacheColumnInfo enables the session's column metadata cache
	CacheColumnInfo bool
	// ColumnInfoCacheSize bounds the number of cached metadata results. Defaults to 256.
	ColumnInfoCacheSize int
	// SpeculativeColumnLookup lets Table.Resolve ask the server whether an
	// unrecognized name is a column. Disabled by default.
	SpeculativeColumnLookup bool
	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
	// LogLevel sets the logging level of a logger created for the session.
	// If Logger is also provided, LogLevel is ignored.
	LogLevel *slog.Level
}

// DefaultOptions returns the default session configuration
func DefaultOptions() *Options {
	return &Options{
		MaxRowsFetched:      10000,
		FetchChunkSize:      200,
		CacheColumnInfo:     true,
		ColumnInfoCacheSize: 256,
	}
}

func (o *Options) withDefaults() *Options {
	defaults := DefaultOptions()
	if o == nil {
		o = defaults
	}
	out := *o
	if out.MaxRowsFetched <= 0 {
		out.MaxRowsFetched = defaults.MaxRowsFetched
	}
	if out.FetchChunkSize <= 0 {
		out.FetchChunkSize = defaults.FetchChunkSize
	}
	if out.ColumnInfoCacheSize <= 0 {
		out.ColumnInfoCacheSize = defaults.ColumnInfoCacheSize
	}
	if out.Logger == nil {
		if out.LogLevel != nil {
			out.Logger = logging.NewAt(*out.LogLevel, os.Stderr)
		} else {
			out.Logger = slog.Default()
		}
	}
	return &out
}
