package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

const sample = `
session:
  max_rows_fetched: 500
  fetch_chunk_size: 50
  cache_column_info: false
  speculative_column_lookup: true
  log_level: debug
rest:
  base_url: https://cas.example.com:8777
  username: casuser
  timeout: 30s
`

func TestParse(t *testing.T) {
	conf, err := Parse(strings.NewReader(sample))
	require.Nil(t, err)
	require.Equal(t, 500, conf.Session.MaxRowsFetched)
	require.Equal(t, 30*time.Second, conf.REST.Timeout)
	require.Equal(t, slog.LevelDebug, conf.SlogLevel())

	var buf bytes.Buffer
	opts := conf.Options(&buf)
	require.Equal(t, 500, opts.MaxRowsFetched)
	require.Equal(t, 50, opts.FetchChunkSize)
	require.False(t, opts.CacheColumnInfo)
	require.True(t, opts.SpeculativeColumnLookup)
	opts.Logger.Debug("visible")
	require.Contains(t, buf.String(), "visible")
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	conf, err := Parse(strings.NewReader(""))
	require.Nil(t, err)
	opts := conf.Options(nil)
	require.Equal(t, 10000, opts.MaxRowsFetched)
	require.Equal(t, 200, opts.FetchChunkSize)
	require.True(t, opts.CacheColumnInfo)
	require.NotNil(t, opts.LogLevel)
	require.Equal(t, slog.LevelInfo, *opts.LogLevel)
}

func TestValidateCollectsErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(`
session:
  max_rows_fetched: -1
  log_level: loud
rest:
  base_url: ftp://example.com
`))
	require.NotNil(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 3)
}

func TestUnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("session:\n  max_rows: 5\n"))
	require.NotNil(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castable.yaml")
	require.Nil(t, os.WriteFile(path, []byte(sample), 0o600))
	conf, err := Load(path)
	require.Nil(t, err)
	require.Equal(t, "casuser", conf.REST.Username)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, err)
}
