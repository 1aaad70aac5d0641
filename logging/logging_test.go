package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, lvl := range []int{TraceLevel, DebugLevel, InfoLevel, WarnLevel, ErrorLevel} {
		parsed, err := ParseLevel(LogLevelToString(lvl))
		require.Nil(t, err)
		require.Equal(t, lvl, parsed)
	}
	lvl, err := ParseLevel("warning")
	require.Nil(t, err)
	require.Equal(t, WarnLevel, lvl)
	_, err = ParseLevel("loud")
	require.NotNil(t, err)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "action", "table.fetch")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "action=table.fetch")
	require.Equal(t, slog.LevelDebug, ToSlog(DebugLevel))
	require.True(t, ToSlog(TraceLevel) < slog.LevelDebug)
}
