package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrack(t *testing.T) {
	ss := New()
	require.Equal(t, time.Duration(0), ss.GetRecentCallTime())

	ss.Track("table.fetch")(false)
	ss.Track("table.fetch")(true)
	ss.Track("simple.numRows")(false)

	require.Equal(t, map[string]int64{"table.fetch": 2, "simple.numRows": 1}, ss.GetNumCalls())
	require.Equal(t, map[string]int64{"table.fetch": 1}, ss.GetNumFailures())
	require.Equal(t, []string{"simple.numRows", "table.fetch"}, ss.GetActions())
	require.Len(t, ss.GetActionRuntimes(), 2)
	require.False(t, ss.GetStartTime().After(time.Now()))
}

func TestRollingWindowWraps(t *testing.T) {
	ss := New()
	for i := 0; i < 2*statisticRollingWindows+1; i++ {
		ss.Track("a")(false)
	}
	require.Equal(t, statisticRollingWindows, ss.recentCallRuntimesFilled)
	require.Equal(t, 1, ss.recentCallRuntimesHead)
	require.Equal(t, int64(2*statisticRollingWindows+1), ss.GetNumCalls()["a"])
}
