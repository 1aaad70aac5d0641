package stats

import (
	"sort"
	"sync"
	"time"
)

const statisticRollingWindows = 5

// SessionStatistics contains statistics about the actions invoked by a session
type SessionStatistics struct {
	lock                     sync.Mutex
	startTime                time.Time
	calls                    map[string]int64
	failures                 map[string]int64
	totalRuntime             map[string]time.Duration
	recentCallRuntimes       []time.Duration // for rolling average of recent call times
	recentCallRuntimesHead   int
	recentCallRuntimesFilled int
}

// New starts statistics tracking
func New() *SessionStatistics {
	return &SessionStatistics{
		startTime:          time.Now(),
		calls:              make(map[string]int64),
		failures:           make(map[string]int64),
		totalRuntime:       make(map[string]time.Duration),
		recentCallRuntimes: make([]time.Duration, statisticRollingWindows),
	}
}

// Track returns a function which records the completion of a call to action
func (ss *SessionStatistics) Track(action string) func(failed bool) {
	start := time.Now()
	return func(failed bool) {
		elapsed := time.Since(start)
		ss.lock.Lock()
		defer ss.lock.Unlock()
		ss.calls[action]++
		if failed {
			ss.failures[action]++
		}
		ss.totalRuntime[action] += elapsed
		ss.recentCallRuntimes[ss.recentCallRuntimesHead] = elapsed
		ss.recentCallRuntimesHead = (ss.recentCallRuntimesHead + 1) % len(ss.recentCallRuntimes)
		if ss.recentCallRuntimesFilled < len(ss.recentCallRuntimes) {
			ss.recentCallRuntimesFilled++
		}
	}
}

// GetStartTime returns the creation time of the session
func (ss *SessionStatistics) GetStartTime() time.Time {
	return ss.startTime
}

// GetUptime returns the time elapsed since the session was created
func (ss *SessionStatistics) GetUptime() time.Duration {
	return time.Since(ss.startTime)
}

// GetNumCalls returns the number of completed calls, counted by action
func (ss *SessionStatistics) GetNumCalls() map[string]int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return copyCounts(ss.calls)
}

// GetNumFailures returns the number of failed calls, counted by action
func (ss *SessionStatistics) GetNumFailures() map[string]int64 {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return copyCounts(ss.failures)
}

// GetActionRuntimes returns the total time spent in each action
func (ss *SessionStatistics) GetActionRuntimes() map[string]time.Duration {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	out := make(map[string]time.Duration, len(ss.totalRuntime))
	for k, v := range ss.totalRuntime {
		out[k] = v
	}
	return out
}

// GetRecentCallTime returns a rolling average of recent call times
func (ss *SessionStatistics) GetRecentCallTime() time.Duration {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.recentCallRuntimesFilled == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ss.recentCallRuntimes {
		total += d
	}
	return total / time.Duration(ss.recentCallRuntimesFilled)
}

// GetActions returns the sorted names of all actions called so far
func (ss *SessionStatistics) GetActions() []string {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	out := make([]string, 0, len(ss.calls))
	for k := range ss.calls {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
