package castable

import "time"

// Statistics facilitates the retrieval of statistics about the actions a
// Session has invoked
type Statistics interface {
	// GetStartTime returns the creation time of the session
	GetStartTime() time.Time
	// GetUptime returns the time elapsed since the session was created
	GetUptime() time.Duration
	// GetNumCalls returns the number of completed calls, counted by action
	GetNumCalls() map[string]int64
	// GetNumFailures returns the number of calls which returned an error or
	// an error disposition, counted by action
	GetNumFailures() map[string]int64
	// GetActionRuntimes returns the total time spent in each action
	GetActionRuntimes() map[string]time.Duration
	// GetRecentCallTime returns a rolling average of recent call times
	GetRecentCallTime() time.Duration
	// GetActions returns the sorted names of all actions called so far
	GetActions() []string
}
