package castable

import (
	"strings"

	"github.com/go-sif/castable/frame"
)

// Severity levels reported by the server for an action
const (
	SeverityNormal = iota
	SeverityWarning
	SeverityError
)

// ByGroupValue is the value of one by-group variable for a grouped sub-result
type ByGroupValue struct {
	Name  string
	Value interface{}
}

// ResultTable is one tabular sub-result of an action
type ResultTable struct {
	// Key is the result key, such as "ByGroup2.Summary"
	Key string
	// Name is the key without any by-group prefix
	Name string
	// ByGroups holds the by-group values which produced this sub-result
	ByGroups []ByGroupValue
	// Attrs holds table attributes such as its title
	Attrs map[string]interface{}
	Frame *frame.Frame
}

// Result is the response of an action
type Result struct {
	Severity   int
	Reason     string
	Status     string
	StatusCode int
	Messages   []string
	Tables     []*ResultTable
	// Values holds non-tabular results, keyed by name
	Values map[string]interface{}
}

// Table returns the sub-result with the given key, compared case-insensitively
func (r *Result) Table(key string) *ResultTable {
	for _, t := range r.Tables {
		if strings.EqualFold(t.Key, key) {
			return t
		}
	}
	return nil
}

// Failed reports whether the action completed with an error severity
func (r *Result) Failed() bool {
	return r.Severity >= SeverityError
}

// AddTable appends a sub-result, deriving its name from the key
func (r *Result) AddTable(key string, f *frame.Frame, byGroups ...ByGroupValue) *ResultTable {
	name := key
	if i := strings.LastIndex(key, "."); i >= 0 && strings.HasPrefix(strings.ToLower(key), "bygroup") {
		name = key[i+1:]
	}
	t := &ResultTable{Key: key, Name: name, ByGroups: byGroups, Frame: f}
	r.Tables = append(r.Tables, t)
	return t
}
