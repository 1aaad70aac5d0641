package params

import (
	"fmt"
	"strings"
)

// Sort orders understood by the remote fetch action
const (
	Ascending  = "ASCENDING"
	Descending = "DESCENDING"
)

// FormattedRaw requests sorting on raw (unformatted) values
const FormattedRaw = "RAW"

// SortSpec describes one key of a pending sort order
type SortSpec struct {
	Name      string `json:"name"`
	Order     string `json:"order"`
	Formatted string `json:"formatted"`
}

// NewSortSpec builds a SortSpec sorting raw values of name
func NewSortSpec(name string, ascending bool) SortSpec {
	order := Ascending
	if !ascending {
		order = Descending
	}
	return SortSpec{Name: name, Order: order, Formatted: FormattedRaw}
}

// Ascending reports whether the key sorts in ascending order
func (s SortSpec) Ascending() bool {
	return !strings.EqualFold(s.Order, Descending)
}

// String renders the key as "name ORDER"
func (s SortSpec) String() string {
	return fmt.Sprintf("%s %s", s.Name, s.Order)
}
