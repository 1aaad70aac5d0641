package castable

import (
	"context"

	"github.com/go-sif/castable/params"
)

// Transport invokes actions on the server. Implementations handle
// networking, authentication and retries.
type Transport interface {
	// Invoke runs a qualified action, such as "table.fetch", with arguments
	Invoke(ctx context.Context, action string, args *params.Bundle) (*Result, error)
	// Reflect describes the parameters of a qualified action
	Reflect(ctx context.Context, action string) (*ActionInfo, error)
	// ListActions returns action names keyed by action set
	ListActions(ctx context.Context) (map[string][]string, error)
	// Close releases the connection to the server
	Close() error
}

// ActionInfo describes an action reported by server reflection
type ActionInfo struct {
	Name        string
	Description string
	Params      []ParamInfo
}

// ParamInfo describes one action parameter
type ParamInfo struct {
	Name        string
	Type        string
	Description string
	Default     interface{}
	Required    bool
	// ParmList holds the sub-parameters of a dictionary parameter
	ParmList []ParamInfo
}

// Param returns the parameter with the given name
func (a *ActionInfo) Param(name string) (ParamInfo, bool) {
	fk := params.FoldKey(name)
	for _, p := range a.Params {
		if params.FoldKey(p.Name) == fk {
			return p, true
		}
	}
	return ParamInfo{}, false
}
