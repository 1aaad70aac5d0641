package rest

import (
	"fmt"
	"strings"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/frame"
	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
)

// decodeResult converts a response document. Tables are recognized by their
// "_ctb" marker; any other result becomes a value.
func decodeResult(doc gjson.Result) (*castable.Result, error) {
	res := &castable.Result{
		Severity:   int(doc.Get("disposition.severity").Int()),
		Reason:     doc.Get("disposition.reason").String(),
		Status:     doc.Get("disposition.formattedStatus").String(),
		StatusCode: int(doc.Get("disposition.statusCode").Int()),
	}
	for _, entry := range doc.Get("logEntries").Array() {
		if msg := entry.Get("message").String(); msg != "" {
			res.Messages = append(res.Messages, msg)
		}
	}
	var errs *multierror.Error
	doc.Get("results").ForEach(func(key, value gjson.Result) bool {
		if !value.Get("_ctb").Bool() {
			if res.Values == nil {
				res.Values = make(map[string]interface{})
			}
			res.Values[key.String()] = value.Value()
			return true
		}
		f, attrs, err := decodeTable(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("table %s: %w", key.String(), err))
			return true
		}
		t := res.AddTable(key.String(), f, byGroups(attrs)...)
		t.Attrs = attrs
		return true
	})
	return res, errs.ErrorOrNil()
}

// decodeTable reads the schema and rows of a table result
func decodeTable(v gjson.Result) (*frame.Frame, map[string]interface{}, error) {
	schema := v.Get("schema").Array()
	names := make([]string, len(schema))
	types := make([]string, len(schema))
	for i, c := range schema {
		names[i] = c.Get("name").String()
		types[i] = strings.ToLower(c.Get("type").String())
	}
	f := frame.New(names)
	var errs *multierror.Error
	for r, row := range v.Get("rows").Array() {
		cells := row.Array()
		if len(cells) != len(names) {
			errs = multierror.Append(errs, fmt.Errorf("row %d has %d values, the schema has %d columns", r, len(cells), len(names)))
			continue
		}
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = cellValue(c, types[i])
		}
		if err := f.AppendRow([]interface{}{}, values); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	var attrs map[string]interface{}
	if a, ok := v.Get("attributes").Value().(map[string]interface{}); ok {
		attrs = a
		// attributes are typed as {"type": ..., "value": ...}
		for k, raw := range attrs {
			if typed, ok := raw.(map[string]interface{}); ok {
				if value, ok := typed["value"]; ok {
					attrs[k] = value
				}
			}
		}
	}
	return f, attrs, errs.ErrorOrNil()
}

// cellValue converts one cell. Integer columns keep integer values and
// null is missing.
func cellValue(c gjson.Result, dtype string) interface{} {
	switch c.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		if strings.HasPrefix(dtype, "int") {
			return c.Int()
		}
		return c.Float()
	case gjson.String:
		return c.String()
	case gjson.True, gjson.False:
		return c.Bool()
	}
	return c.Value()
}

// byGroups reads the ByVar attributes describing a by-group sub-result
func byGroups(attrs map[string]interface{}) []castable.ByGroupValue {
	var out []castable.ByGroupValue
	for i := 1; ; i++ {
		name, ok := attrs[fmt.Sprintf("ByVar%d", i)]
		if !ok {
			return out
		}
		out = append(out, castable.ByGroupValue{
			Name:  fmt.Sprint(name),
			Value: attrs[fmt.Sprintf("ByVar%dValue", i)],
		})
	}
}

// remoteError reports a response whose disposition has error severity
func remoteError(action string, doc gjson.Result) error {
	severity := int(doc.Get("disposition.severity").Int())
	if severity < castable.SeverityError {
		return nil
	}
	return errors.RemoteOperationError{
		Action:     action,
		Status:     doc.Get("disposition.formattedStatus").String(),
		Reason:     doc.Get("disposition.reason").String(),
		Severity:   severity,
		StatusCode: int(doc.Get("disposition.statusCode").Int()),
	}
}

// decodeActionInfo finds the description of action in builtins.reflect results
func decodeActionInfo(results gjson.Result, action string) (*castable.ActionInfo, error) {
	var found gjson.Result
	short := action
	if i := strings.LastIndex(action, "."); i >= 0 {
		short = action[i+1:]
	}
	if results.Get("actions").Exists() {
		results = gjson.Parse("[" + results.Raw + "]")
	}
	results.ForEach(func(_, set gjson.Result) bool {
		set.Get("actions").ForEach(func(_, a gjson.Result) bool {
			if strings.EqualFold(a.Get("name").String(), short) {
				found = a
				return false
			}
			return true
		})
		return !found.Exists()
	})
	if !found.Exists() {
		return nil, errors.KeyNotFoundError{Key: action}
	}
	return &castable.ActionInfo{
		Name:        action,
		Description: found.Get("desc").String(),
		Params:      decodeParams(found.Get("params")),
	}, nil
}

func decodeParams(list gjson.Result) []castable.ParamInfo {
	var out []castable.ParamInfo
	for _, p := range list.Array() {
		out = append(out, castable.ParamInfo{
			Name:        p.Get("name").String(),
			Type:        p.Get("parmType").String(),
			Description: p.Get("desc").String(),
			Default:     p.Get("default").Value(),
			Required:    p.Get("isRequired").Bool(),
			ParmList:    decodeParams(p.Get("parmList")),
		})
	}
	return out
}
