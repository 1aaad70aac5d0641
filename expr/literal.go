// Package expr builds the scalar statements that define computed columns on
// the server. A Builder compiles one transformation of a column into a
// Fragment: a generated output variable, the auxiliary variables it depends
// on, and the ordered statements that compute them.
package expr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var plainName = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// Nlit renders a column name as a name literal. Names which are valid
// identifiers are returned unchanged.
func Nlit(name string) string {
	if plainName.MatchString(name) {
		return name
	}
	return `"` + Escape(name) + `"n`
}

// Escape doubles embedded double quotes
func Escape(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Quote renders s as a quoted string literal
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}

// Literal renders a Go value as a scalar literal. Strings are quoted unless
// quote is false.
func Literal(v interface{}, quote bool) (string, error) {
	switch tv := v.(type) {
	case nil:
		return ".", nil
	case string:
		if quote {
			return Quote(tv), nil
		}
		return tv, nil
	case []byte:
		return Literal(string(tv), quote)
	case bool:
		if tv {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(tv), nil
	case int32:
		return strconv.FormatInt(int64(tv), 10), nil
	case int64:
		return strconv.FormatInt(tv, 10), nil
	case float32:
		return Literal(float64(tv), quote)
	case float64:
		if math.IsNaN(tv) {
			return ".", nil
		}
		return strconv.FormatFloat(tv, 'g', -1, 64), nil
	case time.Time:
		return fmt.Sprintf("'%s'dt", strings.ToUpper(tv.Format("02Jan2006:15:04:05"))), nil
	case fmt.Stringer:
		return Literal(tv.String(), quote)
	}
	return "", fmt.Errorf("unsupported literal type %T", v)
}

// Statement terminates code with a semicolon when it lacks one
func Statement(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.HasSuffix(code, ";") {
		return code
	}
	return code + ";"
}
