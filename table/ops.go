package table

import (
	"math"

	"github.com/go-sif/castable/errors"
)

// Add adds other to the column. Character columns are concatenated.
func (c *Column) Add(other interface{}) (*Column, error) {
	if IsCharacter(c.knownDtype()) {
		return c.Compute("add", "trim({value}) || trim({other})", Arg("other", other), AddLength())
	}
	return c.Compute("add", "({value}) + ({other})", Arg("other", other))
}

// RAdd computes other + column
func (c *Column) RAdd(other interface{}) (*Column, error) {
	if IsCharacter(c.knownDtype()) {
		return c.Compute("radd", "trim({other}) || trim({value})", Arg("other", other), AddLength())
	}
	return c.Compute("radd", "({other}) + ({value})", Arg("other", other))
}

// Sub subtracts other from the column
func (c *Column) Sub(other interface{}) (*Column, error) {
	return c.numeric("sub", "({value}) - ({other})", Arg("other", other))
}

// RSub computes other - column
func (c *Column) RSub(other interface{}) (*Column, error) {
	return c.numeric("rsub", "({other}) - ({value})", Arg("other", other))
}

// Mul multiplies the column by other. Character columns are repeated other times.
func (c *Column) Mul(other interface{}) (*Column, error) {
	if IsCharacter(c.knownDtype()) {
		return c.Compute("mul", "repeat(trim({value}), ({other}) - 1)", Arg("other", other), AddLength())
	}
	return c.Compute("mul", "({value}) * ({other})", Arg("other", other))
}

// RMul computes other * column
func (c *Column) RMul(other interface{}) (*Column, error) {
	if IsCharacter(c.knownDtype()) {
		return c.Compute("rmul", "repeat(trim({value}), ({other}) - 1)", Arg("other", other), AddLength())
	}
	return c.Compute("rmul", "({other}) * ({value})", Arg("other", other))
}

// Div divides the column by other
func (c *Column) Div(other interface{}) (*Column, error) {
	return c.numeric("div", "({value}) / ({other})", Arg("other", other))
}

// RDiv computes other / column
func (c *Column) RDiv(other interface{}) (*Column, error) {
	return c.numeric("rdiv", "({other}) / ({value})", Arg("other", other))
}

// TrueDiv is Div
func (c *Column) TrueDiv(other interface{}) (*Column, error) {
	return c.numeric("truediv", "({value}) / ({other})", Arg("other", other))
}

// RTrueDiv is RDiv
func (c *Column) RTrueDiv(other interface{}) (*Column, error) {
	return c.numeric("rtruediv", "({other}) / ({value})", Arg("other", other))
}

// FloorDiv divides and rounds down
func (c *Column) FloorDiv(other interface{}) (*Column, error) {
	return c.numeric("floordiv", "floor(({value}) / ({other}))", Arg("other", other))
}

// RFloorDiv computes floor(other / column)
func (c *Column) RFloorDiv(other interface{}) (*Column, error) {
	return c.numeric("rfloordiv", "floor(({other}) / ({value}))", Arg("other", other))
}

// Mod computes the remainder of dividing by other
func (c *Column) Mod(other interface{}) (*Column, error) {
	return c.numeric("mod", "mod({value}, {other})", Arg("other", other))
}

// RMod computes the remainder of dividing other by the column
func (c *Column) RMod(other interface{}) (*Column, error) {
	return c.numeric("rmod", "mod({other}, {value})", Arg("other", other))
}

// Pow raises the column to the power other
func (c *Column) Pow(other interface{}) (*Column, error) {
	return c.numeric("pow", "({value}) ** ({other})", Arg("other", other))
}

// RPow raises other to the power of the column
func (c *Column) RPow(other interface{}) (*Column, error) {
	return c.numeric("rpow", "({other}) ** ({value})", Arg("other", other))
}

func (c *Column) Neg() (*Column, error) {
	return c.numeric("neg", "-({value})")
}

func (c *Column) Pos() (*Column, error) {
	return c.numeric("pos", "+({value})")
}

func (c *Column) Abs() (*Column, error) {
	return c.numeric("abs", "abs({value})")
}

func (c *Column) Floor() (*Column, error) {
	return c.numeric("floor", "floor({value})")
}

func (c *Column) Ceil() (*Column, error) {
	return c.numeric("ceil", "ceil({value})")
}

// Trunc drops the fractional part
func (c *Column) Trunc() (*Column, error) {
	return c.numeric("trunc", "int({value})")
}

// Round rounds to the given number of decimal places
func (c *Column) Round(decimals int) (*Column, error) {
	return c.numeric("round", "round({value}, {unit})", Arg("unit", math.Pow10(-decimals)))
}

// Invert negates a boolean column
func (c *Column) Invert() (*Column, error) {
	return c.Compute("invert", "not ({value})")
}

func (c *Column) compare(op, sym string, other interface{}) (*Column, error) {
	return c.Compute(op, "({value}) "+sym+" ({other})", Arg("other", other))
}

func (c *Column) Lt(other interface{}) (*Column, error) { return c.compare("lt", "<", other) }
func (c *Column) Gt(other interface{}) (*Column, error) { return c.compare("gt", ">", other) }
func (c *Column) Le(other interface{}) (*Column, error) { return c.compare("le", "<=", other) }
func (c *Column) Ge(other interface{}) (*Column, error) { return c.compare("ge", ">=", other) }
func (c *Column) Eq(other interface{}) (*Column, error) { return c.compare("eq", "=", other) }
func (c *Column) Ne(other interface{}) (*Column, error) { return c.compare("ne", "^=", other) }

// And combines two boolean columns
func (c *Column) And(other interface{}) (*Column, error) {
	return c.compare("and", "and", other)
}

// Or combines two boolean columns
func (c *Column) Or(other interface{}) (*Column, error) {
	return c.compare("or", "or", other)
}

// IsIn tests membership in values
func (c *Column) IsIn(values ...interface{}) (*Column, error) {
	if len(values) == 0 {
		return nil, errors.NewParameterError("IsIn requires at least one value")
	}
	return c.Compute("isin", "({value}) in {values}", Arg("values", values))
}

// Between tests whether values lie between left and right
func (c *Column) Between(left, right interface{}, inclusive bool) (*Column, error) {
	tmpl := "(({value}) > ({left})) and (({value}) < ({right}))"
	if inclusive {
		tmpl = "(({value}) >= ({left})) and (({value}) <= ({right}))"
	}
	return c.Compute("between", tmpl, Arg("left", left), Arg("right", right))
}

// Clip limits values to [lower, upper]. A nil bound is not applied.
// Missing values stay missing.
func (c *Column) Clip(lower, upper interface{}) (*Column, error) {
	switch {
	case lower == nil && upper == nil:
		return c.Copy(), nil
	case lower == nil:
		return c.ClipUpper(upper)
	case upper == nil:
		return c.ClipLower(lower)
	}
	return c.numeric("clip", "ifn(missing({value}), ., max(min({value}, {upper}), {lower}))",
		Arg("lower", lower), Arg("upper", upper))
}

// ClipLower raises values below lower
func (c *Column) ClipLower(lower interface{}) (*Column, error) {
	return c.numeric("clip_lower", "ifn(missing({value}), ., max({value}, {lower}))", Arg("lower", lower))
}

// ClipUpper lowers values above upper
func (c *Column) ClipUpper(upper interface{}) (*Column, error) {
	return c.numeric("clip_upper", "ifn(missing({value}), ., min({value}, {upper}))", Arg("upper", upper))
}

// IsNull tests for missing values
func (c *Column) IsNull() (*Column, error) {
	return c.Compute("isnull", "missing({value})")
}

// NotNull tests for present values
func (c *Column) NotNull() (*Column, error) {
	return c.Compute("notnull", "not missing({value})")
}
