package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/expr"
)

// Column is a Table restricted to one column. Operators on a Column build
// computed columns and never contact the server.
type Column struct {
	*Table
	dtype string
}

// ToColumn returns a handle on one column of t. The name is not validated.
func (t *Table) ToColumn(name string) *Column {
	out := t.Copy()
	out.params.Set(paramVarlist, []string{name})
	return &Column{Table: out}
}

// Name returns the column name
func (c *Column) Name() string {
	if v := c.Varlist(); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Dtype returns the cached data type, or "" when it is not known yet
func (c *Column) Dtype() string {
	return c.dtype
}

// knownDtype returns the data type from the column or from column metadata
// the session already holds, or "" when neither knows it
func (c *Column) knownDtype() string {
	if c.dtype == "" {
		if dtype, ok := c.cachedDtype(c.Name()); ok {
			c.dtype = dtype
		}
	}
	return c.dtype
}

// WithDtype returns a copy of the column with a known data type
func (c *Column) WithDtype(dtype string) *Column {
	out := c.Copy()
	out.dtype = dtype
	return out
}

// Copy returns an independent column handle
func (c *Column) Copy() *Column {
	return &Column{Table: c.Table.Copy(), dtype: c.dtype}
}

// Expression returns the reference to the column value, and the computed
// variables and statements it depends on
func (c *Column) Expression() (string, []string, []string) {
	return expr.Nlit(c.Name()), c.Compvars(), c.Comppgm()
}

// String renders the column reference
func (c *Column) String() string {
	return fmt.Sprintf("Column(%q, %s)", c.Name(), c.Table.String())
}

// ResolveDtype returns the data type, fetching column metadata when it is not cached
func (c *Column) ResolveDtype(ctx context.Context) (string, error) {
	if c.dtype != "" {
		return c.dtype, nil
	}
	metas, err := c.Dtypes(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range metas {
		if strings.EqualFold(m.Name, c.Name()) {
			c.dtype = m.Type
			return c.dtype, nil
		}
	}
	return "", errors.KeyNotFoundError{Key: c.Name()}
}

// computeSpec collects the options of one computed column
type computeSpec struct {
	b     *expr.Builder
	dtype string
}

// ComputeOption configures Compute
type ComputeOption func(*computeSpec)

// Arg binds a template operand. Columns are spliced in with their dependencies.
func Arg(name string, value interface{}) ComputeOption {
	return func(s *computeSpec) { s.b.Arg(name, value) }
}

// NoQuotes embeds string operands verbatim
func NoQuotes() ComputeOption {
	return func(s *computeSpec) { s.b.NoQuotes() }
}

// AddLength declares the result as a character column of unbounded length
func AddLength() ComputeOption {
	return func(s *computeSpec) {
		s.b.AddLength()
		s.dtype = "varchar"
	}
}

// OutputType declares the result type, such as "double" or "varchar(20)"
func OutputType(dtype string) ComputeOption {
	return func(s *computeSpec) {
		s.b.Dtype(dtype)
		if i := strings.Index(dtype, "("); i > 0 {
			dtype = dtype[:i]
		}
		s.dtype = strings.ToLower(strings.TrimSpace(dtype))
	}
}

// Named fixes the name of the output variable
func Named(output string) ComputeOption {
	return func(s *computeSpec) { s.b.Named(output) }
}

// Compute applies a template to the column. The template refers to the
// column as {value}; a template without {out} is an expression assigned to
// a generated output variable. Applying a Named computation which the column
// already carries only selects its output.
func (c *Column) Compute(funcName, template string, opts ...ComputeOption) (*Column, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	spec := &computeSpec{b: expr.NewBuilder(sess, funcName, template), dtype: "double"}
	for _, o := range opts {
		o(spec)
	}
	out := c.Copy()
	out.dtype = spec.dtype
	if name := spec.b.Output(); containsFold(c.Compvars(), name) {
		out.params.Set(paramVarlist, []string{name})
		return out, nil
	}
	frag, err := spec.b.Build(c)
	if err != nil {
		return nil, err
	}
	out.params.Set(paramVarlist, []string{frag.Output})
	out.AppendComputedColumns(frag.Names, frag.Code)
	return out, nil
}

func (c *Column) numericOnly(op string) error {
	if dtype := c.knownDtype(); IsCharacter(dtype) {
		return errors.IncompatibleTypeError{Op: op, Dtype: dtype}
	}
	return nil
}

func (c *Column) numeric(op, template string, opts ...ComputeOption) (*Column, error) {
	if err := c.numericOnly(op); err != nil {
		return nil, err
	}
	return c.Compute(op, template, opts...)
}
