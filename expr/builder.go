package expr

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-sif/castable/errors"
	"github.com/valyala/fasttemplate"
)

// IDGenerator produces identifiers which are unique for the lifetime of a session
type IDGenerator interface {
	NextID() string
}

// Expression is implemented by deferred columns. ref is the reference to the
// column's value, names are the computed variables the column relies on and
// code holds the statements defining them, in dependency order.
type Expression interface {
	Expression() (ref string, names []string, code []string)
}

// Fragment is a compiled computed column
type Fragment struct {
	// Output is the generated variable holding the result
	Output string
	// Names lists Output followed by every auxiliary variable
	Names []string
	// Code lists the statements, in dependency order
	Code []string
}

// Builder compiles one scalar transformation of a column.
//
// The template refers to the column being transformed as {value} and to the
// output variable as {out}. A template without {out} is an expression and is
// assigned to the output. Any other {tag} is filled from Arg.
type Builder struct {
	gen        IDGenerator
	funcName   string
	template   string
	argNames   []string
	args       map[string]interface{}
	quote      bool
	addLength  bool
	dtype      string
	extraNames []string
	extraCode  []string
	output     string
}

// NewBuilder creates a Builder for the function funcName
func NewBuilder(gen IDGenerator, funcName, template string) *Builder {
	return &Builder{
		gen:      gen,
		funcName: funcName,
		template: template,
		args:     make(map[string]interface{}),
		quote:    true,
	}
}

// Arg binds an operand. Values may be scalars, slices or Expressions.
func (b *Builder) Arg(name string, value interface{}) *Builder {
	if _, ok := b.args[name]; !ok {
		b.argNames = append(b.argNames, name)
	}
	b.args[name] = value
	return b
}

// NoQuotes embeds string operands verbatim, for patterns interpolated into regular expressions
func (b *Builder) NoQuotes() *Builder {
	b.quote = false
	return b
}

// AddLength declares the output as an unbounded character variable
func (b *Builder) AddLength() *Builder {
	b.addLength = true
	return b
}

// Dtype declares the output variable with an explicit type
func (b *Builder) Dtype(dtype string) *Builder {
	b.dtype = dtype
	return b
}

// Extra adds auxiliary variables and statements to the fragment
func (b *Builder) Extra(names []string, code []string) *Builder {
	b.extraNames = append(b.extraNames, names...)
	b.extraCode = append(b.extraCode, code...)
	return b
}

// Named fixes the output variable name instead of generating one
func (b *Builder) Named(output string) *Builder {
	b.output = output
	return b
}

// Output returns the output variable name, generating it on first use
func (b *Builder) Output() string {
	if b.output == "" {
		b.output = fmt.Sprintf("_%s_%s_", b.funcName, b.gen.NextID())
	}
	return b.output
}

// Build compiles the transformation applied to value
func (b *Builder) Build(value Expression) (*Fragment, error) {
	out := b.Output()
	ref, vnames, vcode := value.Expression()

	names := newTextSet(true)
	names.add(out)
	names.add(vnames...)
	names.add(b.extraNames...)
	code := newTextSet(false)
	code.add(vcode...)
	code.add(b.extraCode...)

	tags := map[string]string{
		"value": ref,
		"out":   Nlit(out),
	}
	for _, k := range b.argNames {
		rendered, err := b.render(b.args[k], names, code)
		if err != nil {
			return nil, errors.NewParameterError("operand %s: %s", k, err)
		}
		tags[k] = rendered
	}

	tmpl := b.template
	if !strings.Contains(tmpl, "{out}") {
		tmpl = "{out} = " + tmpl
	}
	stmt, err := fasttemplate.ExecuteFuncStringWithErr(tmpl, "{", "}", func(w io.Writer, tag string) (int, error) {
		v, ok := tags[tag]
		if !ok {
			return 0, errors.NewParameterError("unknown placeholder {%s} in %q", tag, b.template)
		}
		return w.Write([]byte(v))
	})
	if err != nil {
		return nil, err
	}

	switch {
	case b.dtype != "":
		code.add(fmt.Sprintf("length %s %s;", Nlit(out), b.dtype))
	case b.addLength:
		code.add(fmt.Sprintf("length %s varchar(*);", Nlit(out)))
	}
	code.add(Statement(stmt))

	return &Fragment{Output: out, Names: names.items, Code: code.items}, nil
}

func (b *Builder) render(v interface{}, names, code *textSet) (string, error) {
	if e, ok := v.(Expression); ok {
		ref, n, c := e.Expression()
		names.add(n...)
		code.add(c...)
		return ref, nil
	}
	rv := reflect.ValueOf(v)
	if v != nil && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		items := make([]string, rv.Len())
		for i := range items {
			item := rv.Index(i).Interface()
			if e, ok := item.(Expression); ok {
				ref, n, c := e.Expression()
				names.add(n...)
				code.add(c...)
				items[i] = ref
				continue
			}
			lit, err := Literal(item, true)
			if err != nil {
				return "", err
			}
			items[i] = lit
		}
		return "(" + strings.Join(items, ", ") + ")", nil
	}
	return Literal(v, b.quote)
}

// textSet is an insertion-ordered set of strings
type textSet struct {
	fold  bool
	seen  map[string]bool
	items []string
}

func newTextSet(fold bool) *textSet {
	return &textSet{fold: fold, seen: make(map[string]bool)}
}

func (s *textSet) add(items ...string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k := item
		if s.fold {
			k = strings.ToLower(item)
		}
		if s.seen[k] {
			continue
		}
		s.seen[k] = true
		s.items = append(s.items, item)
	}
}
