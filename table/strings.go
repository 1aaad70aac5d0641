package table

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-sif/castable/errors"
)

// StringMethods builds computed columns from a character column
type StringMethods struct {
	col *Column
}

// RegexFlags modify pattern matching in StringMethods
type RegexFlags int

const (
	IgnoreCase RegexFlags = 1 << iota
	Multiline
	DotAll
	Verbose
)

func (f RegexFlags) String() string {
	out := ""
	if f&IgnoreCase != 0 {
		out += "i"
	}
	if f&Multiline != 0 {
		out += "m"
	}
	if f&DotAll != 0 {
		out += "s"
	}
	if f&Verbose != 0 {
		out += "x"
	}
	return out
}

// Str returns the string methods of a character column. It fails for
// numeric columns and for columns whose type is not known.
func (c *Column) Str() (*StringMethods, error) {
	if dtype := c.knownDtype(); !IsCharacter(dtype) {
		return nil, errors.IncompatibleTypeError{Op: "str", Dtype: dtype}
	}
	return &StringMethods{col: c}, nil
}

var generatedName = regexp.MustCompile(`^_\w+_[A-Za-z0-9]+_$`)

// checkPattern rejects a literal pattern which is not a valid regular
// expression. Column patterns are only known to the server.
func checkPattern(pat interface{}) error {
	p, ok := pat.(string)
	if !ok {
		return nil
	}
	if _, err := regexp.Compile(p); err != nil {
		return errors.NewParameterError("invalid pattern %q: %v", p, err)
	}
	return nil
}

// trimmed wraps {value} in trim() unless the column is a generated variable
func (s *StringMethods) trimmed() string {
	if generatedName.MatchString(s.col.Name()) {
		return "{value}"
	}
	return "trim({value})"
}

func (s *StringMethods) Capitalize() (*Column, error) {
	return s.col.Compute("capitalize", "upcase(substr({value}, 1, 1)) || lowcase(substr({value}, 2))", AddLength())
}

// Contains tests whether pat occurs in the value. With regex set, pat is a
// regular expression.
func (s *StringMethods) Contains(pat interface{}, caseSensitive bool, flags RegexFlags, regex bool) (*Column, error) {
	if !caseSensitive {
		flags |= IgnoreCase
	}
	if regex {
		if err := checkPattern(pat); err != nil {
			return nil, err
		}
		if _, ok := pat.(*Column); ok {
			return s.col.Compute("regex", "prxmatch('/' || trim({pat}) || '/"+flags.String()+"', {value}) > 0", Arg("pat", pat))
		}
		return s.col.Compute("regex", "prxmatch('/{pat}/{flags}', {value}) > 0",
			Arg("pat", pat), Arg("flags", flags.String()), NoQuotes())
	}
	if caseSensitive {
		return s.col.Compute("contains", "index({value}, {pat}) > 0", Arg("pat", pat))
	}
	return s.col.Compute("icontains", "index(lowcase({value}), lowcase({pat})) > 0", Arg("pat", pat))
}

// Count counts occurrences of pat
func (s *StringMethods) Count(pat interface{}, flags RegexFlags) (*Column, error) {
	if flags&IgnoreCase != 0 {
		return s.col.Compute("count", "count(lowcase({value}), lowcase({pat}))", Arg("pat", pat))
	}
	return s.col.Compute("count", "count({value}, {pat})", Arg("pat", pat))
}

// EndsWith tests whether the value ends with the pattern pat
func (s *StringMethods) EndsWith(pat string, caseSensitive bool) (*Column, error) {
	if err := checkPattern(pat); err != nil {
		return nil, err
	}
	flags := RegexFlags(0)
	if !caseSensitive {
		flags = IgnoreCase
	}
	return s.col.Compute("endswith", `prxmatch('/{pat}\s*$/{flags}', {value}) > 0`,
		Arg("pat", pat), Arg("flags", flags.String()), NoQuotes())
}

// StartsWith tests whether the value starts with the pattern pat
func (s *StringMethods) StartsWith(pat string, caseSensitive bool) (*Column, error) {
	if err := checkPattern(pat); err != nil {
		return nil, err
	}
	flags := RegexFlags(0)
	if !caseSensitive {
		flags = IgnoreCase
	}
	return s.col.Compute("startswith", "prxmatch('/^{pat}/{flags}', {value}) > 0",
		Arg("pat", pat), Arg("flags", flags.String()), NoQuotes())
}

// Find returns the lowest 0-based position of sub at or after start, or -1.
// A negative end searches the whole value.
func (s *StringMethods) Find(sub interface{}, start, end int) (*Column, error) {
	if end < 0 {
		return s.col.Compute("find", "find({value}, {sub}, {start}) - 1", Arg("sub", sub), Arg("start", start+1))
	}
	return s.col.Compute("find", "find(substr({value}, 1, {end}), {sub}, {start}) - 1",
		Arg("sub", sub), Arg("start", start+1), Arg("end", end))
}

// RFind returns the highest 0-based position of sub, or -1
func (s *StringMethods) RFind(sub interface{}) (*Column, error) {
	return s.col.Compute("rfind", "find({value}, {sub}, -lengthn({value})-1) - 1", Arg("sub", sub))
}

// Index is like Find, but fails when any value lacks sub
func (s *StringMethods) Index(ctx context.Context, sub interface{}, start, end int) (*Column, error) {
	col, err := s.Find(sub, start, end)
	if err != nil {
		return nil, err
	}
	return col, requireFound(ctx, col)
}

// RIndex is like RFind, but fails when any value lacks sub
func (s *StringMethods) RIndex(ctx context.Context, sub interface{}) (*Column, error) {
	col, err := s.RFind(sub)
	if err != nil {
		return nil, err
	}
	return col, requireFound(ctx, col)
}

func requireFound(ctx context.Context, col *Column) error {
	neg, err := col.Lt(0)
	if err != nil {
		return err
	}
	n, err := col.Filter(neg).NumRows(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.NewParameterError("substring not found")
	}
	return nil
}

func (s *StringMethods) Len() (*Column, error) {
	return s.col.Compute("len", "lengthn({value})")
}

func (s *StringMethods) Lower() (*Column, error) {
	return s.col.Compute("lower", "lowcase({value})", AddLength())
}

func (s *StringMethods) Upper() (*Column, error) {
	return s.col.Compute("upper", "upcase({value})", AddLength())
}

func (s *StringMethods) Title() (*Column, error) {
	return s.col.Compute("title", "propcase({value})", AddLength())
}

// LStrip removes leading blanks
func (s *StringMethods) LStrip() (*Column, error) {
	return s.col.Compute("lstrip", "strip({value})", AddLength())
}

// RStrip removes trailing blanks
func (s *StringMethods) RStrip() (*Column, error) {
	return s.col.Compute("rstrip", "trimn({value})", AddLength())
}

// Strip removes leading and trailing blanks
func (s *StringMethods) Strip() (*Column, error) {
	return s.col.Compute("strip", "strip({value})", AddLength())
}

// Repeat repeats the value n times
func (s *StringMethods) Repeat(n interface{}) (*Column, error) {
	return s.col.Compute("repeat", "repeat("+s.trimmed()+", {repeats}-1)", Arg("repeats", n), AddLength())
}

// Replace substitutes repl for matches of the regular expression pat. n
// limits the number of replacements; -1 replaces all.
func (s *StringMethods) Replace(pat, repl interface{}, n int, caseSensitive bool, flags RegexFlags) (*Column, error) {
	if err := checkPattern(pat); err != nil {
		return nil, err
	}
	if !caseSensitive {
		flags |= IgnoreCase
	}
	_, patCol := pat.(*Column)
	_, replCol := repl.(*Column)
	var rgx string
	switch {
	case patCol && replCol:
		rgx = "prxchange('s/' || trim({pat}) || '/' || trim({repl}) || '/%s', {n}, {value})"
	case patCol:
		rgx = "prxchange('s/' || trim({pat}) || '/{repl}/%s', {n}, {value})"
	case replCol:
		rgx = "prxchange('s/{pat}/' || trim({repl}) || '/%s', {n}, {value})"
	default:
		rgx = "prxchange('s/{pat}/{repl}/%s', {n}, {value})"
	}
	return s.col.Compute("replace", fmt.Sprintf(rgx, flags.String()),
		Arg("pat", pat), Arg("repl", repl), Arg("n", n), NoQuotes(), AddLength())
}

// Slice extracts characters [start, stop). A negative stop runs to the end.
func (s *StringMethods) Slice(start, stop int) (*Column, error) {
	if stop < 0 {
		return s.col.Compute("slice", "substr({value}, {start})", Arg("start", start+1), AddLength())
	}
	return s.col.Compute("slice", "substr({value}, {start}, {stop}-{start})",
		Arg("start", start+1), Arg("stop", stop+1), AddLength())
}

func (s *StringMethods) IsAlnum() (*Column, error) {
	return s.col.Compute("isalnum", "notalnum({value}) < 1")
}

func (s *StringMethods) IsAlpha() (*Column, error) {
	return s.col.Compute("isalpha", "notalpha({value}) < 1")
}

func (s *StringMethods) IsDigit() (*Column, error) {
	return s.col.Compute("isdigit", "notdigit({value}) < 1")
}

func (s *StringMethods) IsSpace() (*Column, error) {
	return s.col.Compute("isspace", "notspace({value}) < 1")
}

func (s *StringMethods) IsLower() (*Column, error) {
	return s.col.Compute("islower", "(lowcase({value}) = {value})")
}

func (s *StringMethods) IsUpper() (*Column, error) {
	return s.col.Compute("isupper", "(upcase({value}) = {value})")
}

func (s *StringMethods) IsTitle() (*Column, error) {
	return s.col.Compute("istitle", "(propcase({value}) = {value})")
}

func (s *StringMethods) IsNumeric() (*Column, error) {
	return s.col.Compute("isnumeric", `prxmatch('/^\s*\d+\s*$/', {value}) > 0`)
}

func (s *StringMethods) IsDecimal() (*Column, error) {
	return s.col.Compute("isdecimal", `prxmatch('/^\s*(0?\.\d+|\d+(\.\d*)?)\s*$/', {value}) > 0`)
}
