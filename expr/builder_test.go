package expr

import (
	"strconv"
	"testing"
	"time"

	"github.com/go-sif/castable/errors"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func (c *counter) NextID() string {
	c.n++
	return strconv.Itoa(c.n)
}

type column struct {
	name  string
	names []string
	code  []string
}

func (c column) Expression() (string, []string, []string) {
	return Nlit(c.name), c.names, c.code
}

func TestNlit(t *testing.T) {
	require.Equal(t, "MSRP", Nlit("MSRP"))
	require.Equal(t, "_x1", Nlit("_x1"))
	require.Equal(t, `"Sale Price"n`, Nlit("Sale Price"))
	require.Equal(t, `"1st"n`, Nlit("1st"))
	require.Equal(t, `"a""b"n`, Nlit(`a"b`))
}

func TestLiteral(t *testing.T) {
	cases := []struct {
		in  interface{}
		out string
	}{
		{nil, "."},
		{"it's \"x\"", `"it's ""x"""`},
		{true, "1"},
		{int64(7), "7"},
		{2.5, "2.5"},
		{time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), "'04MAR2021:05:06:07'dt"},
	}
	for _, c := range cases {
		lit, err := Literal(c.in, true)
		require.Nil(t, err)
		require.Equal(t, c.out, lit)
	}
	raw, err := Literal("a.*b", false)
	require.Nil(t, err)
	require.Equal(t, "a.*b", raw)
	_, err = Literal(struct{}{}, true)
	require.NotNil(t, err)
}

func TestBuildExpressionTemplate(t *testing.T) {
	gen := &counter{}
	frag, err := NewBuilder(gen, "add", "({value}) + ({other})").Arg("other", 5).Build(column{name: "MSRP"})
	require.Nil(t, err)
	require.Equal(t, "_add_1_", frag.Output)
	require.Equal(t, []string{"_add_1_"}, frag.Names)
	require.Equal(t, []string{"_add_1_ = (MSRP) + (5);"}, frag.Code)
}

func TestBuildSplicesOperands(t *testing.T) {
	gen := &counter{}
	left := column{name: "_a_1_", names: []string{"_a_1_"}, code: []string{"_a_1_ = x * 2;"}}
	right := column{name: "_b_2_", names: []string{"_b_2_", "_a_1_"}, code: []string{"_a_1_ = x * 2;", "_b_2_ = _a_1_ + 1;"}}
	gen.n = 2
	frag, err := NewBuilder(gen, "gt", "({value}) > ({other})").Arg("other", right).Build(left)
	require.Nil(t, err)
	require.Equal(t, []string{"_gt_3_", "_a_1_", "_b_2_"}, frag.Names)
	require.Equal(t, []string{
		"_a_1_ = x * 2;",
		"_b_2_ = _a_1_ + 1;",
		"_gt_3_ = (_a_1_) > (_b_2_);",
	}, frag.Code)
}

func TestBuildLengthAndSequences(t *testing.T) {
	gen := &counter{}
	frag, err := NewBuilder(gen, "isin", "{value} in {values}").Arg("values", []interface{}{"a", 1}).Build(column{name: "Make"})
	require.Nil(t, err)
	require.Equal(t, `_isin_1_ = Make in ("a", 1);`, frag.Code[0])

	frag, err = NewBuilder(gen, "upper", "upcase({value})").AddLength().Build(column{name: "Make"})
	require.Nil(t, err)
	require.Equal(t, []string{"length _upper_2_ varchar(*);", "_upper_2_ = upcase(Make);"}, frag.Code)

	frag, err = NewBuilder(gen, "len", "lengthn({value})").Dtype("double").Build(column{name: "Make"})
	require.Nil(t, err)
	require.Equal(t, "length _len_3_ double;", frag.Code[0])
}

func TestBuildNoQuotes(t *testing.T) {
	frag, err := NewBuilder(&counter{}, "contains", "prxmatch('/{pat}/', {value}) > 0").
		Arg("pat", "^B.*W$").NoQuotes().Build(column{name: "Make"})
	require.Nil(t, err)
	require.Equal(t, "_contains_1_ = prxmatch('/^B.*W$/', Make) > 0;", frag.Code[0])
}

func TestBuildExplicitOut(t *testing.T) {
	frag, err := NewBuilder(&counter{}, "sw", "if {value} =: {pat} then {out} = 1; else {out} = 0").
		Arg("pat", "A").Build(column{name: "Make"})
	require.Nil(t, err)
	require.Equal(t, `if Make =: "A" then _sw_1_ = 1; else _sw_1_ = 0;`, frag.Code[0])
}

func TestBuildUnknownPlaceholder(t *testing.T) {
	_, err := NewBuilder(&counter{}, "bad", "{value} + {missing}").Build(column{name: "x"})
	require.NotNil(t, err)
	require.IsType(t, errors.ParameterError{}, err)
}

func TestNamesAreUnique(t *testing.T) {
	gen := &counter{}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		frag, err := NewBuilder(gen, "abs", "abs({value})").Build(column{name: "x"})
		require.Nil(t, err)
		require.False(t, seen[frag.Output])
		seen[frag.Output] = true
	}
	require.Len(t, seen, 100)
}
