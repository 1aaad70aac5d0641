package table

import (
	"context"
	"testing"

	"github.com/go-sif/castable/errors"
	"github.com/stretchr/testify/require"
)

func lastStatement(t *testing.T, c *Column) string {
	code := c.Comppgm()
	require.NotEmpty(t, code)
	return code[len(code)-1]
}

func TestArithmeticTemplates(t *testing.T) {
	_, _, tbl := setup(t, nil)
	msrp := tbl.ToColumn("MSRP").WithDtype("double")
	cyl := tbl.ToColumn("Cylinders").WithDtype("double")

	ratio, err := msrp.Div(cyl)
	require.Nil(t, err)
	require.Equal(t, ratio.Name()+" = (MSRP) / (Cylinders);", lastStatement(t, ratio))
	require.Equal(t, "double", ratio.Dtype())

	pow, err := msrp.RPow(2)
	require.Nil(t, err)
	require.Equal(t, pow.Name()+" = (2) ** (MSRP);", lastStatement(t, pow))

	ne, err := msrp.Ne(0)
	require.Nil(t, err)
	require.Equal(t, ne.Name()+" = (MSRP) ^= (0);", lastStatement(t, ne))

	in, err := msrp.IsIn(1, 2.5)
	require.Nil(t, err)
	require.Equal(t, in.Name()+" = (MSRP) in (1, 2.5);", lastStatement(t, in))
	_, err = msrp.IsIn()
	require.IsType(t, errors.ParameterError{}, err)

	// chained columns carry every dependency, in order
	both, err := ratio.Gt(1000)
	require.Nil(t, err)
	require.Len(t, both.Compvars(), 2)
	require.Equal(t, ratio.Comppgm()[0], both.Comppgm()[0])
}

func TestComputeNamedIsIdempotent(t *testing.T) {
	_, _, tbl := setup(t, nil)
	msrp := tbl.ToColumn("MSRP").WithDtype("double")
	a, err := msrp.Compute("double", "{value} * 2", Named("Twice"))
	require.Nil(t, err)
	b, err := a.Compute("double", "{value} * 2", Named("Twice"))
	require.Nil(t, err)
	require.Equal(t, "Twice", b.Name())
	require.Equal(t, a.Comppgm(), b.Comppgm())
}

func TestStringMethods(t *testing.T) {
	_, _, tbl := setup(t, nil)
	_, err := tbl.ToColumn("MSRP").WithDtype("double").Str()
	require.Equal(t, errors.IncompatibleTypeError{Op: "str", Dtype: "double"}, err)

	str, err := tbl.ToColumn("Make").WithDtype("varchar").Str()
	require.Nil(t, err)

	upper, err := str.Upper()
	require.Nil(t, err)
	require.Equal(t, "varchar", upper.Dtype())
	require.Equal(t, upper.Name()+" = upcase(Make);", lastStatement(t, upper))

	contains, err := str.Contains("a", false, 0, false)
	require.Nil(t, err)
	require.Equal(t, contains.Name()+` = index(lowcase(Make), lowcase("a")) > 0;`, lastStatement(t, contains))

	starts, err := str.StartsWith("B", true)
	require.Nil(t, err)
	require.Equal(t, starts.Name()+" = prxmatch('/^B/', Make) > 0;", lastStatement(t, starts))

	count, err := str.Count("a", IgnoreCase)
	require.Nil(t, err)
	require.Equal(t, count.Name()+` = count(lowcase(Make), lowcase("a"));`, lastStatement(t, count))

	replaced, err := str.Replace("o", "0", -1, true, 0)
	require.Nil(t, err)
	require.Equal(t, replaced.Name()+" = prxchange('s/o/0/', -1, Make);", lastStatement(t, replaced))

	sliced, err := str.Slice(1, 3)
	require.Nil(t, err)
	require.Equal(t, sliced.Name()+" = substr(Make, 2, 4-2);", lastStatement(t, sliced))
}

func TestStringMethodsRejectInvalidPatterns(t *testing.T) {
	_, _, tbl := setup(t, nil)
	str, err := tbl.ToColumn("Make").WithDtype("varchar").Str()
	require.Nil(t, err)

	_, err = str.Contains("a(", true, 0, true)
	require.IsType(t, errors.ParameterError{}, err)
	_, err = str.StartsWith("[B", true)
	require.IsType(t, errors.ParameterError{}, err)
	_, err = str.EndsWith("a)", true)
	require.IsType(t, errors.ParameterError{}, err)
	_, err = str.Replace("o(", "0", -1, true, 0)
	require.IsType(t, errors.ParameterError{}, err)

	// substring search does not treat the pattern as a regular expression
	_, err = str.Contains("a(", true, 0, false)
	require.Nil(t, err)
}

func TestDatetimeMethods(t *testing.T) {
	_, _, tbl := setup(t, nil)
	_, err := tbl.ToColumn("Make").WithDtype("varchar").Dt()
	require.NotNil(t, err)

	dt, err := tbl.ToColumn("Sold").WithDtype("datetime").Dt()
	require.Nil(t, err)
	year, err := dt.Year()
	require.Nil(t, err)
	require.Equal(t, year.Name()+" = year(datepart(Sold));", lastStatement(t, year))
	dow, err := dt.DayOfWeek()
	require.Nil(t, err)
	require.Equal(t, dow.Name()+" = mod(weekday(datepart(Sold)) + 5, 7);", lastStatement(t, dow))

	d, err := tbl.ToColumn("Day").WithDtype("date").Dt()
	require.Nil(t, err)
	hour, err := d.Hour()
	require.Nil(t, err)
	require.Equal(t, hour.Name()+" = 0;", lastStatement(t, hour))
	end, err := d.IsMonthEnd()
	require.Nil(t, err)
	require.Equal(t, end.Name()+` = (intnx("month", Day, 0, "e") = Day);`, lastStatement(t, end))
}

func TestColumnValues(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()
	col, err := tbl.Col(ctx, "origin")
	require.Nil(t, err)
	require.Equal(t, "Origin", col.Name())
	require.Equal(t, "varchar", col.Dtype())

	values, err := col.Values(ctx)
	require.Nil(t, err)
	require.Len(t, values, 10)

	v, err := col.Get(ctx, 1, "none")
	require.Nil(t, err)
	require.Equal(t, "Europe", v)
	v, err = col.Get(ctx, 50, "none")
	require.Nil(t, err)
	require.Equal(t, "none", v)

	unique, err := col.Unique(ctx)
	require.Nil(t, err)
	require.Equal(t, []interface{}{"Asia", "Europe", "USA"}, unique)

	n, err := col.NUnique(ctx)
	require.Nil(t, err)
	require.Equal(t, 3, n)
	ok, err := col.IsUnique(ctx)
	require.Nil(t, err)
	require.False(t, ok)
	ok, err = tbl.ToColumn("Make").IsUnique(ctx)
	require.Nil(t, err)
	require.True(t, ok)

	_, err = tbl.Col(ctx, "nope")
	require.Equal(t, errors.KeyNotFoundError{Key: "nope"}, err)
}

func TestValueCounts(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()
	col := tbl.ToColumn("Cylinders")

	counts, err := col.ValueCounts(ctx, ValueCountsOptions{})
	require.Nil(t, err)
	require.Equal(t, []string{"Cylinders"}, counts.IndexNames())
	require.Equal(t, []string{"count"}, counts.Columns())
	require.Equal(t, 3, counts.Len())
	require.Equal(t, []interface{}{4.0}, counts.Key(0))
	require.Equal(t, 5.0, counts.Row(0)[0])

	withNA, err := col.ValueCounts(ctx, ValueCountsOptions{KeepNA: true, Normalize: true, Ascending: true})
	require.Nil(t, err)
	require.Equal(t, 4, withNA.Len())
	require.Equal(t, []string{"proportion"}, withNA.Columns())
	require.InDelta(t, 0.1, withNA.Row(0)[0], 1e-9)

	grouped := tbl.GroupBy([]string{"Origin"}).Table().ToColumn("Cylinders")
	byOrigin, err := grouped.ValueCounts(ctx, ValueCountsOptions{})
	require.Nil(t, err)
	require.Equal(t, []string{"Origin", "Cylinders"}, byOrigin.IndexNames())
	require.Equal(t, []interface{}{"Asia", 4.0}, byOrigin.Key(0))
}

func TestAllAndAny(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()
	col := tbl.ToColumn("Cylinders").WithDtype("double")
	all, err := col.All(ctx)
	require.Nil(t, err)
	// no filter is installed on the server, so every row matches
	require.True(t, all)
	calls := srv.Calls("simple.numrows")
	require.Len(t, calls, 2)
	require.Equal(t, "(Cylinders) ^= 0", calls[1].Args.Nested("table").String("where"))

	srv.ResetCalls()
	anyTrue, err := col.Any(ctx)
	require.Nil(t, err)
	require.True(t, anyTrue)
	calls = srv.Calls("simple.numrows")
	require.Equal(t, "(Cylinders) ^= 0 and not missing(Cylinders)", calls[0].Args.Nested("table").String("where"))
}

func TestCombine(t *testing.T) {
	_, sess, tbl := setup(t, nil)
	msrp := tbl.ToColumn("MSRP").WithDtype("double")
	twice, err := msrp.Mul(2)
	require.Nil(t, err)
	both, err := tbl.ToColumn("Make").Combine(twice)
	require.Nil(t, err)
	require.Equal(t, []string{"Make", twice.Name()}, both.Varlist())
	require.Equal(t, twice.Comppgm(), both.Comppgm())

	other := Open(sess, "trucks", "caslib", "casuser").ToColumn("Make")
	_, err = tbl.ToColumn("Make").Combine(other)
	require.IsType(t, errors.ParameterError{}, err)
}

func TestColumnCorr(t *testing.T) {
	_, _, tbl := setup(t, nil)
	msrp := tbl.ToColumn("MSRP").WithDtype("double")
	r, err := msrp.Corr(context.Background(), msrp)
	require.Nil(t, err)
	require.InDelta(t, 1.0, r, 1e-9)
}

func TestCharacterTypeFromLoadedMetadata(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()

	_, err := tbl.Columns(ctx)
	require.Nil(t, err)
	srv.ResetCalls()

	col := tbl.ToColumn("Make")
	_, err = col.Sub(1)
	require.Equal(t, errors.IncompatibleTypeError{Op: "sub", Dtype: "varchar"}, err)
	require.Equal(t, "varchar", col.Dtype())
	_, err = tbl.ToColumn("Make").Pow(2)
	require.IsType(t, errors.IncompatibleTypeError{}, err)
	_, err = tbl.ToColumn("Make").Str()
	require.Nil(t, err)
	twice, err := tbl.ToColumn("Make").Mul(2)
	require.Nil(t, err)
	require.Contains(t, lastStatement(t, twice), "repeat(")
	require.Empty(t, srv.Calls(""))

	diff, err := tbl.ToColumn("MSRP").Sub(1)
	require.Nil(t, err)
	require.Contains(t, lastStatement(t, diff), "(MSRP) - (1)")
}

func TestResolvedColumnsAreTyped(t *testing.T) {
	_, _, tbl := setup(t, nil)
	r, err := tbl.Select("Make", "MSRP").Resolve(context.Background(), "make")
	require.Nil(t, err)
	require.Equal(t, "varchar", r.Column.Dtype())
	_, err = r.Column.Sub(1)
	require.IsType(t, errors.IncompatibleTypeError{}, err)
}
