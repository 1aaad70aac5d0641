package table

import (
	"context"
	"testing"

	"github.com/go-sif/castable/errors"
	"github.com/stretchr/testify/require"
)

func TestNegativePositions(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()

	a, err := tbl.ILoc(ctx, Rows(-2, -1), ColNamed("Make"))
	require.Nil(t, err)
	fetches := srv.Calls("table.fetch")
	require.Len(t, fetches, 1)
	require.Equal(t, 9, fetches[0].Args.GetDefault("from", nil))
	require.Equal(t, 10, fetches[0].Args.GetDefault("to", nil))

	b, err := tbl.ILoc(ctx, Rows(8, 9), ColNamed("Make"))
	require.Nil(t, err)
	require.Equal(t, b.String(), a.String())
	makes, err := a.Column("Make")
	require.Nil(t, err)
	require.Equal(t, []interface{}{"Saab", "Volvo"}, makes)
}

func TestLabelsAreNeverNegative(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()
	_, err := tbl.Loc(ctx, Rows(-2, -1), AllCols())
	require.Equal(t, errors.KeyNotFoundError{Key: "-2"}, err)
	_, err = tbl.At(ctx, -1, "Make")
	require.Equal(t, errors.KeyNotFoundError{Key: "-1"}, err)
	require.Empty(t, srv.Calls("table.fetch"))
}

func TestRowStep(t *testing.T) {
	_, _, tbl := setup(t, nil)
	_, err := tbl.ILoc(context.Background(), Rows(0, 4).Step(2), AllCols())
	require.IsType(t, errors.ParameterError{}, err)

	f, err := tbl.ILoc(context.Background(), Rows(0, 4).Step(1), ColAt(0))
	require.Nil(t, err)
	require.Equal(t, 5, f.Len())
}

func TestScalarAccess(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()

	v, err := tbl.IAt(ctx, 2, 0)
	require.Nil(t, err)
	require.Equal(t, "BMW", v)

	v, err = tbl.At(ctx, 2, "msrp")
	require.Nil(t, err)
	require.Equal(t, 37000.0, v)

	v, err = tbl.GetValue(ctx, 3, "Cylinders")
	require.Nil(t, err)
	require.Nil(t, v)

	_, err = tbl.IAt(ctx, 20, 0)
	require.Equal(t, errors.IndexError{Index: 20, Size: -1}, err)
	_, err = tbl.IAt(ctx, 0, 7)
	require.Equal(t, errors.IndexError{Index: 7, Size: 4}, err)

	values, err := tbl.Lookup(ctx, []int{0, 9}, []string{"Make", "Origin"})
	require.Nil(t, err)
	require.Equal(t, []interface{}{"Acura", "Europe"}, values)
	_, err = tbl.Lookup(ctx, []int{0}, nil)
	require.IsType(t, errors.ParameterError{}, err)
}

func TestColumnSpans(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()

	f, err := tbl.ILoc(ctx, RowsTo(1), ColSpan("Origin", "MSRP"))
	require.Nil(t, err)
	require.Equal(t, []string{"Origin", "MSRP"}, f.Columns())
	require.Equal(t, 2, f.Len())

	f, err = tbl.ILoc(ctx, Row(0), ColSpan(1, 3))
	require.Nil(t, err)
	require.Equal(t, []string{"Origin", "MSRP"}, f.Columns())

	f, err = tbl.ILoc(ctx, Row(0), ColSpan(-1, nil))
	require.Nil(t, err)
	require.Equal(t, []string{"Cylinders"}, f.Columns())

	f, err = tbl.ILoc(ctx, Row(0), ColSpan(3, 1))
	require.Nil(t, err)
	require.Empty(t, f.Columns())

	_, err = tbl.ILoc(ctx, Row(0), ColSpan("Nope", nil))
	require.Equal(t, errors.KeyNotFoundError{Key: "Nope"}, err)

	f, err = tbl.ILoc(ctx, RowsFrom(8), ColList("Cylinders", 0))
	require.Nil(t, err)
	require.Equal(t, []string{"Cylinders", "Make"}, f.Columns())
	require.Equal(t, 2, f.Len())
}

func TestColumnListMissingNames(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()

	f, err := tbl.ILoc(ctx, Rows(0, 1), ColList("Make", "Nope"))
	require.Nil(t, err)
	require.Equal(t, []string{"Make", "Nope"}, f.Columns())
	require.Equal(t, 2, f.Len())
	require.Equal(t, []interface{}{"Acura", nil}, f.Row(0))
	fetches := srv.Calls("table.fetch")
	require.Len(t, fetches, 1)
	sent := fetches[0].Args.Nested("table")
	require.Equal(t, []string{"Nope"}, sent.Strings("computedVars"))
	require.Empty(t, tbl.Compvars())

	f, err = tbl.Select("Make").ILoc(ctx, Row(0), ColList("Make", "Nope"))
	require.Nil(t, err)
	require.Equal(t, []interface{}{"Acura", nil}, f.Row(0))

	_, err = tbl.ILoc(ctx, Row(0), ColList("Make", 9))
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "1 error occurred")
}

func TestRowRangeBeforeStart(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()

	f, err := tbl.ILoc(ctx, Rows(0, -20), ColNamed("Make"))
	require.Nil(t, err)
	require.Equal(t, 0, f.Len())
	require.Equal(t, []string{"Make"}, f.Columns())

	f, err = tbl.ILoc(ctx, Rows(-3, -5), ColNamed("Make"))
	require.Nil(t, err)
	require.Equal(t, 0, f.Len())

	f, err = tbl.ILoc(ctx, Rows(-20, 1), ColNamed("Make"))
	require.Nil(t, err)
	require.Equal(t, 2, f.Len())

	require.Len(t, srv.Calls("table.fetch"), 1)

	f, err = tbl.Fetch(ctx, FetchOptions{From: 1, To: -1})
	require.Nil(t, err)
	require.Equal(t, 0, f.Len())
	require.Len(t, srv.Calls("table.fetch"), 1)
}
