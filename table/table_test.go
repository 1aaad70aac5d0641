package table

import (
	"context"
	"testing"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
	castest "github.com/go-sif/castable/testing"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func carsFrame() *frame.Frame {
	return castest.Rows([]string{"Make", "Origin", "MSRP", "Cylinders"},
		[]interface{}{"Acura", "Asia", 36945.0, 6.0},
		[]interface{}{"Audi", "Europe", 33430.0, 4.0},
		[]interface{}{"BMW", "Europe", 37000.0, 6.0},
		[]interface{}{"Buick", "USA", 26470.0, nil},
		[]interface{}{"Chevrolet", "USA", 19635.0, 4.0},
		[]interface{}{"Honda", "Asia", 20140.0, 4.0},
		[]interface{}{"Kia", "Asia", 15000.0, 4.0},
		[]interface{}{"Lexus", "Asia", 39195.0, 6.0},
		[]interface{}{"Saab", "Europe", 30860.0, 4.0},
		[]interface{}{"Volvo", "Europe", 35145.0, 5.0},
	)
}

func setup(t *testing.T, opts *castable.Options) (*castest.Server, *castable.Session, *Table) {
	srv := castest.NewServer(nil)
	require.Nil(t, srv.AddTable("cars", carsFrame(), nil))
	sess, err := castest.LocalSession(srv, opts)
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = sess.Close()
		srv.Release()
	})
	return srv, sess, Open(sess, "cars", "caslib", "casuser")
}

func TestDerivationIsLocal(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	out, err := tbl.Select("Make", "MSRP").Query("MSRP > 20000").SortValues([]string{"MSRP"}, false)
	require.Nil(t, err)
	out = out.GroupBy([]string{"Origin"}).Table()
	require.Equal(t, []string{"Make", "MSRP"}, out.Varlist())
	require.Empty(t, srv.Calls(""))
	require.Empty(t, tbl.Varlist())
	require.Empty(t, tbl.Where())
}

func TestPendingStateIsDeterministic(t *testing.T) {
	_, _, tbl := setup(t, nil)
	build := func() *Table {
		col := tbl.ToColumn("MSRP").WithDtype("double")
		gt, err := col.Gt(20000)
		require.Nil(t, err)
		return tbl.Filter(gt).Select("Make")
	}
	a, b := build(), build()
	// generated names differ, so only the structure is compared
	require.Equal(t, len(a.Compvars()), len(b.Compvars()))
	require.Equal(t, a.Varlist(), b.Varlist())

	c := tbl.Query("MSRP > 1").Select("Make")
	d := tbl.Query("MSRP > 1").Select("Make")
	require.True(t, c.Equal(d))
	require.Equal(t, c.TableParams().Fingerprint(), d.TableParams().Fingerprint())
}

func TestFilterConditionsAccumulate(t *testing.T) {
	_, _, tbl := setup(t, nil)
	out := tbl.Query("MSRP > 20000").Query("Cylinders = 4").Query("MSRP > 20000")
	require.Equal(t, []string{"MSRP > 20000", "Cylinders = 4"}, out.Where())
	require.Equal(t, "(MSRP > 20000) and (Cylinders = 4)", out.TableParams().String("where"))
	require.Equal(t, "MSRP > 20000", tbl.Query("MSRP > 20000").TableParams().String("where"))
}

func TestComputedColumnNamesAreUnique(t *testing.T) {
	_, _, tbl := setup(t, nil)
	col := tbl.ToColumn("MSRP").WithDtype("double")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		out, err := col.Add(i)
		require.Nil(t, err)
		seen[params.FoldKey(out.Name())] = true
	}
	require.Len(t, seen, 100)
}

func TestFilterHidesAuxiliaryColumns(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	srv.Evaluate = func(name string, row map[string]interface{}) interface{} {
		return row["msrp"].(float64) > 30000
	}
	srv.Filter = func(where string, row map[string]interface{}) bool {
		for k, v := range row {
			if len(k) > 3 && k[:4] == "_gt_" {
				return v.(bool)
			}
		}
		return true
	}
	col := tbl.ToColumn("MSRP").WithDtype("double")
	gt, err := col.Gt(30000)
	require.Nil(t, err)
	out := tbl.Filter(gt)

	ctx := context.Background()
	cols, err := out.Columns(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"Make", "Origin", "MSRP", "Cylinders"}, cols)
	n, err := out.NumRows(ctx)
	require.Nil(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, gt.Name(), out.TableParams().String("where"))
}

func TestHeadAndTailRanges(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	ctx := context.Background()

	head, err := tbl.Head(ctx, 5)
	require.Nil(t, err)
	require.Equal(t, 5, head.Len())
	calls := srv.Calls("table.fetch")
	require.Len(t, calls, 1)
	require.Equal(t, 1, calls[0].Args.GetDefault("from", nil))
	require.Equal(t, 5, calls[0].Args.GetDefault("to", nil))

	srv.ResetCalls()
	tail, err := tbl.Tail(ctx, 3)
	require.Nil(t, err)
	require.Equal(t, 3, tail.Len())
	calls = srv.Calls("table.fetch")
	require.Len(t, calls, 1)
	require.Equal(t, 8, calls[0].Args.GetDefault("from", nil))
	require.Equal(t, 10, calls[0].Args.GetDefault("to", nil))
	v, err := tail.Value(2, "Make")
	require.Nil(t, err)
	require.Equal(t, "Volvo", v)
}

func TestProjectKeepsOrder(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()
	out, err := tbl.Project(ctx, "MSRP", "Make")
	require.Nil(t, err)
	f, err := out.Head(ctx, 2)
	require.Nil(t, err)
	require.Equal(t, []string{"MSRP", "Make"}, f.Columns())

	out, err = tbl.Project(ctx, -1, 0, "Missing")
	require.Nil(t, err)
	require.Equal(t, []string{"Cylinders", "Make", "Missing"}, out.Varlist())

	_, err = tbl.Project(ctx, 10, 11)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "2 errors occurred")
}

func TestNoConnection(t *testing.T) {
	ctx := context.Background()
	_, err := New("cars").Head(ctx, 1)
	require.Equal(t, errors.NoConnectionError{}, err)

	_, sess, tbl := setup(t, nil)
	require.Nil(t, sess.Close())
	_, err = tbl.NumRows(ctx)
	require.Equal(t, errors.NoConnectionError{}, err)
}

func TestSubOnCharacterColumnFailsLocally(t *testing.T) {
	srv, _, tbl := setup(t, nil)
	col := tbl.ToColumn("Make").WithDtype("varchar")
	_, err := col.Sub(1)
	require.Equal(t, errors.IncompatibleTypeError{Op: "sub", Dtype: "varchar"}, err)
	_, err = col.ClipLower(1)
	require.NotNil(t, err)
	require.Empty(t, srv.Calls(""))

	concat, err := col.Add("!")
	require.Nil(t, err)
	require.Equal(t, "varchar", concat.Dtype())
	code := concat.Comppgm()
	require.Len(t, code, 2)
	require.Equal(t, "length "+concat.Name()+" varchar(*);", code[0])
	require.Equal(t, concat.Name()+` = trim(Make) || trim("!");`, code[1])
}

func TestSortValuesAppends(t *testing.T) {
	_, _, tbl := setup(t, nil)
	a, err := tbl.SortValues([]string{"Origin"})
	require.Nil(t, err)
	b, err := a.SortValues([]string{"MSRP"}, false)
	require.Nil(t, err)
	require.Equal(t, []params.SortSpec{
		params.NewSortSpec("Origin", true),
		params.NewSortSpec("MSRP", false),
	}, b.SortBy())
	require.Len(t, a.SortBy(), 1)

	_, err = tbl.SortValues([]string{"a", "b"}, true, false, true)
	require.NotNil(t, err)
}

func TestSortedFetch(t *testing.T) {
	_, _, tbl := setup(t, nil)
	sorted, err := tbl.SortValues([]string{"MSRP"}, false)
	require.Nil(t, err)
	f, err := sorted.Head(context.Background(), 2, "Make")
	require.Nil(t, err)
	values, err := f.Column("Make")
	require.Nil(t, err)
	require.Equal(t, []interface{}{"Lexus", "BMW"}, values)
}

func TestSetItem(t *testing.T) {
	_, _, tbl := setup(t, nil)
	out := tbl.Select("Make")
	col := out.ToColumn("MSRP").WithDtype("double")
	half, err := col.Div(2)
	require.Nil(t, err)
	require.Nil(t, out.SetItem("Half", half))
	require.Nil(t, out.SetItem("Label", "car"))
	require.Equal(t, []string{"Make", "Half", "Label"}, out.Varlist())
	require.Contains(t, out.Comppgm(), `Label = "car";`)
	require.Contains(t, out.Comppgm(), "Half = "+half.Name()+";")
}

func TestTableString(t *testing.T) {
	tbl := New("cars", "caslib", "casuser").Query("MSRP > 1")
	require.Equal(t, `Table("cars", caslib="casuser", where=["MSRP > 1"])`, tbl.String())
}

func TestWireParams(t *testing.T) {
	tbl := New("cars").
		AppendVarlist("Make").
		AppendComputedColumns([]string{"x"}, []string{"x = 1", "y = 2;"}).
		AppendGroupBy("Origin")
	p := tbl.TableParams()
	require.Equal(t, []string{"Make"}, p.Strings("vars"))
	require.Equal(t, []string{"x"}, p.Strings("computedVars"))
	require.Equal(t, "x = 1; y = 2;", p.String("computedVarsProgram"))
	require.Equal(t, []string{"Origin"}, p.Strings("groupBy"))
	require.False(t, tbl.ungroupedParams().Has("groupBy"))

	back := New("ignored").fromWire(p)
	require.Equal(t, []string{"Make"}, back.Varlist())
	require.Equal(t, []string{"x = 1; y = 2;"}, back.Comppgm())
	require.Equal(t, "cars", back.TableName())
}

func TestDelItemAndPop(t *testing.T) {
	_, _, tbl := setup(t, nil)
	ctx := context.Background()
	out := tbl.Copy()

	require.Nil(t, out.DelItem(ctx, "origin"))
	require.Equal(t, []string{"Make", "MSRP", "Cylinders"}, out.Varlist())
	require.Empty(t, tbl.Varlist())
	require.Equal(t, errors.KeyNotFoundError{Key: "Origin"}, out.DelItem(ctx, "Origin"))

	col, err := out.Pop(ctx, "msrp")
	require.Nil(t, err)
	require.Equal(t, "MSRP", col.Name())
	require.Equal(t, "double", col.Dtype())
	require.Equal(t, []string{"Make", "Cylinders"}, out.Varlist())
	values, err := col.Values(ctx)
	require.Nil(t, err)
	require.Len(t, values, 10)

	_, err = out.Pop(ctx, "nope")
	require.Equal(t, errors.KeyNotFoundError{Key: "nope"}, err)
	require.Equal(t, []string{"Make", "Cylinders"}, out.Varlist())
}
