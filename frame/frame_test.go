package frame

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-sif/castable/errors"
	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Frame {
	f := New([]string{"g", "x", "s"})
	require.Nil(t, f.AppendRow([]interface{}{}, []interface{}{"a", 1.5, "one"}))
	require.Nil(t, f.AppendRow([]interface{}{}, []interface{}{"b", nil, "two"}))
	require.Nil(t, f.AppendRow([]interface{}{}, []interface{}{"a", 3.0, nil}))
	return f
}

func TestAppendRowWidth(t *testing.T) {
	f := New([]string{"a"})
	err := f.AppendRow([]interface{}{}, []interface{}{1, 2})
	require.IsType(t, errors.ParameterError{}, err)
	err = f.AppendRow([]interface{}{"k"}, []interface{}{1})
	require.IsType(t, errors.ParameterError{}, err)
}

func TestSelectAndValue(t *testing.T) {
	f := sample(t)
	sel, err := f.Select("s", "G")
	require.Nil(t, err)
	require.Equal(t, []string{"s", "G"}, sel.Columns())
	v, err := sel.Value(1, "s")
	require.Nil(t, err)
	require.Equal(t, "two", v)
	_, err = f.Select("nope")
	require.IsType(t, errors.KeyNotFoundError{}, err)
	_, err = f.Value(5, "x")
	require.IsType(t, errors.IndexError{}, err)
}

func TestSetAndResetIndex(t *testing.T) {
	f := sample(t)
	indexed, err := f.SetIndex("g")
	require.Nil(t, err)
	require.Equal(t, []string{"g"}, indexed.IndexNames())
	require.Equal(t, []string{"x", "s"}, indexed.Columns())
	pos, ok := indexed.Loc("b")
	require.True(t, ok)
	require.Equal(t, 1, pos)

	reset := indexed.ResetIndex()
	require.Empty(t, reset.IndexNames())
	require.Equal(t, []string{"g", "x", "s"}, reset.Columns())
	require.Nil(t, deep.Equal(f.Row(2), reset.Row(2)))
}

func TestConcatUnionsColumns(t *testing.T) {
	a := New([]string{"x"}, "k")
	require.Nil(t, a.AppendRow([]interface{}{"one"}, []interface{}{1}))
	b := New([]string{"y", "x"}, "k")
	require.Nil(t, b.AppendRow([]interface{}{"two"}, []interface{}{"why", 2}))
	out := Concat(a, nil, b)
	require.Equal(t, []string{"x", "y"}, out.Columns())
	require.Equal(t, 2, out.Len())
	require.Nil(t, deep.Equal([]interface{}{2, "why"}, out.Row(1)))
	require.Nil(t, deep.Equal([]interface{}{"two"}, out.Key(1)))
	require.Equal(t, 0, Concat().Len())
}

func TestScalar(t *testing.T) {
	f := New([]string{"n"})
	require.Nil(t, f.AppendRow([]interface{}{}, []interface{}{int64(42)}))
	v, err := f.Scalar()
	require.Nil(t, err)
	require.Equal(t, int64(42), v)
	_, err = sample(t).Scalar()
	require.NotNil(t, err)
}

func TestValuesEqual(t *testing.T) {
	require.True(t, ValuesEqual(int64(3), 3.0))
	require.True(t, ValuesEqual(nil, math.NaN()))
	require.False(t, ValuesEqual(nil, 0))
	require.True(t, ValuesEqual("a", "a"))
}

func TestRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	f := New([]string{"x", "n", "b", "when"}, "g")
	require.Nil(t, f.AppendRow([]interface{}{"a"}, []interface{}{1.5, int64(2), true, ts}))
	require.Nil(t, f.AppendRow([]interface{}{nil}, []interface{}{nil, int64(4), nil, nil}))

	rec, err := f.ToRecord(mem)
	require.Nil(t, err)
	defer rec.Release()
	require.Equal(t, int64(2), rec.NumRows())
	require.Equal(t, int64(5), rec.NumCols())

	back, err := FromRecord(rec)
	require.Nil(t, err)
	require.Equal(t, []string{"g"}, back.IndexNames())
	require.Equal(t, f.Columns(), back.Columns())
	require.Nil(t, deep.Equal(f.Row(0), back.Row(0)))
	require.Nil(t, deep.Equal(f.Row(1), back.Row(1)))
	require.Nil(t, back.Key(1)[0])
}
