package frame

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// IndexLevelsKey is the schema metadata key recording how many leading
// fields of a record are index levels
const IndexLevelsKey = "castable.index_levels"

type columnKind int

const (
	kindNull columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindString
	kindTime
)

func kindOf(v interface{}) columnKind {
	switch v.(type) {
	case nil:
		return kindNull
	case int, int32, int64:
		return kindInt
	case float32, float64:
		return kindFloat
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	}
	return kindString
}

func unify(a, b columnKind) columnKind {
	switch {
	case a == kindNull:
		return b
	case b == kindNull || a == b:
		return a
	case (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt):
		return kindFloat
	}
	return kindString
}

func arrowType(k columnKind) arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return arrow.FixedWidthTypes.Timestamp_us
	}
	return arrow.BinaryTypes.String
}

// ToRecord converts the frame into an Arrow record. Index levels become the
// leading fields and their count is stored in the schema metadata.
// The caller must release the returned record.
func (f *Frame) ToRecord(mem memory.Allocator) (arrow.RecordBatch, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	names := append(append([]string(nil), f.index...), f.columns...)
	cell := func(r, c int) interface{} {
		if c < len(f.index) {
			return f.keys[r][c]
		}
		return f.rows[r][c-len(f.index)]
	}
	fields := make([]arrow.Field, len(names))
	kinds := make([]columnKind, len(names))
	for c, name := range names {
		k := kindNull
		for r := range f.rows {
			k = unify(k, kindOf(cell(r, c)))
		}
		kinds[c] = k
		fields[c] = arrow.Field{Name: name, Type: arrowType(k), Nullable: true}
	}
	md := arrow.NewMetadata([]string{IndexLevelsKey}, []string{strconv.Itoa(len(f.index))})
	schema := arrow.NewSchema(fields, &md)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for c := range names {
		fb := b.Field(c)
		for r := range f.rows {
			v := cell(r, c)
			if IsMissing(v) {
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, kinds[c], v); err != nil {
				return nil, fmt.Errorf("column %s: %w", names[c], err)
			}
		}
	}
	return b.NewRecordBatch(), nil
}

func appendValue(fb array.Builder, k columnKind, v interface{}) error {
	switch k {
	case kindInt:
		switch tv := v.(type) {
		case int:
			fb.(*array.Int64Builder).Append(int64(tv))
		case int32:
			fb.(*array.Int64Builder).Append(int64(tv))
		case int64:
			fb.(*array.Int64Builder).Append(tv)
		}
	case kindFloat:
		fv, ok := ToFloat(v)
		if !ok {
			return fmt.Errorf("value %v is not numeric", v)
		}
		fb.(*array.Float64Builder).Append(fv)
	case kindBool:
		fb.(*array.BooleanBuilder).Append(v.(bool))
	case kindTime:
		fb.(*array.TimestampBuilder).Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
	default:
		fb.(*array.StringBuilder).Append(fmt.Sprint(v))
	}
	return nil
}

// FromRecord converts an Arrow record into a Frame, restoring index levels
// recorded by ToRecord
func FromRecord(rec arrow.RecordBatch) (*Frame, error) {
	schema := rec.Schema()
	levels := 0
	md := schema.Metadata()
	if i := md.FindKey(IndexLevelsKey); i >= 0 {
		n, err := strconv.Atoi(md.Values()[i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s metadata: %w", IndexLevelsKey, err)
		}
		levels = n
	}
	ncols := int(rec.NumCols())
	if levels > ncols {
		return nil, fmt.Errorf("record has %d fields but %d index levels", ncols, levels)
	}
	names := make([]string, ncols)
	for i := range names {
		names[i] = schema.Field(i).Name
	}
	out := New(names[levels:], names[:levels]...)
	nrows := int(rec.NumRows())
	cols := make([][]interface{}, ncols)
	for c := 0; c < ncols; c++ {
		values, err := arrayValues(rec.Column(c))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", names[c], err)
		}
		cols[c] = values
	}
	for r := 0; r < nrows; r++ {
		key := make([]interface{}, levels)
		values := make([]interface{}, ncols-levels)
		for c := 0; c < ncols; c++ {
			if c < levels {
				key[c] = cols[c][r]
			} else {
				values[c-levels] = cols[c][r]
			}
		}
		out.keys = append(out.keys, key)
		out.rows = append(out.rows, values)
	}
	return out, nil
}

func arrayValues(arr arrow.Array) ([]interface{}, error) {
	out := make([]interface{}, arr.Len())
	for i := range out {
		if arr.IsNull(i) {
			continue
		}
		switch a := arr.(type) {
		case *array.Int64:
			out[i] = a.Value(i)
		case *array.Int32:
			out[i] = int64(a.Value(i))
		case *array.Float64:
			out[i] = a.Value(i)
		case *array.Float32:
			out[i] = float64(a.Value(i))
		case *array.Boolean:
			out[i] = a.Value(i)
		case *array.String:
			out[i] = a.Value(i)
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			out[i] = a.Value(i).ToTime(unit)
		case *array.Null:
		default:
			return nil, fmt.Errorf("unsupported arrow type %s", arr.DataType())
		}
	}
	return out, nil
}
