package loader

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/spf13/cast"

	"github.com/peekknuf/datatrust/internal/dataset"
)

func decodeParquet(ctx context.Context, data []byte) (*dataset.Dataset, error) {
	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	cols := make([]dataset.Column, 0, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		dtype := arrowDType(col.DataType())

		values := make([]dataset.Value, 0, tbl.NumRows())
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				values = append(values, arrowValue(chunk, j, dtype))
			}
		}
		cols = append(cols, dataset.NewTypedColumn(col.Name(), dtype, values))
	}
	return dataset.New(cols...)
}

func arrowDType(t arrow.DataType) dataset.DType {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DECIMAL128, arrow.DECIMAL256:
		return dataset.DTypeNumber
	case arrow.BOOL:
		return dataset.DTypeBool
	case arrow.STRING, arrow.LARGE_STRING:
		return dataset.DTypeObject
	case arrow.DICTIONARY:
		return dataset.DTypeCategory
	default:
		return dataset.DTypeOther
	}
}

func arrowValue(a arrow.Array, i int, dtype dataset.DType) dataset.Value {
	if a.IsNull(i) {
		return dataset.Null()
	}
	s := a.ValueStr(i)
	switch dtype {
	case dataset.DTypeNumber:
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return dataset.Text(s)
		}
		return dataset.Number(f)
	case dataset.DTypeBool:
		return dataset.Bool(s == "true")
	case dataset.DTypeObject, dataset.DTypeCategory:
		return dataset.Text(s)
	default:
		return dataset.Other(s)
	}
}
