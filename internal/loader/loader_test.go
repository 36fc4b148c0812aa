package loader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/peekknuf/datatrust/internal/dataset"
)

func read(t *testing.T, filename, content string) *LoadResult {
	t.Helper()
	res, err := Read(context.Background(), filename, strings.NewReader(content))
	require.NoError(t, err)
	return res
}

func column(t *testing.T, d *dataset.Dataset, name string) dataset.Column {
	t.Helper()
	c, ok := d.Column(name)
	require.True(t, ok, "column %q", name)
	return c
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon", "a;b;c\n1;2;3\n", ';'},
		{"tab", "a\tb\n1\t2\n", '\t'},
		{"pipe", "a|b\n1|2\n", '|'},
		{"single column", "a\n1\n", ','},
		{"tie prefers comma", "a,b;c\n", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.data)))
		})
	}
}

func TestReadCSV(t *testing.T) {
	res := read(t, "sales.csv", "id;price;name;active;note\n1;9.5;Ann;True;NA\n2;;Bob;False;x\n3;12;;true;None\n")
	d := res.Dataset

	assert.Equal(t, "sales", res.Name)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, 3, d.Rows())
	assert.Equal(t, []string{"id", "price", "name", "active", "note"}, d.Names())

	price := column(t, d, "price")
	assert.Equal(t, dataset.DTypeNumber, price.DType())
	assert.Equal(t, 1, price.NullCount())
	assert.Equal(t, []float64{9.5, 12}, price.Floats())

	assert.Equal(t, dataset.DTypeObject, column(t, d, "name").DType())
	assert.Equal(t, dataset.DTypeBool, column(t, d, "active").DType())

	note := column(t, d, "note")
	assert.Equal(t, 2, note.NullCount())
	assert.Equal(t, "x", note.At(1).String())
}

func TestReadCSVShortRowsAndDuplicateHeaders(t *testing.T) {
	d := read(t, "x.csv", "a,a,\n1,2,3\n4\n").Dataset
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2"}, d.Names())
	assert.Equal(t, 2, d.Rows())
	assert.True(t, column(t, d, "a.1").At(1).IsNull())
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"too many fields", "a,b\n1,2,3\n"},
		{"bad quotes", "a,b\n\"1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(context.Background(), "bad.csv", strings.NewReader(tt.content))
			assert.ErrorIs(t, err, ErrParseFailure)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	for _, name := range []string{"data.txt", "data.xls", "noext"} {
		_, err := Read(context.Background(), name, strings.NewReader("a\n1\n"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
	assert.True(t, Supported(".CSV"))
	assert.False(t, Supported(".xls"))
}

func TestReadJSONRecords(t *testing.T) {
	d := read(t, "r.json", `[{"b": 1, "a": "x"}, {"a": "y", "c": true}, {"b": null, "a": {"k": 1}}]`).Dataset

	assert.Equal(t, []string{"b", "a", "c"}, d.Names())
	assert.Equal(t, 3, d.Rows())
	assert.Equal(t, dataset.DTypeNumber, column(t, d, "b").DType())
	assert.Equal(t, 2, column(t, d, "b").NullCount())
	assert.Equal(t, dataset.DTypeOther, column(t, d, "a").DType())
	assert.True(t, column(t, d, "c").At(0).IsNull())
	assert.Equal(t, "True", column(t, d, "c").At(1).String())
}

func TestReadJSONColumns(t *testing.T) {
	d := read(t, "c.json", `{"x": {"0": 1.5, "1": 2}, "y": ["a", "b"]}`).Dataset
	assert.Equal(t, []string{"x", "y"}, d.Names())
	assert.Equal(t, []float64{1.5, 2}, column(t, d, "x").Floats())
	assert.Equal(t, "b", column(t, d, "y").At(1).String())
}

func TestReadJSONErrors(t *testing.T) {
	for _, content := range []string{`42`, `[1, 2]`, `{"a": 3}`, `[{"a": 1}`} {
		_, err := Read(context.Background(), "bad.json", strings.NewReader(content))
		assert.ErrorIs(t, err, ErrParseFailure, content)
	}
}

func TestRecordsHashIgnoresSourceFormat(t *testing.T) {
	fromCSV := read(t, "a.csv", "a,b\n1,x\n2,y\n")
	fromJSON := read(t, "a.json", `[{"a": 1, "b": "x"}, {"a": 2, "b": "y"}]`)

	assert.Equal(t, fromCSV.Hash, fromJSON.Hash)
	assert.NotEqual(t, fromCSV.FileHash, fromJSON.FileHash)
	assert.Equal(t, fromCSV.Dataset.Hash(), fromJSON.Dataset.Hash())
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name", "score"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ann", 3.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bob", 4}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := Read(context.Background(), "grades.xlsx", &buf)
	require.NoError(t, err)

	d := res.Dataset
	assert.Equal(t, []string{"name", "score"}, d.Names())
	assert.Equal(t, []float64{3.5, 4}, column(t, d, "score").Floats())
	assert.Equal(t, dataset.DTypeObject, column(t, d, "name").DType())
}

func TestReadParquet(t *testing.T) {
	mem := memory.DefaultAllocator
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).AppendValues([]float64{1.5, 0, 3}, []bool{true, false, true})
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)
	b.Field(2).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))

	res, err := Read(context.Background(), "tx.parquet", &buf)
	require.NoError(t, err)

	d := res.Dataset
	assert.Equal(t, []string{"amount", "name", "flag"}, d.Names())
	amount := column(t, d, "amount")
	assert.Equal(t, dataset.DTypeNumber, amount.DType())
	assert.Equal(t, []float64{1.5, 3}, amount.Floats())
	assert.Equal(t, "c", column(t, d, "name").At(2).String())
	assert.Equal(t, dataset.DTypeBool, column(t, d, "flag").DType())
	assert.Equal(t, "False", column(t, d, "flag").At(1).String())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nAnn,30\n"), 0o644))

	res, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "people", res.Name)
	assert.Equal(t, 1, res.Dataset.Rows())
	assert.Equal(t, dataset.Fingerprint([]byte("name,age\nAnn,30\n")), res.FileHash)
	assert.Equal(t, 0.02, res.SizeKB)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
