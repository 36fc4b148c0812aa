package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DType is the declared storage type of a column, as a loader would assign it.
type DType int

const (
	DTypeNumber DType = iota
	DTypeBool
	DTypeObject
	DTypeCategory
	DTypeOther
)

func (d DType) String() string {
	switch d {
	case DTypeNumber:
		return "number"
	case DTypeBool:
		return "bool"
	case DTypeObject:
		return "object"
	case DTypeCategory:
		return "category"
	default:
		return "other"
	}
}

// IsNumeric reports whether the storage type itself is numeric.
func (d DType) IsNumeric() bool {
	return d == DTypeNumber || d == DTypeBool
}

var ErrRaggedColumns = errors.New("columns have different lengths")

// Column is a named, ordered sequence of cells.
type Column struct {
	name   string
	dtype  DType
	values []Value
}

// NewColumn builds a column and infers its dtype from the cells: all numbers
// give DTypeNumber, all booleans DTypeBool, any non-scalar DTypeOther, and
// anything else DTypeObject. An all-null column is DTypeNumber.
func NewColumn(name string, values []Value) Column {
	return Column{name: name, dtype: InferDType(values), values: append([]Value(nil), values...)}
}

// NewTypedColumn builds a column with an explicit dtype.
func NewTypedColumn(name string, dtype DType, values []Value) Column {
	return Column{name: name, dtype: dtype, values: append([]Value(nil), values...)}
}

// InferDType returns the dtype a loader assigns to the given cells.
func InferDType(values []Value) DType {
	var numbers, bools, texts, others int
	for _, v := range values {
		switch v.Kind() {
		case KindNumber:
			numbers++
		case KindBool:
			bools++
		case KindText:
			texts++
		case KindOther:
			others++
		}
	}
	switch {
	case others > 0:
		return DTypeOther
	case texts > 0:
		return DTypeObject
	case bools > 0 && numbers == 0:
		return DTypeBool
	case bools > 0:
		return DTypeObject
	default:
		return DTypeNumber
	}
}

func (c Column) Name() string   { return c.name }
func (c Column) DType() DType   { return c.dtype }
func (c Column) Len() int       { return len(c.values) }
func (c Column) At(i int) Value { return c.values[i] }

// Values returns a copy of the cells.
func (c Column) Values() []Value {
	return append([]Value(nil), c.values...)
}

// NonNullCount is the number of non-null cells.
func (c Column) NonNullCount() int {
	n := 0
	for _, v := range c.values {
		if !v.IsNull() {
			n++
		}
	}
	return n
}

// NullCount is the number of null cells.
func (c Column) NullCount() int {
	return len(c.values) - c.NonNullCount()
}

// Distinct is the number of distinct non-null cells.
func (c Column) Distinct() int {
	return len(c.Counts())
}

// Counts returns occurrences per distinct non-null cell, keyed by Value.Key.
func (c Column) Counts() map[string]int {
	counts := make(map[string]int)
	for _, v := range c.values {
		if v.IsNull() {
			continue
		}
		counts[v.Key()]++
	}
	return counts
}

// CardinalityRatio is distinct / non-null. A column without non-null cells
// has ratio 0.
func (c Column) CardinalityRatio() float64 {
	nonNull := c.NonNullCount()
	if nonNull == 0 {
		return 0
	}
	return float64(c.Distinct()) / float64(nonNull)
}

// Floats returns every non-null cell that coerces to a number, in order.
func (c Column) Floats() []float64 {
	out := make([]float64, 0, len(c.values))
	for _, v := range c.values {
		if f, ok := v.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Dataset is an immutable ordered set of equal-length columns.
type Dataset struct {
	columns []Column
	rows    int
}

// New assembles a dataset. All columns must have the same length.
func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{columns: append([]Column(nil), columns...)}
	for i, c := range columns {
		if i == 0 {
			d.rows = c.Len()
			continue
		}
		if c.Len() != d.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d: %w", c.Name(), c.Len(), d.rows, ErrRaggedColumns)
		}
	}
	return d, nil
}

// FromRecords builds a dataset from a header and row-major cells. Short rows
// are padded with nulls.
func FromRecords(headers []string, records [][]Value) (*Dataset, error) {
	cols := make([]Column, len(headers))
	for j, h := range headers {
		values := make([]Value, len(records))
		for i, rec := range records {
			if j < len(rec) {
				values[i] = rec[j]
			}
		}
		cols[j] = NewColumn(h, values)
	}
	return New(cols...)
}

func (d *Dataset) Rows() int  { return d.rows }
func (d *Dataset) Width() int { return len(d.columns) }
func (d *Dataset) Cells() int { return d.rows * len(d.columns) }

// Columns returns the columns in order.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name()
	}
	return names
}

// Column looks up the first column with the given name.
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.columns {
		if c.Name() == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row returns the cells of row i.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.columns))
	for j, c := range d.columns {
		row[j] = c.At(i)
	}
	return row
}

// RowKey identifies row i for duplicate detection.
func (d *Dataset) RowKey(i int) string {
	var b strings.Builder
	for j, c := range d.columns {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(c.At(i).Key())
	}
	return b.String()
}

// Render writes the dataset as a tab separated table with a leading row
// index. Names and text cells are Go quoted so separators inside them stay
// unambiguous, and nulls render as the bare token NaN. The output is
// byte-stable for identical content and column order.
func (d *Dataset) Render() string {
	var b strings.Builder
	for j, c := range d.columns {
		if j > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(strconv.Quote(c.Name()))
	}
	b.WriteByte('\n')
	for i := 0; i < d.rows; i++ {
		b.WriteString(strconv.Itoa(i))
		for _, c := range d.columns {
			b.WriteByte('\t')
			v := c.At(i)
			switch v.Kind() {
			case KindNull:
				b.WriteString("NaN")
			case KindText, KindOther:
				b.WriteString(strconv.Quote(v.String()))
			default:
				b.WriteString(v.String())
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// SizeBytes estimates the in-memory footprint: 8 bytes per scalar cell plus
// the length of every text cell.
func (d *Dataset) SizeBytes() int {
	size := 0
	for _, c := range d.columns {
		for _, v := range c.values {
			size += 8
			if k := v.Kind(); k == KindText || k == KindOther {
				size += len(v.text)
			}
		}
	}
	return size
}
