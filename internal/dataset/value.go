package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Kind is the runtime type of a single cell.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindText
	KindOther
)

// Value is one cell of a dataset. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	flag bool
	text string
}

func Null() Value { return Value{} }

// Number returns a numeric cell. NaN is stored as null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func Text(s string) Value { return Value{kind: KindText, text: s} }

// Other holds a value that is neither scalar text nor a number, e.g. a nested
// JSON object, rendered as text.
func Other(rendered string) Value { return Value{kind: KindOther, text: rendered} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float coerces the cell to a number. Text is parsed after trimming spaces;
// nulls, NaN, and unparseable text report false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.flag {
			return 1, true
		}
		return 0, true
	case KindText:
		s := strings.TrimSpace(v.text)
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders the cell the way it would be printed in a table. Nulls
// render as "nan".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		if v.flag {
			return "True"
		}
		return "False"
	case KindText, KindOther:
		return v.text
	default:
		return "nan"
	}
}

// Key identifies the cell for distinct counting and duplicate detection.
// Numbers that compare equal share a key; text "1" and number 1 do not.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		if v.flag {
			return "b:1"
		}
		return "b:0"
	case KindText:
		return "s:" + v.text
	case KindOther:
		return "o:" + v.text
	default:
		return "\x00null"
	}
}
