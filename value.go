package nwrfc

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Kind is the tag of a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindTime
	KindStructure
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindStructure:
		return "structure"
	case KindTable:
		return "table"
	default:
		return "invalid"
	}
}

// Record maps field or parameter names to values.
type Record map[string]Value

// Value is a parameter or field value. The zero Value is invalid and is
// rejected by every setter.
type Value struct {
	kind Kind
	i    int64
	f    float64
	d    *apd.Decimal
	s    string
	b    []byte
	t    time.Time
	rec  Record
	rows []Record
	tab  *Table
	st   *Structure
}

// Int returns an integer value for INT, INT1, INT2, INT8 and NUM.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a value for FLOAT.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Decimal returns a value for BCD, DECF16 and DECF34. d is copied.
func Decimal(d *apd.Decimal) Value {
	c := new(apd.Decimal)
	if d != nil {
		c.Set(d)
	}
	return Value{kind: KindDecimal, d: c}
}

// ParseDecimal parses s as a decimal value.
func ParseDecimal(s string) (Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("%w: decimal %q: %w", ErrTypeMismatch, s, err)
	}
	return Value{kind: KindDecimal, d: d}, nil
}

// String returns a value for CHAR, STRING, NUM, DATE and TIME.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes returns a value for BYTE and XSTRING. b is copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, b: bytes.Clone(b)}
}

// Time returns a value for DATE (date part) and TIME (clock part).
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Struct returns a value for a STRUCTURE parameter or field.
func Struct(r Record) Value { return Value{kind: KindStructure, rec: r} }

// Rows returns a value for a TABLE parameter, one record per row.
func Rows(rows ...Record) Value { return Value{kind: KindTable, rows: rows} }

// FromStructure returns a value that copies a standalone structure into a
// STRUCTURE parameter or field. The structure is consumed by a successful Set.
func FromStructure(s *Structure) Value { return Value{kind: KindStructure, st: s} }

// FromTable returns a value that attaches a standalone table to a TABLE
// parameter. The table is consumed by a successful Set.
func FromTable(t *Table) Value { return Value{kind: KindTable, tab: t} }

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v carries a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: value is %s, not %s", ErrTypeMismatch, v.kind, want)
}

// AsInt returns the integer of an int value.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, v.mismatch(KindInt)
	}
	return v.i, nil
}

// AsFloat returns the float of a float value.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, v.mismatch(KindFloat)
	}
	return v.f, nil
}

// AsDecimal returns a copy of the decimal of a decimal value.
func (v Value) AsDecimal() (*apd.Decimal, error) {
	if v.kind != KindDecimal {
		return nil, v.mismatch(KindDecimal)
	}
	return new(apd.Decimal).Set(v.d), nil
}

// AsString returns the text of a string value.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.s, nil
}

// AsBytes returns a copy of the bytes of a bytes value.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, v.mismatch(KindBytes)
	}
	return bytes.Clone(v.b), nil
}

// AsTime returns the time of a time value.
func (v Value) AsTime() (time.Time, error) {
	if v.kind != KindTime {
		return time.Time{}, v.mismatch(KindTime)
	}
	return v.t, nil
}

// AsRecord returns the fields of a structure value. A value made with
// FromStructure has no fields of its own.
func (v Value) AsRecord() (Record, error) {
	if v.kind != KindStructure {
		return nil, v.mismatch(KindStructure)
	}
	return v.rec, nil
}

// AsRows returns the rows of a table value. A value made with FromTable
// has no rows of its own.
func (v Value) AsRows() ([]Record, error) {
	if v.kind != KindTable {
		return nil, v.mismatch(KindTable)
	}
	return v.rows, nil
}

// Interface returns the Go value held by v: int64, float64, *apd.Decimal,
// string, []byte, time.Time, map[string]any or []map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDecimal:
		return new(apd.Decimal).Set(v.d)
	case KindString:
		return v.s
	case KindBytes:
		return bytes.Clone(v.b)
	case KindTime:
		return v.t
	case KindStructure:
		return v.rec.Interface()
	case KindTable:
		out := make([]map[string]any, len(v.rows))
		for i, r := range v.rows {
			out[i] = r.Interface()
		}
		return out
	default:
		return nil
	}
}

// Interface converts every field with Value.Interface.
func (r Record) Interface() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Interface()
	}
	return out
}

// Equal reports whether v and o hold the same tag and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInvalid:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindDecimal:
		return v.d.Cmp(o.d) == 0
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.b, o.b)
	case KindTime:
		return v.t.Equal(o.t)
	case KindStructure:
		if v.st != nil || o.st != nil {
			return v.st == o.st
		}
		return v.rec.Equal(o.rec)
	case KindTable:
		if v.tab != nil || o.tab != nil {
			return v.tab == o.tab
		}
		if len(v.rows) != len(o.rows) {
			return false
		}
		for i := range v.rows {
			if !v.rows[i].Equal(o.rows[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether both records hold equal values under the same keys.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// String formats v for display.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return v.d.Text('f')
	case KindString:
		return v.s
	case KindBytes:
		return strings.ToUpper(fmt.Sprintf("%x", v.b))
	case KindTime:
		return v.t.Format(time.DateTime)
	case KindStructure:
		if v.st != nil {
			return "<structure>"
		}
		return fmt.Sprint(map[string]Value(v.rec))
	case KindTable:
		if v.tab != nil {
			return "<table>"
		}
		return fmt.Sprintf("<%d rows>", len(v.rows))
	default:
		return "<invalid>"
	}
}
