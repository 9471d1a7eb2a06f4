package nwrfc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// shape is the declared layout of one parameter or field.
type shape struct {
	name     string
	nameZ    []uint16
	typ      Type
	nuc      uint32
	uc       uint32
	decimals uint32
	td       *TypeDescription
}

// cell is an encoded value, ready for the library setter of its shape.
type cell struct {
	units  []uint16 // CHAR, NUM, DATE, TIME, STRING and decimal text
	raw    []byte   // BYTE, XSTRING
	i      int64
	f      float64
	fields []fieldCell   // STRUCTURE, in offset order
	rows   [][]fieldCell // TABLE
	table  *Table        // TABLE attached from a standalone table
	st     *Structure    // STRUCTURE copied from a standalone structure
}

type fieldCell struct {
	sh shape
	c  cell
}

const (
	dateLayout = "20060102"
	timeLayout = "150405"
)

// accepts reports whether a value of kind k may be bound to type t.
func accepts(t Type, k Kind) bool {
	switch t {
	case rfcapi.TypeChar, rfcapi.TypeString:
		return k == KindString
	case rfcapi.TypeNum:
		return k == KindString || k == KindInt
	case rfcapi.TypeDate, rfcapi.TypeTime:
		return k == KindString || k == KindTime
	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		return k == KindDecimal
	case rfcapi.TypeByte, rfcapi.TypeXString:
		return k == KindBytes
	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		return k == KindInt
	case rfcapi.TypeFloat:
		return k == KindFloat
	case rfcapi.TypeStructure:
		return k == KindStructure
	case rfcapi.TypeTable:
		return k == KindTable
	}
	return false
}

func tooLong(sh shape, got, limit uint64) error {
	return fmt.Errorf("%w: %s %s holds %d, got %d", ErrValueTooLong, sh.typ, sh.name, limit, got)
}

// encode checks v against sh and converts it to the wire form. It makes no
// library call.
func encode(v Value, sh shape) (cell, error) {
	if !accepts(sh.typ, v.kind) {
		return cell{}, fmt.Errorf("%w: %s %s cannot take a %s value", ErrTypeMismatch, sh.typ, sh.name, v.kind)
	}
	switch sh.typ {
	case rfcapi.TypeChar:
		u, err := rfcapi.Chars(v.s)
		if err != nil {
			return cell{}, err
		}
		if limit := sh.uc / 2; uint32(len(u)) > limit {
			return cell{}, tooLong(sh, uint64(len(u)), uint64(limit))
		}
		return cell{units: u}, nil

	case rfcapi.TypeString:
		u, err := rfcapi.Chars(v.s)
		if err != nil {
			return cell{}, err
		}
		return cell{units: u}, nil

	case rfcapi.TypeNum:
		return encodeNum(v, sh)

	case rfcapi.TypeDate:
		return encodeClock(v, sh, rfcapi.DateLen, dateLayout)

	case rfcapi.TypeTime:
		return encodeClock(v, sh, rfcapi.TimeLen, timeLayout)

	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		return encodeDecimal(v.d, sh)

	case rfcapi.TypeByte:
		if uint32(len(v.b)) > sh.uc {
			return cell{}, tooLong(sh, uint64(len(v.b)), uint64(sh.uc))
		}
		return cell{raw: v.b}, nil

	case rfcapi.TypeXString:
		return cell{raw: v.b}, nil

	case rfcapi.TypeInt1:
		if v.i < 0 || v.i > math.MaxUint8 {
			return cell{}, fmt.Errorf("%w: INT1 %s out of range: %d", ErrValueTooLong, sh.name, v.i)
		}
		return cell{i: v.i}, nil

	case rfcapi.TypeInt2:
		if v.i < math.MinInt16 || v.i > math.MaxInt16 {
			return cell{}, fmt.Errorf("%w: INT2 %s out of range: %d", ErrValueTooLong, sh.name, v.i)
		}
		return cell{i: v.i}, nil

	case rfcapi.TypeInt:
		if v.i < math.MinInt32 || v.i > math.MaxInt32 {
			return cell{}, fmt.Errorf("%w: INT %s out of range: %d", ErrValueTooLong, sh.name, v.i)
		}
		return cell{i: v.i}, nil

	case rfcapi.TypeInt8:
		return cell{i: v.i}, nil

	case rfcapi.TypeFloat:
		return cell{f: v.f}, nil

	case rfcapi.TypeStructure:
		if v.st != nil {
			if v.st.td != nil && sh.td != nil && v.st.td.Name != sh.td.Name {
				return cell{}, fmt.Errorf("%w: structure %s has type %s, not %s", ErrTypeMismatch, sh.name, v.st.td.Name, sh.td.Name)
			}
			if !v.st.g.live() {
				return cell{}, fmt.Errorf("%w: structure", ErrUseAfterRelease)
			}
			return cell{st: v.st}, nil
		}
		fields, err := encodeRecord(v.rec, sh.td)
		if err != nil {
			return cell{}, fmt.Errorf("%s: %w", sh.name, err)
		}
		return cell{fields: fields}, nil

	case rfcapi.TypeTable:
		if v.tab != nil {
			if v.tab.td != nil && sh.td != nil && v.tab.td.Name != sh.td.Name {
				return cell{}, fmt.Errorf("%w: table %s has line type %s, not %s", ErrTypeMismatch, sh.name, v.tab.td.Name, sh.td.Name)
			}
			if !v.tab.g.live() {
				return cell{}, fmt.Errorf("%w: table", ErrUseAfterRelease)
			}
			return cell{table: v.tab}, nil
		}
		rows := make([][]fieldCell, len(v.rows))
		for i, r := range v.rows {
			fields, err := encodeRecord(r, sh.td)
			if err != nil {
				return cell{}, fmt.Errorf("%s row %d: %w", sh.name, i, err)
			}
			rows[i] = fields
		}
		return cell{rows: rows}, nil
	}
	return cell{}, fmt.Errorf("%w: %s %s is not supported", ErrTypeMismatch, sh.typ, sh.name)
}

func encodeNum(v Value, sh shape) (cell, error) {
	var s string
	if v.kind == KindInt {
		if v.i < 0 {
			return cell{}, fmt.Errorf("%w: NUM %s cannot hold %d", ErrTypeMismatch, sh.name, v.i)
		}
		s = strconv.FormatInt(v.i, 10)
	} else {
		s = v.s
		for _, r := range s {
			if r < '0' || r > '9' {
				return cell{}, fmt.Errorf("%w: NUM %s takes digits only, got %q", ErrTypeMismatch, sh.name, s)
			}
		}
	}
	width := int(sh.uc / 2)
	if len(s) > width {
		return cell{}, tooLong(sh, uint64(len(s)), uint64(width))
	}
	u, err := rfcapi.Chars(strings.Repeat("0", width-len(s)) + s)
	if err != nil {
		return cell{}, err
	}
	return cell{units: u}, nil
}

func encodeClock(v Value, sh shape, width int, layout string) (cell, error) {
	var s string
	if v.kind == KindTime {
		if v.t.IsZero() {
			s = strings.Repeat("0", width)
		} else {
			s = v.t.Format(layout)
		}
	} else {
		s = v.s
		if s == "" {
			s = strings.Repeat("0", width)
		}
		if len(s) > width {
			return cell{}, tooLong(sh, uint64(len(s)), uint64(width))
		}
		if len(s) != width || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			return cell{}, fmt.Errorf("%w: %s %s takes %s, got %q", ErrTypeMismatch, sh.typ, sh.name, layout, s)
		}
	}
	u, err := rfcapi.Chars(s)
	if err != nil {
		return cell{}, err
	}
	return cell{units: u}, nil
}

func encodeDecimal(x *apd.Decimal, sh shape) (cell, error) {
	if x.Form != apd.Finite {
		return cell{}, fmt.Errorf("%w: %s %s cannot hold %s", ErrTypeMismatch, sh.typ, sh.name, x.Text('f'))
	}
	d, _ := new(apd.Decimal).Reduce(x)
	digits := d.NumDigits()
	frac := int64(0)
	if d.Exponent < 0 {
		frac = int64(-d.Exponent)
	}

	switch sh.typ {
	case rfcapi.TypeBCD:
		if frac > int64(sh.decimals) {
			return cell{}, fmt.Errorf("%w: %s has %d decimals, got %d", ErrValueTooLong, sh.name, sh.decimals, frac)
		}
		intDigits := max(digits+int64(d.Exponent), 0)
		if limit := 2*int64(sh.nuc) - 1; intDigits+int64(sh.decimals) > limit {
			return cell{}, tooLong(sh, uint64(intDigits+int64(sh.decimals)), uint64(limit))
		}
	case rfcapi.TypeDecF16:
		if digits > 16 {
			return cell{}, tooLong(sh, uint64(digits), 16)
		}
	case rfcapi.TypeDecF34:
		if digits > 34 {
			return cell{}, tooLong(sh, uint64(digits), 34)
		}
	}

	u, err := rfcapi.Chars(d.Text('f'))
	if err != nil {
		return cell{}, err
	}
	return cell{units: u}, nil
}

// encodeRecord encodes the fields present in rec in offset order. Fields
// missing from rec are not touched.
func encodeRecord(rec Record, td *TypeDescription) ([]fieldCell, error) {
	if td == nil {
		return nil, fmt.Errorf("%w: no line type", ErrTypeMismatch)
	}
	byName := make(map[string]Value, len(rec))
	for k, v := range rec {
		i := td.FieldIndex(k)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s has no field %s", ErrUnknownParameter, td.Name, k)
		}
		name := td.fields[i].Name
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("%w: field %s given twice", ErrTypeMismatch, name)
		}
		byName[name] = v
	}

	out := make([]fieldCell, 0, len(byName))
	for _, f := range td.ordered {
		v, ok := byName[f.Name]
		if !ok {
			continue
		}
		sh := f.shape()
		c, err := encode(v, sh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", td.Name, err)
		}
		out = append(out, fieldCell{sh: sh, c: c})
	}
	return out, nil
}

// decode converts a loaded cell back to a Value.
func decode(c cell, sh shape) (Value, error) {
	switch sh.typ {
	case rfcapi.TypeChar:
		return String(strings.TrimRight(rfcapi.String(c.units), " ")), nil

	case rfcapi.TypeString, rfcapi.TypeNum:
		return String(rfcapi.String(c.units)), nil

	case rfcapi.TypeDate:
		s := strings.TrimSpace(rfcapi.String(c.units))
		if strings.Trim(s, "0") == "" {
			return Time(time.Time{}), nil
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: DATE %s holds %q", ErrTypeMismatch, sh.name, s)
		}
		return Time(t), nil

	case rfcapi.TypeTime:
		s := strings.TrimSpace(rfcapi.String(c.units))
		if s == "" {
			s = "000000"
		}
		t, err := time.Parse(timeLayout, s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: TIME %s holds %q", ErrTypeMismatch, sh.name, s)
		}
		return Time(t), nil

	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		s := strings.TrimSpace(rfcapi.String(c.units))
		if s == "" {
			s = "0"
		}
		return ParseDecimal(s)

	case rfcapi.TypeByte, rfcapi.TypeXString:
		return Value{kind: KindBytes, b: c.raw}, nil

	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		return Int(c.i), nil

	case rfcapi.TypeFloat:
		return Float(c.f), nil

	case rfcapi.TypeStructure:
		rec, err := decodeRecord(c.fields)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", sh.name, err)
		}
		return Struct(rec), nil

	case rfcapi.TypeTable:
		rows := make([]Record, len(c.rows))
		for i, r := range c.rows {
			rec, err := decodeRecord(r)
			if err != nil {
				return Value{}, fmt.Errorf("%s row %d: %w", sh.name, i, err)
			}
			rows[i] = rec
		}
		return Rows(rows...), nil
	}
	return Value{}, fmt.Errorf("%w: %s %s is not supported", ErrTypeMismatch, sh.typ, sh.name)
}

func decodeRecord(fields []fieldCell) (Record, error) {
	rec := make(Record, len(fields))
	for _, fc := range fields {
		v, err := decode(fc.c, fc.sh)
		if err != nil {
			return nil, err
		}
		rec[fc.sh.name] = v
	}
	return rec, nil
}

var (
	empty16 [1]uint16
	empty8  [1]byte
)

// ptr16 returns the address of the first unit, or of a zero unit when u is
// empty, so the library never sees a NULL value pointer.
func ptr16(u []uint16) *uint16 {
	if len(u) == 0 {
		return &empty16[0]
	}
	return &u[0]
}

func ptr8(b []byte) *byte {
	if len(b) == 0 {
		return &empty8[0]
	}
	return &b[0]
}

// store writes an encoded cell into the container h through the setter of
// its type. Structures and tables are filled through the child handles the
// container owns.
func store(api *rfcapi.API, h rfcapi.Handle, sh shape, c cell) error {
	var ei rfcapi.ErrorInfo
	var rc rfcapi.RC
	name := &sh.nameZ[0]
	n := uint32(len(c.units))

	switch sh.typ {
	case rfcapi.TypeChar:
		rc = api.SetChars(h, name, ptr16(c.units), n, &ei)
	case rfcapi.TypeNum:
		rc = api.SetNum(h, name, ptr16(c.units), n, &ei)
	case rfcapi.TypeString, rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		rc = api.SetString(h, name, ptr16(c.units), n, &ei)
	case rfcapi.TypeDate:
		rc = api.SetDate(h, name, ptr16(c.units), &ei)
	case rfcapi.TypeTime:
		rc = api.SetTime(h, name, ptr16(c.units), &ei)
	case rfcapi.TypeByte:
		rc = api.SetBytes(h, name, ptr8(c.raw), uint32(len(c.raw)), &ei)
	case rfcapi.TypeXString:
		rc = api.SetXString(h, name, ptr8(c.raw), uint32(len(c.raw)), &ei)
	case rfcapi.TypeInt:
		rc = api.SetInt(h, name, int32(c.i), &ei)
	case rfcapi.TypeInt1:
		rc = api.SetInt1(h, name, uint8(c.i), &ei)
	case rfcapi.TypeInt2:
		rc = api.SetInt2(h, name, int16(c.i), &ei)
	case rfcapi.TypeInt8:
		rc = api.SetInt8(h, name, c.i, &ei)
	case rfcapi.TypeFloat:
		rc = api.SetFloat(h, name, c.f, &ei)

	case rfcapi.TypeStructure:
		if c.st != nil {
			err := c.st.g.borrow(func(st rfcapi.Handle) error {
				return check(api.SetStructure(h, name, st, &ei), "set "+sh.name, &ei)
			})
			if err != nil {
				return err
			}
			c.st.g.release()
			return nil
		}
		var child rfcapi.Handle
		if rc = api.GetStructure(h, name, &child, &ei); rc == rfcapi.RCOk {
			return storeFields(api, child, c.fields)
		}

	case rfcapi.TypeTable:
		if c.table != nil {
			err := c.table.g.borrow(func(tab rfcapi.Handle) error {
				return check(api.SetTable(h, name, tab, &ei), "set "+sh.name, &ei)
			})
			if err != nil {
				return err
			}
			// The container holds its own copy now.
			c.table.g.release()
			return nil
		}
		var tab rfcapi.Handle
		if rc = api.GetTable(h, name, &tab, &ei); rc != rfcapi.RCOk {
			break
		}
		if rc = api.DeleteAllRows(tab, &ei); rc != rfcapi.RCOk {
			break
		}
		for _, fields := range c.rows {
			row := api.AppendNewRow(tab, &ei)
			if row == 0 {
				return check(rfcapi.RCIllegalState, "append row to "+sh.name, &ei)
			}
			if err := storeFields(api, row, fields); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: %s %s is not supported", ErrTypeMismatch, sh.typ, sh.name)
	}
	return check(rc, "set "+sh.name, &ei)
}

func storeFields(api *rfcapi.API, h rfcapi.Handle, fields []fieldCell) error {
	for _, fc := range fields {
		if err := store(api, h, fc.sh, fc.c); err != nil {
			return err
		}
	}
	return nil
}

// load reads the field sh of container h through the getter of its type.
func load(api *rfcapi.API, h rfcapi.Handle, sh shape) (cell, error) {
	var ei rfcapi.ErrorInfo
	var rc rfcapi.RC
	var c cell
	name := &sh.nameZ[0]

	switch sh.typ {
	case rfcapi.TypeChar:
		c.units = make([]uint16, sh.uc/2)
		rc = api.GetChars(h, name, ptr16(c.units), uint32(len(c.units)), &ei)
	case rfcapi.TypeNum:
		c.units = make([]uint16, sh.uc/2)
		rc = api.GetNum(h, name, ptr16(c.units), uint32(len(c.units)), &ei)
	case rfcapi.TypeDate:
		c.units = make([]uint16, rfcapi.DateLen)
		rc = api.GetDate(h, name, &c.units[0], &ei)
	case rfcapi.TypeTime:
		c.units = make([]uint16, rfcapi.TimeLen)
		rc = api.GetTime(h, name, &c.units[0], &ei)

	case rfcapi.TypeString:
		var n uint32
		if rc = api.GetStringLength(h, name, &n, &ei); rc != rfcapi.RCOk {
			break
		}
		buf := make([]uint16, n+1)
		var got uint32
		rc = api.GetString(h, name, &buf[0], n+1, &got, &ei)
		c.units = buf[:min(got, n)]

	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		size := max(2*sh.nuc+3, 64)
		for {
			buf := make([]uint16, size)
			var got uint32
			rc = api.GetString(h, name, &buf[0], size, &got, &ei)
			if rc == rfcapi.RCBufferTooSmall && got >= size {
				size = got + 1
				ei = rfcapi.ErrorInfo{}
				continue
			}
			c.units = buf[:min(got, size)]
			break
		}

	case rfcapi.TypeByte:
		c.raw = make([]byte, sh.uc)
		rc = api.GetBytes(h, name, ptr8(c.raw), sh.uc, &ei)

	case rfcapi.TypeXString:
		var n uint32
		if rc = api.GetStringLength(h, name, &n, &ei); rc != rfcapi.RCOk {
			break
		}
		buf := make([]byte, n)
		var got uint32
		rc = api.GetXString(h, name, ptr8(buf), n, &got, &ei)
		c.raw = buf[:min(got, n)]

	case rfcapi.TypeInt:
		var x int32
		rc = api.GetInt(h, name, &x, &ei)
		c.i = int64(x)
	case rfcapi.TypeInt1:
		var x uint8
		rc = api.GetInt1(h, name, &x, &ei)
		c.i = int64(x)
	case rfcapi.TypeInt2:
		var x int16
		rc = api.GetInt2(h, name, &x, &ei)
		c.i = int64(x)
	case rfcapi.TypeInt8:
		rc = api.GetInt8(h, name, &c.i, &ei)
	case rfcapi.TypeFloat:
		rc = api.GetFloat(h, name, &c.f, &ei)

	case rfcapi.TypeStructure:
		var child rfcapi.Handle
		if rc = api.GetStructure(h, name, &child, &ei); rc != rfcapi.RCOk {
			break
		}
		fields, err := loadFields(api, child, sh.td)
		if err != nil {
			return cell{}, err
		}
		c.fields = fields

	case rfcapi.TypeTable:
		var tab rfcapi.Handle
		if rc = api.GetTable(h, name, &tab, &ei); rc != rfcapi.RCOk {
			break
		}
		rows, err := loadRows(api, tab, sh.td)
		if err != nil {
			return cell{}, err
		}
		c.rows = rows

	default:
		return cell{}, fmt.Errorf("%w: %s %s is not supported", ErrTypeMismatch, sh.typ, sh.name)
	}
	if err := check(rc, "get "+sh.name, &ei); err != nil {
		return cell{}, err
	}
	return c, nil
}

func loadFields(api *rfcapi.API, h rfcapi.Handle, td *TypeDescription) ([]fieldCell, error) {
	if td == nil {
		return nil, fmt.Errorf("%w: no line type", ErrTypeMismatch)
	}
	out := make([]fieldCell, 0, len(td.fields))
	for _, f := range td.fields {
		sh := f.shape()
		c, err := load(api, h, sh)
		if err != nil {
			return nil, err
		}
		out = append(out, fieldCell{sh: sh, c: c})
	}
	return out, nil
}

func loadRows(api *rfcapi.API, tab rfcapi.Handle, td *TypeDescription) ([][]fieldCell, error) {
	var ei rfcapi.ErrorInfo
	var count uint32
	if err := check(api.GetRowCount(tab, &count, &ei), "get row count", &ei); err != nil {
		return nil, err
	}
	rows := make([][]fieldCell, 0, count)
	for i := uint32(0); i < count; i++ {
		row, err := currentRow(api, tab, i)
		if err != nil {
			return nil, err
		}
		fields, err := loadFields(api, row, td)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

// currentRow moves the cursor of tab to index and returns the row handle.
func currentRow(api *rfcapi.API, tab rfcapi.Handle, index uint32) (rfcapi.Handle, error) {
	var ei rfcapi.ErrorInfo
	if err := check(api.MoveTo(tab, index, &ei), "move to row", &ei); err != nil {
		return 0, err
	}
	row := api.GetCurrentRow(tab, &ei)
	if row == 0 {
		return 0, check(rfcapi.RCIllegalState, "get current row", &ei)
	}
	return row, nil
}
