package sim

import (
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

type conn struct {
	host   string
	client string
	user   string
	lang   string
	broken bool
}

// container holds the fields of a function, a structure or a table row.
type container struct {
	owned bool
	fn    *funcDef
	td    *typeDef
	slots map[string]*slot
}

type table struct {
	td    *typeDef
	owned bool
	rows  []rfcapi.Handle
	cur   int
}

// slot is the storage of one field. Which members are used depends on the
// field type.
type slot struct {
	def   *fieldDef
	chars []uint16 // CHAR, NUM, DATE, TIME
	str   []uint16 // STRING
	dec   *apd.Decimal
	raw   []byte
	i     int64
	f     float64
	child rfcapi.Handle // STRUCTURE, TABLE
}

func chars(s string) []uint16 {
	u, _ := rfcapi.Chars(s)
	return u
}

func repeat(c uint16, n int) []uint16 {
	u := make([]uint16, n)
	for i := range u {
		u[i] = c
	}
	return u
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// newContainer allocates a container with every field at its initial
// value. Callers hold s.mu.
func (s *System) newContainer(owned bool, defs []fieldDef) (rfcapi.Handle, *container) {
	c := &container{owned: owned, slots: make(map[string]*slot, len(defs))}
	for i := range defs {
		c.slots[defs[i].name] = s.newSlot(&defs[i])
	}
	return s.alloc(c), c
}

func (s *System) newSlot(d *fieldDef) *slot {
	sl := &slot{def: d}
	switch d.typ {
	case rfcapi.TypeChar:
		sl.chars = repeat(' ', int(d.length))
	case rfcapi.TypeNum:
		sl.chars = repeat('0', int(d.length))
	case rfcapi.TypeDate:
		sl.chars = repeat('0', rfcapi.DateLen)
	case rfcapi.TypeTime:
		sl.chars = repeat('0', rfcapi.TimeLen)
	case rfcapi.TypeByte:
		sl.raw = make([]byte, d.length)
	case rfcapi.TypeBCD:
		sl.dec = apd.New(0, -int32(d.decimals))
	case rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		sl.dec = apd.New(0, 0)
	case rfcapi.TypeStructure:
		sl.child, _ = s.newContainer(false, d.td.fields)
	case rfcapi.TypeTable:
		sl.child = s.newTable(d.td, false)
	}
	return sl
}

func (s *System) newTable(td *typeDef, owned bool) rfcapi.Handle {
	return s.alloc(&table{td: td, owned: owned, cur: -1})
}

// free removes h and everything it contains.
func (s *System) free(h rfcapi.Handle) {
	switch o := s.objects[h].(type) {
	case *container:
		for _, sl := range o.slots {
			if sl.child != 0 {
				s.free(sl.child)
			}
		}
	case *table:
		for _, r := range o.rows {
			s.free(r)
		}
	}
	delete(s.objects, h)
}

func (s *System) appendRow(t *table) (rfcapi.Handle, *container) {
	h, c := s.newContainer(false, t.td.fields)
	c.td = t.td
	t.rows = append(t.rows, h)
	t.cur = len(t.rows) - 1
	return h, c
}

func (s *System) clearTable(t *table) {
	for _, r := range t.rows {
		s.free(r)
	}
	t.rows = nil
	t.cur = -1
}

func (s *System) row(t *table, i int) *container {
	return s.objects[t.rows[i]].(*container)
}

func (s *System) childContainer(sl *slot) *container {
	return s.objects[sl.child].(*container)
}

func (s *System) childTable(sl *slot) *table {
	return s.objects[sl.child].(*table)
}

// containerOf resolves a data container handle. A table handle stands for
// its current row.
func (s *System) containerOf(h rfcapi.Handle) (*container, *fault) {
	switch o := s.objects[h].(type) {
	case *container:
		return o, nil
	case *table:
		if o.cur < 0 || o.cur >= len(o.rows) {
			return nil, failf(rfcapi.RCIllegalState, "RFC_ILLEGAL_STATE", "Table has no current row")
		}
		return s.row(o, o.cur), nil
	}
	return nil, invalidHandle("data container", h)
}

func (s *System) slotOf(h rfcapi.Handle, name *uint16) (*slot, *fault) {
	c, f := s.containerOf(h)
	if f != nil {
		return nil, f
	}
	n := rfcapi.StringZ(name)
	sl, ok := c.slots[n]
	if !ok {
		return nil, failf(rfcapi.RCInvalidParameter, "RFC_INVALID_PARAMETER", "field %s not found", n)
	}
	return sl, nil
}

// copyInto copies every field of src into the field of the same name in dst.
func (s *System) copyInto(dst, src *container) {
	for name, ss := range src.slots {
		if ds, ok := dst.slots[name]; ok {
			s.copySlot(ds, ss)
		}
	}
}

func (s *System) copySlot(ds, ss *slot) {
	ds.chars = slices.Clone(ss.chars)
	ds.str = slices.Clone(ss.str)
	ds.raw = slices.Clone(ss.raw)
	ds.i, ds.f = ss.i, ss.f
	if ss.dec != nil {
		ds.dec = new(apd.Decimal).Set(ss.dec)
	}
	switch ss.def.typ {
	case rfcapi.TypeStructure:
		s.copyInto(s.childContainer(ds), s.childContainer(ss))
	case rfcapi.TypeTable:
		s.copyTable(s.childTable(ds), s.childTable(ss))
	}
}

func (s *System) copyTable(dst, src *table) {
	s.clearTable(dst)
	for _, r := range src.rows {
		_, c := s.appendRow(dst)
		s.copyInto(c, s.objects[r].(*container))
	}
}

func (sl *slot) conversion(value string) *fault {
	return failf(rfcapi.RCConversionFailure, "RFC_CONVERSION_FAILURE",
		"Cannot convert %q to %s field %s", value, sl.def.typ, sl.def.name)
}

func (sl *slot) overflow(value string) *fault {
	return failf(rfcapi.RCBufferTooSmall, "RFC_BUFFER_TOO_SMALL",
		"Value %q does not fit into %s field %s", value, sl.def.typ, sl.def.name)
}

func (sl *slot) width() int {
	switch sl.def.typ {
	case rfcapi.TypeDate:
		return rfcapi.DateLen
	case rfcapi.TypeTime:
		return rfcapi.TimeLen
	default:
		return int(sl.def.length)
	}
}

// setText assigns a character value, converting it to the field type.
func (sl *slot) setText(u []uint16) *fault {
	text := rfcapi.String(u)
	switch sl.def.typ {
	case rfcapi.TypeChar:
		if len(u) > sl.width() {
			return sl.overflow(text)
		}
		sl.chars = append(slices.Clone(u), repeat(' ', sl.width()-len(u))...)

	case rfcapi.TypeNum:
		t := strings.TrimSpace(text)
		if !digits(t) {
			return sl.conversion(text)
		}
		if len(t) > sl.width() {
			return sl.overflow(text)
		}
		sl.chars = chars(strings.Repeat("0", sl.width()-len(t)) + t)

	case rfcapi.TypeDate, rfcapi.TypeTime:
		w := sl.width()
		t := strings.TrimSpace(text)
		if t == "" {
			t = strings.Repeat("0", w)
		}
		if len(t) != w || !digits(t) {
			return sl.conversion(text)
		}
		sl.chars = chars(t)

	case rfcapi.TypeString:
		sl.str = slices.Clone(u)

	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		t := strings.TrimSpace(text)
		if t == "" {
			t = "0"
		}
		x, _, err := apd.NewFromString(t)
		if err != nil {
			return sl.conversion(text)
		}
		return sl.setDecimal(x)

	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return sl.conversion(text)
		}
		return sl.setInt(i)

	case rfcapi.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return sl.conversion(text)
		}
		sl.f = f

	case rfcapi.TypeByte, rfcapi.TypeXString:
		b, err := hex.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return sl.conversion(text)
		}
		return sl.setBytes(b)

	default:
		return sl.conversion(text)
	}
	return nil
}

// text returns the character form of the field.
func (sl *slot) text() []uint16 {
	switch sl.def.typ {
	case rfcapi.TypeChar, rfcapi.TypeNum, rfcapi.TypeDate, rfcapi.TypeTime:
		return slices.Clone(sl.chars)
	case rfcapi.TypeString:
		return slices.Clone(sl.str)
	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		return chars(sl.dec.Text('f'))
	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		return chars(strconv.FormatInt(sl.i, 10))
	case rfcapi.TypeFloat:
		return chars(strconv.FormatFloat(sl.f, 'g', -1, 64))
	case rfcapi.TypeByte, rfcapi.TypeXString:
		return chars(strings.ToUpper(hex.EncodeToString(sl.raw)))
	}
	return nil
}

// goString is the text of the field with CHAR padding removed.
func (sl *slot) goString() string {
	s := rfcapi.String(sl.text())
	if sl.def.typ == rfcapi.TypeChar {
		s = strings.TrimRight(s, " ")
	}
	return s
}

func (sl *slot) setString(s string) *fault {
	return sl.setText(chars(s))
}

func (sl *slot) setInt(i int64) *fault {
	text := strconv.FormatInt(i, 10)
	switch sl.def.typ {
	case rfcapi.TypeInt1:
		if i < 0 || i > 255 {
			return sl.overflow(text)
		}
	case rfcapi.TypeInt2:
		if i < -1<<15 || i > 1<<15-1 {
			return sl.overflow(text)
		}
	case rfcapi.TypeInt:
		if i < -1<<31 || i > 1<<31-1 {
			return sl.overflow(text)
		}
	case rfcapi.TypeInt8:
	case rfcapi.TypeNum, rfcapi.TypeChar, rfcapi.TypeString:
		return sl.setString(text)
	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		return sl.setDecimal(apd.New(i, 0))
	case rfcapi.TypeFloat:
		sl.f = float64(i)
		return nil
	default:
		return sl.conversion(text)
	}
	sl.i = i
	return nil
}

func (sl *slot) intValue() (int64, *fault) {
	switch sl.def.typ {
	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		return sl.i, nil
	case rfcapi.TypeNum:
		i, err := strconv.ParseInt(rfcapi.String(sl.chars), 10, 64)
		if err != nil {
			return 0, sl.conversion(rfcapi.String(sl.chars))
		}
		return i, nil
	}
	return 0, sl.conversion(rfcapi.String(sl.text()))
}

func (sl *slot) setFloat(f float64) *fault {
	switch sl.def.typ {
	case rfcapi.TypeFloat:
		sl.f = f
		return nil
	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		x, err := new(apd.Decimal).SetFloat64(f)
		if err != nil {
			return sl.conversion(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return sl.setDecimal(x)
	}
	return sl.conversion(strconv.FormatFloat(f, 'g', -1, 64))
}

func (sl *slot) floatValue() (float64, *fault) {
	switch sl.def.typ {
	case rfcapi.TypeFloat:
		return sl.f, nil
	case rfcapi.TypeInt, rfcapi.TypeInt1, rfcapi.TypeInt2, rfcapi.TypeInt8:
		return float64(sl.i), nil
	case rfcapi.TypeBCD, rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		f, err := sl.dec.Float64()
		if err != nil {
			return 0, sl.conversion(sl.dec.Text('f'))
		}
		return f, nil
	}
	return 0, sl.conversion(rfcapi.String(sl.text()))
}

// setDecimal stores x with the precision of the field. BCD values are
// rounded half up to the declared decimals.
func (sl *slot) setDecimal(x *apd.Decimal) *fault {
	out := new(apd.Decimal)
	switch sl.def.typ {
	case rfcapi.TypeBCD:
		ctx := apd.BaseContext.WithPrecision(64)
		ctx.Rounding = apd.RoundHalfUp
		if _, err := ctx.Quantize(out, x, -int32(sl.def.decimals)); err != nil {
			return sl.overflow(x.Text('f'))
		}
		if out.NumDigits() > int64(2*sl.def.length-1) {
			return sl.overflow(x.Text('f'))
		}
	case rfcapi.TypeDecF16, rfcapi.TypeDecF34:
		precision := uint32(16)
		if sl.def.typ == rfcapi.TypeDecF34 {
			precision = 34
		}
		ctx := apd.BaseContext.WithPrecision(precision)
		ctx.Rounding = apd.RoundHalfEven
		if _, err := ctx.Round(out, x); err != nil {
			return sl.overflow(x.Text('f'))
		}
	default:
		return sl.conversion(x.Text('f'))
	}
	sl.dec = out
	return nil
}

func (sl *slot) setBytes(b []byte) *fault {
	switch sl.def.typ {
	case rfcapi.TypeByte:
		if len(b) > sl.width() {
			return sl.overflow(strings.ToUpper(hex.EncodeToString(b)))
		}
		sl.raw = make([]byte, sl.width())
		copy(sl.raw, b)
	case rfcapi.TypeXString:
		sl.raw = slices.Clone(b)
	default:
		return sl.conversion(strings.ToUpper(hex.EncodeToString(b)))
	}
	return nil
}
