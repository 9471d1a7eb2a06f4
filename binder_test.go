package nwrfc_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

// TestUnknownParameterNoForeignCall tests that a bad name is rejected locally
func TestUnknownParameterNoForeignCall(t *testing.T) {
	s, conn := openSim(t)
	fc := newCall(t, conn, "STFC_CONNECTION")

	before := s.ForeignCalls()
	err := fc.Set("NO_SUCH_PARAM", nwrfc.String("x"))
	if !errors.Is(err, nwrfc.ErrUnknownParameter) {
		t.Fatalf("Set() error = %v, want ErrUnknownParameter", err)
	}
	if _, err := fc.Get("NO_SUCH_PARAM"); !errors.Is(err, nwrfc.ErrUnknownParameter) {
		t.Errorf("Get() error = %v, want ErrUnknownParameter", err)
	}
	if after := s.ForeignCalls(); after != before {
		t.Errorf("foreign calls went from %d to %d", before, after)
	}
}

// TestDirectionMismatch tests that exports cannot be set and imports cannot be read
func TestDirectionMismatch(t *testing.T) {
	s, conn := openSim(t)
	fc := newCall(t, conn, "STFC_CONNECTION")

	before := s.ForeignCalls()
	if err := fc.Set("ECHOTEXT", nwrfc.String("x")); !errors.Is(err, nwrfc.ErrDirectionMismatch) {
		t.Errorf("Set(ECHOTEXT) error = %v, want ErrDirectionMismatch", err)
	}
	if _, err := fc.Get("REQUTEXT"); !errors.Is(err, nwrfc.ErrDirectionMismatch) {
		t.Errorf("Get(REQUTEXT) error = %v, want ErrDirectionMismatch", err)
	}
	if err := fc.Set("REQUTEXT", nwrfc.Int(1)); !errors.Is(err, nwrfc.ErrTypeMismatch) {
		t.Errorf("Set(REQUTEXT, Int) error = %v, want ErrTypeMismatch", err)
	}
	if s.ForeignCalls() != before {
		t.Error("rejected bindings must not reach the library")
	}
}

// TestValueTooLongLeavesOthers tests that a rejected value changes nothing
func TestValueTooLongLeavesOthers(t *testing.T) {
	_, conn := openSim(t)
	fc := newCall(t, conn, "STFC_CONNECTION")

	if err := fc.Set("requtext", nwrfc.String("kept")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if !fc.Bound("REQUTEXT") {
		t.Error("Bound(REQUTEXT) should be true after Set")
	}
	err := fc.Set("REQUTEXT", nwrfc.String(strings.Repeat("x", 256)))
	if !errors.Is(err, nwrfc.ErrValueTooLong) {
		t.Fatalf("Set() error = %v, want ErrValueTooLong", err)
	}
	if err := fc.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
	echo, err := fc.Get("ECHOTEXT")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got := str(t, echo); got != "kept" {
		t.Errorf("ECHOTEXT = %q, want %q", got, "kept")
	}
}

// TestSetAllIsAtomic tests that SetAll binds nothing when one value is invalid
func TestSetAllIsAtomic(t *testing.T) {
	s, conn := openSim(t)
	fc := newCall(t, conn, "STFC_CHANGING")

	before := s.ForeignCalls()
	err := fc.SetAll(nwrfc.Record{
		"START_VALUE": nwrfc.Int(1),
		"COUNTER":     nwrfc.String("nope"),
	})
	if !errors.Is(err, nwrfc.ErrTypeMismatch) {
		t.Fatalf("SetAll() error = %v, want ErrTypeMismatch", err)
	}
	if s.ForeignCalls() != before || fc.Bound("START_VALUE") {
		t.Error("SetAll must validate every value before binding any")
	}
}

// TestChangingParameter tests a parameter that is both written and read
func TestChangingParameter(t *testing.T) {
	_, conn := openSim(t)
	out, err := conn.Call(context.Background(), "STFC_CHANGING", nwrfc.Record{
		"START_VALUE": nwrfc.Int(40),
		"COUNTER":     nwrfc.Int(2),
	})
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if r, _ := out["RESULT"].AsInt(); r != 42 {
		t.Errorf("RESULT = %d, want 42", r)
	}
	if c, _ := out["COUNTER"].AsInt(); c != 3 {
		t.Errorf("COUNTER = %d, want 3", c)
	}
	if _, ok := out["START_VALUE"]; ok {
		t.Error("import parameters should not be returned")
	}
}

// TestStructureRoundTrip tests a flat structure through STFC_STRUCTURE
func TestStructureRoundTrip(t *testing.T) {
	_, conn := openSim(t)
	in := nwrfc.Record{
		"RFCFLOAT": nwrfc.Float(1.5),
		"RFCCHAR1": nwrfc.String("A"),
		"RFCINT2":  nwrfc.Int(-300),
		"RFCINT1":  nwrfc.Int(255),
		"RFCCHAR4": nwrfc.String("ABCD"),
		"RFCINT4":  nwrfc.Int(1 << 30),
		"RFCHEX3":  nwrfc.Bytes([]byte{0xDE, 0xAD, 0x01}),
		"RFCCHAR2": nwrfc.String("Z"),
		"RFCTIME":  nwrfc.String("101112"),
		"RFCDATE":  nwrfc.Time(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)),
		"RFCDATA1": nwrfc.String("first"),
		"RFCDATA2": nwrfc.String("second"),
	}
	out, err := conn.Call(context.Background(), "STFC_STRUCTURE", nwrfc.Record{
		"IMPORTSTRUCT": nwrfc.Struct(in),
		"RFCTABLE":     nwrfc.Rows(nwrfc.Record{"RFCCHAR4": nwrfc.String("ROW1")}),
	})
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	echo, err := out["ECHOSTRUCT"].AsRecord()
	if err != nil {
		t.Fatalf("ECHOSTRUCT: %v", err)
	}
	want := nwrfc.Record{}
	for k, v := range in {
		want[k] = v
	}
	want["RFCTIME"] = nwrfc.Time(time.Date(0, 1, 1, 10, 11, 12, 0, time.UTC))
	if !echo.Equal(want) {
		t.Errorf("ECHOSTRUCT = %v\nwant %v", echo, want)
	}

	rows, err := out["RFCTABLE"].AsRows()
	if err != nil {
		t.Fatalf("RFCTABLE: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("RFCTABLE has %d rows, want 2", len(rows))
	}
	if got := str(t, rows[0]["RFCCHAR4"]); got != "ROW1" {
		t.Errorf("row 0 RFCCHAR4 = %q", got)
	}
	if !rows[1].Equal(want) {
		t.Errorf("row 1 = %v, want the import structure", rows[1])
	}
}

// TestDeepStructure tests STRING, XSTRING and INT8 fields
func TestDeepStructure(t *testing.T) {
	_, conn := openSim(t)
	blob := bytes.Repeat([]byte{0xAB}, 1000)
	long := strings.Repeat("ä", 300)
	out, err := conn.Call(context.Background(), "STFC_DEEP_STRUCTURE", nwrfc.Record{
		"IMPORTSTRUCT": nwrfc.Struct(nwrfc.Record{
			"I":    nwrfc.Int(-7),
			"C":    nwrfc.String("X"),
			"STR":  nwrfc.String(long),
			"XSTR": nwrfc.Bytes(blob),
			"I8":   nwrfc.Int(1 << 40),
		}),
	})
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	echo, _ := out["ECHOSTRUCT"].AsRecord()
	if got := str(t, echo["STR"]); got != long {
		t.Errorf("STR has %d runes, want %d", len([]rune(got)), len([]rune(long)))
	}
	if got, _ := echo["XSTR"].AsBytes(); !bytes.Equal(got, blob) {
		t.Errorf("XSTR has %d bytes, want %d", len(got), len(blob))
	}
	if got, _ := echo["I8"].AsInt(); got != 1<<40 {
		t.Errorf("I8 = %d", got)
	}
}

// TestStructureAccess tests reading a structure parameter in place
func TestStructureAccess(t *testing.T) {
	_, conn := openSim(t)
	fc := newCall(t, conn, "STFC_STRUCTURE")
	fc.MustSet("IMPORTSTRUCT", nwrfc.Struct(nwrfc.Record{"RFCCHAR4": nwrfc.String("ABC")}))
	fc.MustInvoke(context.Background())

	st, err := fc.Structure("ECHOSTRUCT")
	if err != nil {
		t.Fatalf("Structure() failed: %v", err)
	}
	v, err := st.Get("rfcchar4")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got := str(t, v); got != "ABC" {
		t.Errorf("RFCCHAR4 = %q", got)
	}

	fc.Close()
	if st.Valid() {
		t.Error("a borrowed structure must be invalid once its call is closed")
	}
	if _, err := st.Get("RFCCHAR4"); !errors.Is(err, nwrfc.ErrUseAfterRelease) {
		t.Errorf("Get() after Close = %v, want ErrUseAfterRelease", err)
	}
}

// TestAttachTable tests that a standalone table is consumed by Set
func TestAttachTable(t *testing.T) {
	s, conn := openSim(t)
	fd := lookup(t, conn, "RFC_READ_TABLE")
	fields, err := conn.Library().NewTable(fd.Parameter("FIELDS").TypeDesc)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	for _, name := range []string{"MANDT", "MTEXT"} {
		fields.MustAppendRow(nwrfc.Record{"FIELDNAME": nwrfc.String(name)})
	}

	fc, err := conn.NewCall(fd)
	if err != nil {
		t.Fatalf("NewCall() failed: %v", err)
	}
	defer fc.Close()
	fc.MustSet("QUERY_TABLE", nwrfc.String("T000"))
	if err := fc.Set("FIELDS", nwrfc.FromTable(fields)); err != nil {
		t.Fatalf("Set(FIELDS) failed: %v", err)
	}
	if fields.Valid() {
		t.Error("an attached table is consumed")
	}
	if _, err := fields.RowCount(); !errors.Is(err, nwrfc.ErrUseAfterRelease) {
		t.Errorf("RowCount() after attach = %v, want ErrUseAfterRelease", err)
	}

	fc.MustInvoke(context.Background())
	out := fc.MustTable("FIELDS")
	if n := out.MustRowCount(); n != 2 {
		t.Errorf("FIELDS has %d rows, want 2", n)
	}
	if s.Stats().Open[sim.KindConnection] != 1 || s.OpenHandles() != 2 {
		t.Errorf("open handles = %v, want the connection and the call", s.Stats().Open)
	}
}

// TestAttachWrongLineType tests that a table of another line type is rejected
func TestAttachWrongLineType(t *testing.T) {
	_, conn := openSim(t)
	fd := lookup(t, conn, "RFC_READ_TABLE")
	opts, err := conn.Library().NewTable(fd.Parameter("OPTIONS").TypeDesc)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	defer opts.Close()

	fc := newCall(t, conn, "RFC_READ_TABLE")
	if err := fc.Set("FIELDS", nwrfc.FromTable(opts)); !errors.Is(err, nwrfc.ErrTypeMismatch) {
		t.Errorf("Set() error = %v, want ErrTypeMismatch", err)
	}
	if !opts.Valid() {
		t.Error("a rejected table stays with its owner")
	}
}

// TestAttachStructure tests that a standalone structure is copied into an
// import parameter and consumed
func TestAttachStructure(t *testing.T) {
	s, conn := openSim(t)
	fd := lookup(t, conn, "STFC_STRUCTURE")
	st, err := conn.Library().NewStructure(fd.Parameter("IMPORTSTRUCT").TypeDesc)
	if err != nil {
		t.Fatalf("NewStructure() failed: %v", err)
	}
	if err := st.SetRecord(nwrfc.Record{
		"RFCCHAR4": nwrfc.String("WXYZ"),
		"RFCINT4":  nwrfc.Int(4711),
		"RFCDATA1": nwrfc.String("standalone"),
	}); err != nil {
		t.Fatalf("SetRecord() failed: %v", err)
	}

	fc, err := conn.NewCall(fd)
	if err != nil {
		t.Fatalf("NewCall() failed: %v", err)
	}
	defer fc.Close()
	if err := fc.Set("IMPORTSTRUCT", nwrfc.FromStructure(st)); err != nil {
		t.Fatalf("Set(IMPORTSTRUCT) failed: %v", err)
	}
	if st.Valid() {
		t.Error("an attached structure is consumed")
	}
	if _, err := st.Get("RFCINT4"); !errors.Is(err, nwrfc.ErrUseAfterRelease) {
		t.Errorf("Get() after attach = %v, want ErrUseAfterRelease", err)
	}
	if s.Stats().Open[sim.KindStructure] != 0 {
		t.Errorf("standalone structure not destroyed: %v", s.Stats().Open)
	}

	fc.MustInvoke(context.Background())
	echo, err := fc.MustGet("ECHOSTRUCT").AsRecord()
	if err != nil {
		t.Fatalf("ECHOSTRUCT: %v", err)
	}
	if got := str(t, echo["RFCCHAR4"]); got != "WXYZ" {
		t.Errorf("RFCCHAR4 = %q, want WXYZ", got)
	}
	if got, _ := echo["RFCINT4"].AsInt(); got != 4711 {
		t.Errorf("RFCINT4 = %d, want 4711", got)
	}
	if got := str(t, echo["RFCDATA1"]); got != "standalone" {
		t.Errorf("RFCDATA1 = %q, want standalone", got)
	}
}

// TestAttachWrongStructureType tests that a structure of another type is
// rejected and stays with its owner
func TestAttachWrongStructureType(t *testing.T) {
	_, conn := openSim(t)
	other := lookup(t, conn, "RFC_READ_TABLE").Parameter("OPTIONS").TypeDesc
	st, err := conn.Library().NewStructure(other)
	if err != nil {
		t.Fatalf("NewStructure() failed: %v", err)
	}
	defer st.Close()

	fc := newCall(t, conn, "STFC_STRUCTURE")
	if err := fc.Set("IMPORTSTRUCT", nwrfc.FromStructure(st)); !errors.Is(err, nwrfc.ErrTypeMismatch) {
		t.Errorf("Set() error = %v, want ErrTypeMismatch", err)
	}
	if !st.Valid() {
		t.Error("a rejected structure stays with its owner")
	}
}
