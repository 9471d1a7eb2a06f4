package sim

import (
	"strings"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// fieldDef is a structure field or, with dir set, a function parameter.
type fieldDef struct {
	name     string
	typ      rfcapi.Type
	length   uint32 // characters for CHAR/NUM, bytes for BYTE/BCD
	decimals uint32
	td       *typeDef

	nuc, uc       uint32
	nucOff, ucOff uint32

	dir      rfcapi.Direction
	optional bool
	def      string
	text     string
}

type typeDef struct {
	handle  rfcapi.Handle
	name    string
	fields  []fieldDef
	nuc, uc uint32
}

func (td *typeDef) field(name string) (*fieldDef, bool) {
	for i := range td.fields {
		if td.fields[i].name == name {
			return &td.fields[i], true
		}
	}
	return nil, false
}

type funcDef struct {
	handle rfcapi.Handle
	name   string
	params []fieldDef
	run    func(*call) *fault
}

// sizes returns the non-Unicode and Unicode byte lengths of a field.
func sizes(typ rfcapi.Type, length uint32, td *typeDef) (nuc, uc uint32) {
	switch typ {
	case rfcapi.TypeChar, rfcapi.TypeNum:
		return length, 2 * length
	case rfcapi.TypeDate:
		return rfcapi.DateLen, 2 * rfcapi.DateLen
	case rfcapi.TypeTime:
		return rfcapi.TimeLen, 2 * rfcapi.TimeLen
	case rfcapi.TypeByte, rfcapi.TypeBCD:
		return length, length
	case rfcapi.TypeInt1:
		return 1, 1
	case rfcapi.TypeInt2:
		return 2, 2
	case rfcapi.TypeInt:
		return 4, 4
	case rfcapi.TypeDecF34:
		return 16, 16
	case rfcapi.TypeStructure:
		return td.nuc, td.uc
	default:
		return 8, 8
	}
}

func alignment(typ rfcapi.Type) (nuc, uc uint32) {
	switch typ {
	case rfcapi.TypeChar, rfcapi.TypeNum, rfcapi.TypeDate, rfcapi.TypeTime:
		return 1, 2
	case rfcapi.TypeByte, rfcapi.TypeBCD, rfcapi.TypeInt1:
		return 1, 1
	case rfcapi.TypeInt2:
		return 2, 2
	case rfcapi.TypeInt:
		return 4, 4
	default:
		return 8, 8
	}
}

func align(off, a uint32) uint32 {
	return (off + a - 1) / a * a
}

func field(name string, typ rfcapi.Type, length uint32) fieldDef {
	f := fieldDef{name: name, typ: typ, length: length}
	f.nuc, f.uc = sizes(typ, length, nil)
	return f
}

func char(name string, n uint32) fieldDef { return field(name, rfcapi.TypeChar, n) }
func numc(name string, n uint32) fieldDef { return field(name, rfcapi.TypeNum, n) }
func bin(name string, n uint32) fieldDef { return field(name, rfcapi.TypeByte, n) }
func date(name string) fieldDef { return field(name, rfcapi.TypeDate, 0) }
func clock(name string) fieldDef { return field(name, rfcapi.TypeTime, 0) }
func integer(name string) fieldDef { return field(name, rfcapi.TypeInt, 0) }
func typed(name string, t rfcapi.Type) fieldDef { return field(name, t, 0) }

func packed(name string, n, decimals uint32) fieldDef {
	f := field(name, rfcapi.TypeBCD, n)
	f.decimals = decimals
	return f
}

func nested(name string, typ rfcapi.Type, td *typeDef) fieldDef {
	f := fieldDef{name: name, typ: typ, td: td}
	f.nuc, f.uc = sizes(typ, 0, td)
	return f
}

func (f fieldDef) in(dir rfcapi.Direction, text string) fieldDef {
	f.dir = dir
	f.text = text
	return f
}

func (f fieldDef) opt(def string) fieldDef {
	f.optional = true
	f.def = def
	return f
}

// defineType lays out fields and registers the type under name.
func (s *System) defineType(name string, fields ...fieldDef) *typeDef {
	td := &typeDef{name: name, fields: fields}
	var nuc, uc uint32
	var maxAlign uint32 = 1
	for i := range td.fields {
		f := &td.fields[i]
		an, au := alignment(f.typ)
		maxAlign = max(maxAlign, au)
		f.nucOff = align(nuc, an)
		f.ucOff = align(uc, au)
		nuc = f.nucOff + f.nuc
		uc = f.ucOff + f.uc
	}
	td.nuc = nuc
	td.uc = align(uc, maxAlign)
	td.handle = s.alloc(td)
	s.tdescs[td.handle] = td
	s.types[name] = td
	return td
}

func (s *System) defineFunction(name string, run func(*call) *fault, params ...fieldDef) {
	fd := &funcDef{name: name, params: params, run: run}
	fd.handle = s.alloc(fd)
	s.fdescs[fd.handle] = fd
	s.functions[name] = fd
}

func (s *System) lookupFunction(name string) (*funcDef, bool) {
	fd, ok := s.functions[strings.ToUpper(strings.TrimSpace(name))]
	return fd, ok
}

func (s *System) buildRepository() {
	s.mu.Lock()
	defer s.mu.Unlock()

	imp, exp, chg, tab := rfcapi.DirImport, rfcapi.DirExport, rfcapi.DirChanging, rfcapi.DirTables

	dbOpt := s.defineType("RFC_DB_OPT", char("TEXT", 72))
	dbFld := s.defineType("RFC_DB_FLD",
		char("FIELDNAME", 30),
		numc("OFFSET", 6),
		numc("LENGTH", 6),
		char("TYPE", 1),
		char("FIELDTEXT", 60),
	)
	tab512 := s.defineType("TAB512", char("WA", 512))
	s.defineFunction("RFC_READ_TABLE", readTable,
		char("QUERY_TABLE", 30).in(imp, "Table read"),
		char("DELIMITER", 1).in(imp, "Sign for indicating field limits in DATA").opt("SPACE"),
		char("NO_DATA", 1).in(imp, "If <> SPACE, only FIELDS is filled").opt("SPACE"),
		integer("ROWSKIPS").in(imp, "Number of rows to skip").opt("0"),
		integer("ROWCOUNT").in(imp, "Maximum number of rows, 0 for all").opt("0"),
		nested("OPTIONS", rfcapi.TypeTable, dbOpt).in(tab, "Selection entries, WHERE clauses").opt(""),
		nested("FIELDS", rfcapi.TypeTable, dbFld).in(tab, "Names (in) and structure (out) of fields read").opt(""),
		nested("DATA", rfcapi.TypeTable, tab512).in(tab, "Data read (out)"),
	)

	s.defineFunction("STFC_CONNECTION", stfcConnection,
		char("REQUTEXT", 255).in(imp, "Request text"),
		char("ECHOTEXT", 255).in(exp, "Echo of the request text"),
		char("RESPTEXT", 255).in(exp, "Response text"),
	)

	rfcTest := s.defineType("RFCTEST",
		typed("RFCFLOAT", rfcapi.TypeFloat),
		char("RFCCHAR1", 1),
		typed("RFCINT2", rfcapi.TypeInt2),
		typed("RFCINT1", rfcapi.TypeInt1),
		char("RFCCHAR4", 4),
		integer("RFCINT4"),
		bin("RFCHEX3", 3),
		char("RFCCHAR2", 2),
		clock("RFCTIME"),
		date("RFCDATE"),
		char("RFCDATA1", 50),
		char("RFCDATA2", 50),
	)
	s.defineFunction("STFC_STRUCTURE", stfcStructure,
		nested("IMPORTSTRUCT", rfcapi.TypeStructure, rfcTest).in(imp, "Import structure"),
		nested("ECHOSTRUCT", rfcapi.TypeStructure, rfcTest).in(exp, "Echo of the import structure"),
		char("RESPTEXT", 255).in(exp, "Response text"),
		nested("RFCTABLE", rfcapi.TypeTable, rfcTest).in(tab, "Table, one row is appended"),
	)

	s.defineFunction("STFC_CHANGING", stfcChanging,
		integer("START_VALUE").in(imp, "Start value"),
		integer("COUNTER").in(chg, "Counter, incremented by one"),
		integer("RESULT").in(exp, "START_VALUE plus COUNTER"),
	)

	deep := s.defineType("STFC_STRUCT_DEEP",
		integer("I"),
		char("C", 1),
		typed("STR", rfcapi.TypeString),
		typed("XSTR", rfcapi.TypeXString),
		typed("I8", rfcapi.TypeInt8),
	)
	s.defineFunction("STFC_DEEP_STRUCTURE", stfcDeepStructure,
		nested("IMPORTSTRUCT", rfcapi.TypeStructure, deep).in(imp, "Import structure"),
		nested("ECHOSTRUCT", rfcapi.TypeStructure, deep).in(exp, "Echo of the import structure"),
		char("RESPTEXT", 255).in(exp, "Response text"),
	)

	s.defineFunction("Z_SIM_MULTIPLY_AMOUNT", multiplyAmount,
		packed("AMOUNT", 8, 2).in(imp, "Amount"),
		typed("FACTOR", rfcapi.TypeDecF16).in(imp, "Factor").opt("1"),
		packed("RESULT", 8, 2).in(exp, "AMOUNT times FACTOR, rounded"),
		typed("RESULT_DF34", rfcapi.TypeDecF34).in(exp, "AMOUNT times FACTOR, exact"),
	)
}
