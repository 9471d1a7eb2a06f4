package rfcapi

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrSymbolNotFound reports an entry point the loaded library does not export.
var ErrSymbolNotFound = errors.New("rfc: symbol not found")

// API is the fixed table of library entry points. Each field carries the C
// symbol it is resolved from in its `rfc` tag. A backend fills every field
// once at startup; the table is read-only afterwards and may be shared by
// any number of connections.
//
// Container setters and getters take the zero-terminated SAP_UC field name
// and operate on any data container: a function, a structure or the current
// row of a table.
type API struct {
	GetVersion func(major, minor, patch *uint32) *uint16 `rfc:"RfcGetVersion"`

	OpenConnection  func(params *ConnectionParameter, count uint32, ei *ErrorInfo) Handle `rfc:"RfcOpenConnection"`
	CloseConnection func(conn Handle, ei *ErrorInfo) RC                                   `rfc:"RfcCloseConnection"`
	Ping            func(conn Handle, ei *ErrorInfo) RC                                   `rfc:"RfcPing"`

	GetFunctionDesc         func(conn Handle, name *uint16, ei *ErrorInfo) Handle                `rfc:"RfcGetFunctionDesc"`
	GetFunctionName         func(fd Handle, name *uint16, ei *ErrorInfo) RC                      `rfc:"RfcGetFunctionName"`
	GetParameterCount       func(fd Handle, count *uint32, ei *ErrorInfo) RC                     `rfc:"RfcGetParameterCount"`
	GetParameterDescByIndex func(fd Handle, index uint32, desc *ParameterDesc, ei *ErrorInfo) RC `rfc:"RfcGetParameterDescByIndex"`
	GetTypeName             func(td Handle, name *uint16, ei *ErrorInfo) RC                      `rfc:"RfcGetTypeName"`
	GetTypeLength           func(td Handle, nucLength, ucLength *uint32, ei *ErrorInfo) RC       `rfc:"RfcGetTypeLength"`
	GetFieldCount           func(td Handle, count *uint32, ei *ErrorInfo) RC                     `rfc:"RfcGetFieldCount"`
	GetFieldDescByIndex     func(td Handle, index uint32, desc *FieldDesc, ei *ErrorInfo) RC     `rfc:"RfcGetFieldDescByIndex"`
	CreateFunction          func(fd Handle, ei *ErrorInfo) Handle                                `rfc:"RfcCreateFunction"`
	DestroyFunction         func(fn Handle, ei *ErrorInfo) RC                                    `rfc:"RfcDestroyFunction"`
	Invoke                  func(conn, fn Handle, ei *ErrorInfo) RC                              `rfc:"RfcInvoke"`
	CreateStructure         func(td Handle, ei *ErrorInfo) Handle                                `rfc:"RfcCreateStructure"`
	DestroyStructure        func(st Handle, ei *ErrorInfo) RC                                    `rfc:"RfcDestroyStructure"`
	CreateTable             func(td Handle, ei *ErrorInfo) Handle                                `rfc:"RfcCreateTable"`
	DestroyTable            func(tab Handle, ei *ErrorInfo) RC                                   `rfc:"RfcDestroyTable"`
	GetRowCount             func(tab Handle, count *uint32, ei *ErrorInfo) RC                    `rfc:"RfcGetRowCount"`
	AppendNewRow            func(tab Handle, ei *ErrorInfo) Handle                               `rfc:"RfcAppendNewRow"`
	MoveTo                  func(tab Handle, index uint32, ei *ErrorInfo) RC                     `rfc:"RfcMoveTo"`
	MoveToFirstRow          func(tab Handle, ei *ErrorInfo) RC                                   `rfc:"RfcMoveToFirstRow"`
	MoveToNextRow           func(tab Handle, ei *ErrorInfo) RC                                   `rfc:"RfcMoveToNextRow"`
	GetCurrentRow           func(tab Handle, ei *ErrorInfo) Handle                               `rfc:"RfcGetCurrentRow"`
	DeleteCurrentRow        func(tab Handle, ei *ErrorInfo) RC                                   `rfc:"RfcDeleteCurrentRow"`
	DeleteAllRows           func(tab Handle, ei *ErrorInfo) RC                                   `rfc:"RfcDeleteAllRows"`

	SetChars     func(c Handle, name, value *uint16, length uint32, ei *ErrorInfo) RC       `rfc:"RfcSetChars"`
	SetNum       func(c Handle, name, value *uint16, length uint32, ei *ErrorInfo) RC       `rfc:"RfcSetNum"`
	SetString    func(c Handle, name, value *uint16, length uint32, ei *ErrorInfo) RC       `rfc:"RfcSetString"`
	SetDate      func(c Handle, name, value *uint16, ei *ErrorInfo) RC                      `rfc:"RfcSetDate"`
	SetTime      func(c Handle, name, value *uint16, ei *ErrorInfo) RC                      `rfc:"RfcSetTime"`
	SetBytes     func(c Handle, name *uint16, value *byte, length uint32, ei *ErrorInfo) RC `rfc:"RfcSetBytes"`
	SetXString   func(c Handle, name *uint16, value *byte, length uint32, ei *ErrorInfo) RC `rfc:"RfcSetXString"`
	SetInt       func(c Handle, name *uint16, value int32, ei *ErrorInfo) RC                `rfc:"RfcSetInt"`
	SetInt1      func(c Handle, name *uint16, value uint8, ei *ErrorInfo) RC                `rfc:"RfcSetInt1"`
	SetInt2      func(c Handle, name *uint16, value int16, ei *ErrorInfo) RC                `rfc:"RfcSetInt2"`
	SetInt8      func(c Handle, name *uint16, value int64, ei *ErrorInfo) RC                `rfc:"RfcSetInt8"`
	SetFloat     func(c Handle, name *uint16, value float64, ei *ErrorInfo) RC              `rfc:"RfcSetFloat"`
	SetStructure func(c Handle, name *uint16, value Handle, ei *ErrorInfo) RC               `rfc:"RfcSetStructure"`
	SetTable     func(c Handle, name *uint16, value Handle, ei *ErrorInfo) RC               `rfc:"RfcSetTable"`

	GetChars        func(c Handle, name, buf *uint16, bufLen uint32, ei *ErrorInfo) RC                     `rfc:"RfcGetChars"`
	GetNum          func(c Handle, name, buf *uint16, bufLen uint32, ei *ErrorInfo) RC                     `rfc:"RfcGetNum"`
	GetDate         func(c Handle, name, buf *uint16, ei *ErrorInfo) RC                                    `rfc:"RfcGetDate"`
	GetTime         func(c Handle, name, buf *uint16, ei *ErrorInfo) RC                                    `rfc:"RfcGetTime"`
	GetStringLength func(c Handle, name *uint16, length *uint32, ei *ErrorInfo) RC                         `rfc:"RfcGetStringLength"`
	GetString       func(c Handle, name, buf *uint16, bufLen uint32, strLen *uint32, ei *ErrorInfo) RC     `rfc:"RfcGetString"`
	GetBytes        func(c Handle, name *uint16, buf *byte, bufLen uint32, ei *ErrorInfo) RC               `rfc:"RfcGetBytes"`
	GetXString      func(c Handle, name *uint16, buf *byte, bufLen uint32, xLen *uint32, ei *ErrorInfo) RC `rfc:"RfcGetXString"`
	GetInt          func(c Handle, name *uint16, value *int32, ei *ErrorInfo) RC                           `rfc:"RfcGetInt"`
	GetInt1         func(c Handle, name *uint16, value *uint8, ei *ErrorInfo) RC                           `rfc:"RfcGetInt1"`
	GetInt2         func(c Handle, name *uint16, value *int16, ei *ErrorInfo) RC                           `rfc:"RfcGetInt2"`
	GetInt8         func(c Handle, name *uint16, value *int64, ei *ErrorInfo) RC                           `rfc:"RfcGetInt8"`
	GetFloat        func(c Handle, name *uint16, value *float64, ei *ErrorInfo) RC                         `rfc:"RfcGetFloat"`
	GetStructure    func(c Handle, name *uint16, value *Handle, ei *ErrorInfo) RC                          `rfc:"RfcGetStructure"`
	GetTable        func(c Handle, name *uint16, value *Handle, ei *ErrorInfo) RC                          `rfc:"RfcGetTable"`
}

// Entry describes one slot of the API table.
type Entry struct {
	Symbol string
	Field  string
	// Ptr is a pointer to the func-typed field, suitable for binding a
	// foreign function pointer into the slot.
	Ptr any
}

// Entries lists every slot of the table in declaration order.
func (a *API) Entries() []Entry {
	v := reflect.ValueOf(a).Elem()
	t := v.Type()
	out := make([]Entry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		sym, ok := f.Tag.Lookup("rfc")
		if !ok {
			continue
		}
		out = append(out, Entry{Symbol: sym, Field: f.Name, Ptr: v.Field(i).Addr().Interface()})
	}
	return out
}

// Validate fails with ErrSymbolNotFound for the first unfilled slot.
func (a *API) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil entry point table", ErrSymbolNotFound)
	}
	v := reflect.ValueOf(a).Elem()
	for _, e := range a.Entries() {
		if v.FieldByName(e.Field).IsNil() {
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, e.Symbol)
		}
	}
	return nil
}
