// Package rfcapi describes the binary interface of the SAP NetWeaver RFC
// library: the C structure layouts, the return-code and type enumerations,
// and the fixed table of entry points a backend must provide.
//
// Every struct in this file mirrors a C declaration from sapnwrfc.h field by
// field, so Go's natural alignment produces the same layout as the C
// compiler on the 64-bit little-endian platforms the library ships for.
package rfcapi

import "strconv"

// Handle is an opaque handle returned by the library. Connection, function
// description, type description, function, structure and table handles all
// share this representation; the zero value is the C NULL handle.
type Handle uintptr

// RC is RFC_RC, the return code of every library call.
type RC uint32

const (
	RCOk                       RC = iota // RFC_OK
	RCCommunicationFailure               // RFC_COMMUNICATION_FAILURE
	RCLogonFailure                       // RFC_LOGON_FAILURE
	RCAbapRuntimeFailure                 // RFC_ABAP_RUNTIME_FAILURE
	RCAbapMessage                        // RFC_ABAP_MESSAGE
	RCAbapException                      // RFC_ABAP_EXCEPTION
	RCClosed                             // RFC_CLOSED
	RCCanceled                           // RFC_CANCELED
	RCTimeout                            // RFC_TIMEOUT
	RCMemoryInsufficient                 // RFC_MEMORY_INSUFFICIENT
	RCVersionMismatch                    // RFC_VERSION_MISMATCH
	RCInvalidProtocol                    // RFC_INVALID_PROTOCOL
	RCSerializationFailure               // RFC_SERIALIZATION_FAILURE
	RCInvalidHandle                      // RFC_INVALID_HANDLE
	RCRetry                              // RFC_RETRY
	RCExternalFailure                    // RFC_EXTERNAL_FAILURE
	RCExecuted                           // RFC_EXECUTED
	RCNotFound                           // RFC_NOT_FOUND
	RCNotSupported                       // RFC_NOT_SUPPORTED
	RCIllegalState                       // RFC_ILLEGAL_STATE
	RCInvalidParameter                   // RFC_INVALID_PARAMETER
	RCCodepageConversionFailure          // RFC_CODEPAGE_CONVERSION_FAILURE
	RCConversionFailure                  // RFC_CONVERSION_FAILURE
	RCBufferTooSmall                     // RFC_BUFFER_TOO_SMALL
	RCTableMoveBOF                       // RFC_TABLE_MOVE_BOF
	RCTableMoveEOF                       // RFC_TABLE_MOVE_EOF
	RCStartSapguiFailure                 // RFC_START_SAPGUI_FAILURE
	RCAbapClassException                 // RFC_ABAP_CLASS_EXCEPTION
	RCUnknownError                       // RFC_UNKNOWN_ERROR
	RCAuthorizationFailure               // RFC_AUTHORIZATION_FAILURE
)

var rcNames = [...]string{
	"RFC_OK",
	"RFC_COMMUNICATION_FAILURE",
	"RFC_LOGON_FAILURE",
	"RFC_ABAP_RUNTIME_FAILURE",
	"RFC_ABAP_MESSAGE",
	"RFC_ABAP_EXCEPTION",
	"RFC_CLOSED",
	"RFC_CANCELED",
	"RFC_TIMEOUT",
	"RFC_MEMORY_INSUFFICIENT",
	"RFC_VERSION_MISMATCH",
	"RFC_INVALID_PROTOCOL",
	"RFC_SERIALIZATION_FAILURE",
	"RFC_INVALID_HANDLE",
	"RFC_RETRY",
	"RFC_EXTERNAL_FAILURE",
	"RFC_EXECUTED",
	"RFC_NOT_FOUND",
	"RFC_NOT_SUPPORTED",
	"RFC_ILLEGAL_STATE",
	"RFC_INVALID_PARAMETER",
	"RFC_CODEPAGE_CONVERSION_FAILURE",
	"RFC_CONVERSION_FAILURE",
	"RFC_BUFFER_TOO_SMALL",
	"RFC_TABLE_MOVE_BOF",
	"RFC_TABLE_MOVE_EOF",
	"RFC_START_SAPGUI_FAILURE",
	"RFC_ABAP_CLASS_EXCEPTION",
	"RFC_UNKNOWN_ERROR",
	"RFC_AUTHORIZATION_FAILURE",
}

// String returns the C enumerator name.
func (rc RC) String() string {
	if int(rc) < len(rcNames) {
		return rcNames[rc]
	}
	return "RFC_RC(" + strconv.FormatUint(uint64(rc), 10) + ")"
}

// ErrorGroup is RFC_ERROR_GROUP.
type ErrorGroup uint32

const (
	GroupOk                           ErrorGroup = iota
	GroupAbapApplicationFailure                  // ABAP exception raised by the function module
	GroupAbapRuntimeFailure                      // short dump or E/A/X message on the backend
	GroupLogonFailure                            // wrong credentials, locked user, ...
	GroupCommunicationFailure                    // network or gateway problem
	GroupExternalRuntimeFailure                  // invalid handle, illegal state, conversion errors
	GroupExternalApplicationFailure              // error raised by the local application
	GroupExternalAuthorizationFailure            // authorization check of the local application
)

var groupNames = [...]string{
	"OK",
	"ABAP_APPLICATION_FAILURE",
	"ABAP_RUNTIME_FAILURE",
	"LOGON_FAILURE",
	"COMMUNICATION_FAILURE",
	"EXTERNAL_RUNTIME_FAILURE",
	"EXTERNAL_APPLICATION_FAILURE",
	"EXTERNAL_AUTHORIZATION_FAILURE",
}

func (g ErrorGroup) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return "RFC_ERROR_GROUP(" + strconv.FormatUint(uint64(g), 10) + ")"
}

// Type is RFCTYPE, the ABAP data type of a parameter or field.
type Type uint32

const (
	TypeChar      Type = 0
	TypeDate      Type = 1
	TypeBCD       Type = 2
	TypeTime      Type = 3
	TypeByte      Type = 4
	TypeTable     Type = 5
	TypeNum       Type = 6
	TypeFloat     Type = 7
	TypeInt       Type = 8
	TypeInt2      Type = 9
	TypeInt1      Type = 10
	TypeNull      Type = 14
	TypeABAPObj   Type = 16
	TypeStructure Type = 17
	TypeDecF16    Type = 23
	TypeDecF34    Type = 24
	TypeXMLData   Type = 28
	TypeString    Type = 29
	TypeXString   Type = 30
	TypeInt8      Type = 31
)

func (t Type) String() string {
	switch t {
	case TypeChar:
		return "CHAR"
	case TypeDate:
		return "DATE"
	case TypeBCD:
		return "BCD"
	case TypeTime:
		return "TIME"
	case TypeByte:
		return "BYTE"
	case TypeTable:
		return "TABLE"
	case TypeNum:
		return "NUM"
	case TypeFloat:
		return "FLOAT"
	case TypeInt:
		return "INT"
	case TypeInt2:
		return "INT2"
	case TypeInt1:
		return "INT1"
	case TypeNull:
		return "NULL"
	case TypeABAPObj:
		return "ABAPOBJECT"
	case TypeStructure:
		return "STRUCTURE"
	case TypeDecF16:
		return "DECF16"
	case TypeDecF34:
		return "DECF34"
	case TypeXMLData:
		return "XMLDATA"
	case TypeString:
		return "STRING"
	case TypeXString:
		return "XSTRING"
	case TypeInt8:
		return "INT8"
	default:
		return "RFCTYPE(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

// IsCharLike reports whether values of t travel as SAP_UC text.
func (t Type) IsCharLike() bool {
	switch t {
	case TypeChar, TypeNum, TypeDate, TypeTime, TypeString:
		return true
	}
	return false
}

// Direction is RFC_DIRECTION, seen from the called function module:
// an import parameter is written by the caller, an export parameter is
// written by the function module.
type Direction uint32

const (
	DirImport   Direction = 0x01
	DirExport   Direction = 0x02
	DirChanging Direction = DirImport | DirExport
	DirTables   Direction = 0x04 | DirChanging
)

func (d Direction) String() string {
	switch d {
	case DirImport:
		return "IMPORT"
	case DirExport:
		return "EXPORT"
	case DirChanging:
		return "CHANGING"
	case DirTables:
		return "TABLES"
	default:
		return "RFC_DIRECTION(" + strconv.FormatUint(uint64(d), 10) + ")"
	}
}

// CanWrite reports whether the caller may set a parameter of this direction.
func (d Direction) CanWrite() bool { return d&DirImport != 0 }

// CanRead reports whether the caller may read a parameter of this direction
// after the call.
func (d Direction) CanRead() bool { return d&DirExport != 0 }

// Buffer sizes from sapnwrfc.h, including the terminating zero.
const (
	ABAPNameLen     = 30 + 1
	DefValueLen     = 30 + 1
	ParamTextLen    = 79 + 1
	ErrorKeyLen     = 128
	ErrorMessageLen = 512
	DateLen         = 8
	TimeLen         = 6
)

// ConnectionParameter is RFC_CONNECTION_PARAMETER. Both pointers reference
// zero-terminated SAP_UC strings.
type ConnectionParameter struct {
	Name  *uint16
	Value *uint16
}

// ErrorInfo is RFC_ERROR_INFO, the out-structure every call fills on failure.
type ErrorInfo struct {
	Code          RC
	Group         ErrorGroup
	Key           [ErrorKeyLen]uint16
	Message       [ErrorMessageLen]uint16
	AbapMsgClass  [20 + 1]uint16
	AbapMsgType   [1 + 1]uint16
	AbapMsgNumber [3 + 1]uint16
	AbapMsgV1     [50 + 1]uint16
	AbapMsgV2     [50 + 1]uint16
	AbapMsgV3     [50 + 1]uint16
	AbapMsgV4     [50 + 1]uint16
}

// Fill sets code, group, key and message, truncating text to the fixed
// array sizes. Backends use it to report failures.
func (e *ErrorInfo) Fill(code RC, group ErrorGroup, key, message string) {
	*e = ErrorInfo{Code: code, Group: group}
	PutZ(e.Key[:], key)
	PutZ(e.Message[:], message)
}

// FillAbapMessage sets the ABAP message fields of an RFC_ABAP_MESSAGE error.
func (e *ErrorInfo) FillAbapMessage(class, typ, number string, v ...string) {
	PutZ(e.AbapMsgClass[:], class)
	PutZ(e.AbapMsgType[:], typ)
	PutZ(e.AbapMsgNumber[:], number)
	vars := [][]uint16{e.AbapMsgV1[:], e.AbapMsgV2[:], e.AbapMsgV3[:], e.AbapMsgV4[:]}
	for i := 0; i < len(v) && i < len(vars); i++ {
		PutZ(vars[i], v[i])
	}
}

// ParameterDesc is RFC_PARAMETER_DESC.
type ParameterDesc struct {
	Name                [ABAPNameLen]uint16
	Type                Type
	Direction           Direction
	NucLength           uint32
	UcLength            uint32
	Decimals            uint32
	TypeDescHandle      Handle
	DefaultValue        [DefValueLen]uint16
	ParameterText       [ParamTextLen]uint16
	Optional            uint8
	ExtendedDescription uintptr
}

// FieldDesc is RFC_FIELD_DESC.
type FieldDesc struct {
	Name                [ABAPNameLen]uint16
	Type                Type
	NucLength           uint32
	NucOffset           uint32
	UcLength            uint32
	UcOffset            uint32
	Decimals            uint32
	TypeDescHandle      Handle
	ExtendedDescription uintptr
}
