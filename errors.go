package nwrfc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Sentinel errors. Failures reported by the RFC library wrap one of these
// together with an *RfcError, so both errors.Is and errors.As apply.
var (
	ErrConnectFailed       = errors.New("nwrfc: connect failed")
	ErrFunctionNotFound    = errors.New("nwrfc: function not found")
	ErrUnknownParameter    = errors.New("nwrfc: unknown parameter")
	ErrDirectionMismatch   = errors.New("nwrfc: direction mismatch")
	ErrTypeMismatch        = errors.New("nwrfc: type mismatch")
	ErrValueTooLong        = errors.New("nwrfc: value too long")
	ErrRowIndexOutOfBounds = errors.New("nwrfc: row index out of bounds")
	ErrRpcFailed           = errors.New("nwrfc: remote call failed")
	ErrSymbolNotFound      = rfcapi.ErrSymbolNotFound
	ErrHandleReleaseFailed = errors.New("nwrfc: handle release failed")
	ErrUseAfterRelease     = errors.New("nwrfc: use after release")
	ErrConnectionClosed    = errors.New("nwrfc: connection closed")
	ErrLibraryInUse        = errors.New("nwrfc: library in use")
	ErrLibraryClosed       = errors.New("nwrfc: library closed")
)

// RfcError is the translated RFC_ERROR_INFO of a failed library call.
type RfcError struct {
	Code    rfcapi.RC
	Group   rfcapi.ErrorGroup
	Key     string
	Message string

	AbapMsgClass  string
	AbapMsgType   string
	AbapMsgNumber string
	AbapMsgV1     string
	AbapMsgV2     string
	AbapMsgV3     string
	AbapMsgV4     string
}

func (e *RfcError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Key != "" {
		b.WriteString(" (")
		b.WriteString(e.Key)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.AbapMsgClass != "" {
		fmt.Fprintf(&b, " [%s%s(%s)]", e.AbapMsgType, e.AbapMsgNumber, e.AbapMsgClass)
	}
	return b.String()
}

// translate copies the error info into an RfcError. The info buffer is
// owned by the caller and may be reused after this returns.
func translate(ei *rfcapi.ErrorInfo) *RfcError {
	return &RfcError{
		Code:          ei.Code,
		Group:         ei.Group,
		Key:           rfcapi.String(ei.Key[:]),
		Message:       rfcapi.String(ei.Message[:]),
		AbapMsgClass:  rfcapi.String(ei.AbapMsgClass[:]),
		AbapMsgType:   rfcapi.String(ei.AbapMsgType[:]),
		AbapMsgNumber: rfcapi.String(ei.AbapMsgNumber[:]),
		AbapMsgV1:     rfcapi.String(ei.AbapMsgV1[:]),
		AbapMsgV2:     rfcapi.String(ei.AbapMsgV2[:]),
		AbapMsgV3:     rfcapi.String(ei.AbapMsgV3[:]),
		AbapMsgV4:     rfcapi.String(ei.AbapMsgV4[:]),
	}
}

// failure wraps a non-OK library result under the given sentinel.
func failure(sentinel error, op string, ei *rfcapi.ErrorInfo) error {
	return fmt.Errorf("%w: %s: %w", sentinel, op, translate(ei))
}

// check turns a return code into an error. Codes other than RFC_OK are
// translated from ei; op names the failing operation.
func check(rc rfcapi.RC, op string, ei *rfcapi.ErrorInfo) error {
	if rc == rfcapi.RCOk {
		return nil
	}
	if ei.Code == rfcapi.RCOk {
		ei.Code = rc
	}
	return fmt.Errorf("%s: %w", op, translate(ei))
}
