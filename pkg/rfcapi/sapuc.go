package rfcapi

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/text/encoding/unicode"
)

// SAP_UC is UTF-16 in native byte order. The library is only shipped for
// little-endian targets, so the codec is fixed to little endian.
var sapuc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// maxZ bounds the scan for the terminating zero of a foreign string.
const maxZ = 1 << 20

// Chars converts s to SAP_UC code units without a terminating zero.
func Chars(s string) ([]uint16, error) {
	if s == "" {
		return []uint16{}, nil
	}
	b, err := sapuc.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("encode SAP_UC: %w", err)
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16([]byte(b[2*i : 2*i+2]))
	}
	return u, nil
}

// CharsZ converts s to a zero-terminated SAP_UC string.
func CharsZ(s string) ([]uint16, error) {
	u, err := Chars(s)
	if err != nil {
		return nil, err
	}
	return append(u, 0), nil
}

// String decodes SAP_UC code units, stopping at the first zero unit.
func String(u []uint16) string {
	for i, c := range u {
		if c == 0 {
			u = u[:i]
			break
		}
	}
	if len(u) == 0 {
		return ""
	}
	b := make([]byte, 2*len(u))
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[2*i:], c)
	}
	s, err := sapuc.NewDecoder().Bytes(b)
	if err != nil {
		// The decoder replaces malformed surrogates instead of failing;
		// an error here means the transformer itself broke.
		return ""
	}
	return string(s)
}

// StringZ decodes a zero-terminated SAP_UC string owned by the library.
func StringZ(p *uint16) string {
	if p == nil {
		return ""
	}
	n := 0
	for n < maxZ && *(*uint16)(unsafe.Add(unsafe.Pointer(p), 2*n)) != 0 {
		n++
	}
	return String(unsafe.Slice(p, n))
}

// PutZ copies s into the fixed array dst, always leaving room for the zero.
func PutZ(dst []uint16, s string) {
	u, err := Chars(s)
	if err != nil {
		return
	}
	n := copy(dst[:len(dst)-1], u)
	clear(dst[n:])
}
