// Package sdk resolves the SAP NetWeaver RFC library at runtime and binds its
// entry points into an rfcapi.API table. Nothing is linked at build time; the
// library is located through the dynamic loader the first time Load runs.
package sdk

import "runtime"

// DefaultName returns the platform file name of the RFC library, resolved
// through the loader search path (LD_LIBRARY_PATH, DYLD_LIBRARY_PATH, PATH).
func DefaultName() string {
	switch runtime.GOOS {
	case "windows":
		return "sapnwrfc.dll"
	case "darwin":
		return "libsapnwrfc.dylib"
	default:
		return "libsapnwrfc.so"
	}
}
