//go:build !((linux || darwin) && (amd64 || arm64))

package sdk

import (
	"fmt"
	"runtime"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Library is a loaded RFC library. The API table stays valid until Close.
type Library struct {
	path string
	API  *rfcapi.API
}

// Load is not supported on this platform.
func Load(path string) (*Library, error) {
	return nil, fmt.Errorf("load RFC library %q: runtime loading is not supported on %s/%s", path, runtime.GOOS, runtime.GOARCH)
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Close is a no-op on this platform.
func (l *Library) Close() error {
	return nil
}
