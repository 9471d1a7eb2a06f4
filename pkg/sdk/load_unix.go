//go:build (linux || darwin) && (amd64 || arm64)

package sdk

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Library is a loaded RFC library. The API table stays valid until Close.
type Library struct {
	handle uintptr
	path   string
	API    *rfcapi.API
}

// Load opens the shared library at path (DefaultName when empty) and
// resolves every entry point of rfcapi.API. A missing symbol fails with
// rfcapi.ErrSymbolNotFound and leaves nothing loaded.
func Load(path string) (*Library, error) {
	if path == "" {
		path = DefaultName()
	}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("open RFC library %q: %w", path, err)
	}

	api := &rfcapi.API{}
	for _, e := range api.Entries() {
		addr, err := purego.Dlsym(handle, e.Symbol)
		if err != nil || addr == 0 {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("%w: %s in %s", rfcapi.ErrSymbolNotFound, e.Symbol, path)
		}
		purego.RegisterFunc(e.Ptr, addr)
	}

	return &Library{handle: handle, path: path, API: api}, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Close unloads the library. Every handle obtained through the API must be
// released before.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	l.API = nil
	return err
}
