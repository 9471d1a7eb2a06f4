// Package nwrfc provides a memory-safe Go interface to the SAP NetWeaver RFC
// client library (libsapnwrfc). The library is resolved at runtime, so no C
// toolchain is needed to build programs that use it.
//
// Two backends share the same entry point table:
//   - Native: libsapnwrfc loaded with Load
//   - Simulated: an in-process system from pkg/sim, passed to New
//
// Every handle the library hands out is owned by exactly one Go value and is
// released exactly once. Values are checked against the declared parameter
// type and length before anything crosses the library boundary.
//
// Basic usage:
//
//	lib, err := nwrfc.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer lib.Close()
//
//	conn, err := lib.Open(nwrfc.Logon{AsHost: "h", SysNr: "00", Client: "001", User: "u", Passwd: "p"}.Params())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	fd, _ := conn.LookupFunction("STFC_CONNECTION")
//	out, err := conn.Invoke(ctx, fd, nwrfc.Record{"REQUTEXT": nwrfc.String("hello")})
//	echo, _ := out["ECHOTEXT"].AsString()
package nwrfc

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
	"github.com/mkfoss/nwrfc/pkg/sdk"
)

// Backend represents the implementation behind the entry point table
type Backend int

const (
	BackendNative    Backend = iota // libsapnwrfc resolved at runtime
	BackendSimulated                // in-process simulator (pkg/sim)
)

// String returns the backend name
func (b Backend) String() string {
	switch b {
	case BackendNative:
		return "Native (libsapnwrfc)"
	case BackendSimulated:
		return "Simulated (in-process)"
	default:
		return "Unknown"
	}
}

// Library is a validated entry point table plus the logger used for
// conditions that cannot be returned to a caller. A Library is safe for
// concurrent use; it is shared by every Connection opened from it.
type Library struct {
	api     *rfcapi.API
	backend Backend
	logger  *log.Logger
	path    string

	mu     sync.Mutex
	closer func() error
	closed atomic.Bool
	owned  atomic.Int64 // live guards with a destroyer
}

// Option configures a Library.
type Option func(*Library)

// WithLogger replaces the default logger (stderr, prefix "nwrfc", warn level).
func WithLogger(logger *log.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New wraps an already filled entry point table. Every slot must be set;
// a missing one fails with ErrSymbolNotFound.
func New(api *rfcapi.API, backend Backend, opts ...Option) (*Library, error) {
	if err := api.Validate(); err != nil {
		return nil, err
	}
	l := &Library{
		api:     api,
		backend: backend,
		logger: log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "nwrfc",
			Level:  log.WarnLevel,
		}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load resolves libsapnwrfc from path, or from the platform default name
// when path is empty.
func Load(path string, opts ...Option) (*Library, error) {
	sl, err := sdk.Load(path)
	if err != nil {
		return nil, err
	}
	l, err := New(sl.API, BackendNative, opts...)
	if err != nil {
		_ = sl.Close()
		return nil, err
	}
	l.path = sl.Path()
	l.closer = sl.Close
	l.logger.Debug("library loaded", "path", l.path, "version", l.Version())
	return l, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string, opts ...Option) *Library {
	l, err := Load(path, opts...)
	if err != nil {
		panic(fmt.Sprintf("nwrfc.MustLoad(%q) failed: %v", path, err))
	}
	return l
}

// Backend returns which implementation serves the library calls.
func (l *Library) Backend() Backend {
	return l.backend
}

// Path returns the file the native library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Logger returns the library logger.
func (l *Library) Logger() *log.Logger {
	return l.logger
}

// Version describes the loaded library release.
type Version struct {
	Major, Minor, Patch uint32
	Text                string
}

func (v Version) String() string {
	if v.Text != "" {
		return v.Text
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// OpenHandles returns the number of connections, calls and standalone
// containers not yet released.
func (l *Library) OpenHandles() int {
	return int(l.owned.Load())
}

// usable fails once the library is closed.
func (l *Library) usable() error {
	if l.closed.Load() {
		return ErrLibraryClosed
	}
	return nil
}

// Version queries the library release. It is zero after Close.
func (l *Library) Version() Version {
	var v Version
	if l.closed.Load() {
		return v
	}
	p := l.api.GetVersion(&v.Major, &v.Minor, &v.Patch)
	v.Text = rfcapi.StringZ(p)
	return v
}

// Close unloads a native library. It fails with ErrLibraryInUse while a
// connection, call or standalone container is still open; nothing is
// unloaded then. After a successful Close the library refuses new work
// with ErrLibraryClosed. For a simulated backend nothing is unloaded.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.owned.Load(); n > 0 {
		return fmt.Errorf("%w: %d handles open", ErrLibraryInUse, n)
	}
	l.closed.Store(true)
	if l.closer == nil {
		return nil
	}
	err := l.closer()
	l.closer = nil
	return err
}
