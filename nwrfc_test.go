package nwrfc_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

// TestBackendIdentification tests that a simulated library reports its backend
func TestBackendIdentification(t *testing.T) {
	lib, err := nwrfc.New(sim.New().API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Logf("Using backend: %s", lib.Backend())

	if lib.Backend() != nwrfc.BackendSimulated {
		t.Errorf("Backend() = %v, want %v", lib.Backend(), nwrfc.BackendSimulated)
	}
	if lib.Path() != "" {
		t.Errorf("Path() should be empty for a simulated library, got %q", lib.Path())
	}
	if err := lib.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

// TestIncompleteTable tests that a table with an empty slot is rejected at startup
func TestIncompleteTable(t *testing.T) {
	api := sim.New().API()
	api.DeleteAllRows = nil

	_, err := nwrfc.New(api, nwrfc.BackendSimulated)
	if !errors.Is(err, nwrfc.ErrSymbolNotFound) {
		t.Fatalf("New() error = %v, want ErrSymbolNotFound", err)
	}
	if !strings.Contains(err.Error(), "RfcDeleteAllRows") {
		t.Errorf("error should name the symbol, got %q", err)
	}

	if _, err := nwrfc.New(nil, nwrfc.BackendSimulated); !errors.Is(err, nwrfc.ErrSymbolNotFound) {
		t.Errorf("New(nil) error = %v, want ErrSymbolNotFound", err)
	}
}

// TestLoadMissingLibrary tests that loading a nonexistent library fails cleanly
func TestLoadMissingLibrary(t *testing.T) {
	lib, err := nwrfc.Load("/nonexistent/libsapnwrfc.so")
	if err == nil {
		lib.Close()
		t.Fatal("Load() of a missing file should fail")
	}
}

// TestVersion tests the version query
func TestVersion(t *testing.T) {
	lib, err := nwrfc.New(sim.New().API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	v := lib.Version()
	if v.Major == 0 {
		t.Errorf("Version().Major should be set, got %+v", v)
	}
	if v.String() == "" {
		t.Error("Version().String() should not be empty")
	}
}

// TestWithLogger tests that debug output goes to the configured logger
func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	lib, err := nwrfc.New(sim.New().API(), nwrfc.BackendSimulated, nwrfc.WithLogger(logger))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if lib.Logger() != logger {
		t.Fatal("Logger() should return the configured logger")
	}

	conn, err := lib.Open(testLogon.Params())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	conn.Close()

	if !strings.Contains(buf.String(), "connection opened") {
		t.Errorf("expected an open message in the log, got %q", buf.String())
	}
}

// TestRfcErrorString tests the formatting of translated errors
func TestRfcErrorString(t *testing.T) {
	e := &nwrfc.RfcError{Code: 5, Key: "NOT_FOUND", Message: "nothing there", AbapMsgClass: "ZZ", AbapMsgType: "E", AbapMsgNumber: "001"}
	want := "RFC_ABAP_EXCEPTION (NOT_FOUND): nothing there [E001(ZZ)]"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// TestCloseRefusedWhileInUse tests that the library is not unloaded while
// handles obtained from it are still open
func TestCloseRefusedWhileInUse(t *testing.T) {
	s := sim.New()
	lib, err := nwrfc.New(s.API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	conn, err := lib.Open(testLogon.Params())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	td := lookup(t, conn, "RFC_READ_TABLE").Parameter("DATA").TypeDesc
	tab, err := lib.NewTable(td)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	if got := lib.OpenHandles(); got != 2 {
		t.Errorf("OpenHandles() = %d, want 2", got)
	}

	if err := lib.Close(); !errors.Is(err, nwrfc.ErrLibraryInUse) {
		t.Fatalf("Close() with open handles = %v, want ErrLibraryInUse", err)
	}
	conn.Close()
	if err := lib.Close(); !errors.Is(err, nwrfc.ErrLibraryInUse) {
		t.Errorf("Close() with an open table = %v, want ErrLibraryInUse", err)
	}
	if !tab.Valid() {
		t.Fatal("a refused Close must leave the table usable")
	}
	if _, err := tab.RowCount(); err != nil {
		t.Errorf("RowCount() after refused Close failed: %v", err)
	}

	tab.Close()
	if err := lib.Close(); err != nil {
		t.Fatalf("Close() after releasing everything failed: %v", err)
	}
	if s.OpenHandles() != 0 {
		t.Errorf("sim reports %d open handles", s.OpenHandles())
	}

	calls := s.ForeignCalls()
	if _, err := lib.Open(testLogon.Params()); !errors.Is(err, nwrfc.ErrLibraryClosed) {
		t.Errorf("Open() after Close = %v, want ErrLibraryClosed", err)
	}
	if _, err := lib.NewTable(td); !errors.Is(err, nwrfc.ErrLibraryClosed) {
		t.Errorf("NewTable() after Close = %v, want ErrLibraryClosed", err)
	}
	if _, err := lib.NewStructure(td); !errors.Is(err, nwrfc.ErrLibraryClosed) {
		t.Errorf("NewStructure() after Close = %v, want ErrLibraryClosed", err)
	}
	if s.ForeignCalls() != calls {
		t.Error("a closed library must not call into the backend")
	}
}
