package nwrfc

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

func testLibrary(t *testing.T, s *sim.System) (*Library, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	lib, err := New(s.API(), BackendSimulated, WithLogger(log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return lib, &buf
}

// TestGuardReleaseOnce tests that the destroyer runs exactly once
func TestGuardReleaseOnce(t *testing.T) {
	lib, _ := testLibrary(t, sim.New())
	calls := 0
	g := lib.acquire(kindTable, 0x42, func(h rfcapi.Handle, _ *rfcapi.ErrorInfo) rfcapi.RC {
		if h != 0x42 {
			t.Errorf("destroyer got handle %#x", h)
		}
		calls++
		return rfcapi.RCOk
	})

	g.release()
	g.release()
	if calls != 1 {
		t.Errorf("destroyer ran %d times, want 1", calls)
	}
}

// TestGuardUseAfterRelease tests that a released guard never hands out its handle
func TestGuardUseAfterRelease(t *testing.T) {
	lib, _ := testLibrary(t, sim.New())
	g := lib.acquire(kindFunction, 0x42, func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC { return rfcapi.RCOk })
	child := g.child(kindTable, 0x43)

	called := false
	if err := child.borrow(func(rfcapi.Handle) error { called = true; return nil }); err != nil {
		t.Fatalf("borrow on a live child failed: %v", err)
	}
	if !called {
		t.Fatal("borrow did not call fn")
	}

	g.release()
	called = false
	for _, gg := range []*guard{g, child} {
		err := gg.borrow(func(rfcapi.Handle) error { called = true; return nil })
		if !errors.Is(err, ErrUseAfterRelease) {
			t.Errorf("borrow after release = %v, want ErrUseAfterRelease", err)
		}
	}
	if called {
		t.Error("fn must not run after release")
	}
}

// TestGuardAbandon tests that an abandoned guard is dead but never destroyed
func TestGuardAbandon(t *testing.T) {
	lib, _ := testLibrary(t, sim.New())
	calls := 0
	g := lib.acquire(kindConnection, 0x42, func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC {
		calls++
		return rfcapi.RCOk
	})
	g.abandon()
	g.release()
	if g.live() {
		t.Error("abandoned guard should not be live")
	}
	if calls != 0 {
		t.Errorf("destroyer ran %d times after abandon", calls)
	}
}

// TestReleaseFailureLogged tests that a failing destroy is logged, not returned
func TestReleaseFailureLogged(t *testing.T) {
	s := sim.New()
	lib, buf := testLibrary(t, s)
	conn, err := lib.Open(Logon{AsHost: "h", Client: "001", User: "u", Passwd: "p"}.Params())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer conn.Close()
	fd, err := conn.LookupFunction("RFC_READ_TABLE")
	if err != nil {
		t.Fatalf("LookupFunction() failed: %v", err)
	}

	s.FailDestroy(sim.KindTable, 1)
	tab, err := lib.NewTable(fd.Parameter("DATA").TypeDesc)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	if err := tab.Close(); err != nil {
		t.Errorf("Close() should swallow the release failure, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, ErrHandleReleaseFailed.Error()) {
		t.Errorf("expected %q in the log, got %q", ErrHandleReleaseFailed, out)
	}
	if !strings.Contains(out, "kind=table") {
		t.Errorf("expected the handle kind in the log, got %q", out)
	}
	if s.OpenHandles() != 1 {
		t.Errorf("OpenHandles() = %d, want only the connection", s.OpenHandles())
	}
}

// TestGuardKeptAliveDuringCall tests that a table dropped by its caller is not
// destroyed by a collection running inside its own library call
func TestGuardKeptAliveDuringCall(t *testing.T) {
	s := sim.New()
	api := s.API()
	openDuringCall := -1
	getRowCount := api.GetRowCount
	api.GetRowCount = func(tab rfcapi.Handle, count *uint32, ei *rfcapi.ErrorInfo) rfcapi.RC {
		for range 3 {
			runtime.GC()
			time.Sleep(5 * time.Millisecond)
		}
		openDuringCall = s.Stats().Open[sim.KindTable]
		return getRowCount(tab, count, ei)
	}
	var buf bytes.Buffer
	lib, err := New(api, BackendSimulated, WithLogger(log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	conn, err := lib.Open(Logon{AsHost: "h", Client: "001", User: "u", Passwd: "p"}.Params())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer conn.Close()
	fd, err := conn.LookupFunction("RFC_READ_TABLE")
	if err != nil {
		t.Fatalf("LookupFunction() failed: %v", err)
	}
	td := fd.Parameter("OPTIONS").TypeDesc

	n, err := func() (int, error) {
		tab, err := lib.NewTable(td)
		if err != nil {
			return 0, err
		}
		return tab.RowCount()
	}()
	if err != nil {
		t.Fatalf("RowCount() on a dropped table failed: %v", err)
	}
	if n != 0 {
		t.Errorf("RowCount() = %d, want 0", n)
	}
	if openDuringCall != 1 {
		t.Errorf("tables open during the call = %d, want 1", openDuringCall)
	}
}

// TestOwnedHandleCount tests that only guards with a destroyer are counted
func TestOwnedHandleCount(t *testing.T) {
	lib, _ := testLibrary(t, sim.New())
	ok := func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC { return rfcapi.RCOk }
	failing := func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC { return rfcapi.RCIllegalState }

	released := lib.acquire(kindTable, 0x42, ok)
	abandoned := lib.acquire(kindConnection, 0x43, ok)
	broken := lib.acquire(kindStructure, 0x44, failing)
	desc := lib.acquire(kindTypeDesc, 0x45, nil)
	desc.child(kindRow, 0x46)
	if got := lib.OpenHandles(); got != 3 {
		t.Fatalf("OpenHandles() = %d, want 3", got)
	}

	released.release()
	released.release()
	abandoned.abandon()
	abandoned.release()
	broken.release()
	desc.release()
	if got := lib.OpenHandles(); got != 0 {
		t.Errorf("OpenHandles() = %d after release, want 0", got)
	}
}
