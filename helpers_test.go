package nwrfc_test

import (
	"testing"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

// testLogon matches a default user of the simulated system.
var testLogon = nwrfc.Logon{AsHost: "h", Client: "001", User: "u", Passwd: "p"}

// openSim starts a simulated system and logs on to it. The connection is
// closed when the test ends.
func openSim(t *testing.T, opts ...sim.Option) (*sim.System, *nwrfc.Connection) {
	t.Helper()
	s := sim.New(opts...)
	lib, err := nwrfc.New(s.API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	conn, err := lib.Open(testLogon.Params())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s, conn
}

func lookup(t *testing.T, conn *nwrfc.Connection, name string) *nwrfc.FunctionDescription {
	t.Helper()
	fd, err := conn.LookupFunction(name)
	if err != nil {
		t.Fatalf("LookupFunction(%s) failed: %v", name, err)
	}
	return fd
}

func newCall(t *testing.T, conn *nwrfc.Connection, name string) *nwrfc.FunctionCall {
	t.Helper()
	fc, err := conn.NewCall(lookup(t, conn, name))
	if err != nil {
		t.Fatalf("NewCall(%s) failed: %v", name, err)
	}
	t.Cleanup(func() { fc.Close() })
	return fc
}

func str(t *testing.T, v nwrfc.Value) string {
	t.Helper()
	s, err := v.AsString()
	if err != nil {
		t.Fatalf("AsString() failed: %v", err)
	}
	return s
}
