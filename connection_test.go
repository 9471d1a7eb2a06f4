package nwrfc_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkfoss/nwrfc"
	"github.com/mkfoss/nwrfc/pkg/rfcapi"
	"github.com/mkfoss/nwrfc/pkg/sim"
)

// TestReadTableUSR02 tests reading the user master through RFC_READ_TABLE
func TestReadTableUSR02(t *testing.T) {
	_, conn := openSim(t)
	fd := lookup(t, conn, "RFC_READ_TABLE")
	fc, err := conn.NewCall(fd)
	if err != nil {
		t.Fatalf("NewCall() failed: %v", err)
	}
	defer fc.Close()

	fc.MustSet("QUERY_TABLE", nwrfc.String("USR02"))
	fc.MustSet("DELIMITER", nwrfc.String("|"))
	if err := fc.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}

	fields, err := fc.MustTable("FIELDS").Records()
	if err != nil {
		t.Fatalf("FIELDS: %v", err)
	}
	var columns []string
	for _, f := range fields {
		columns = append(columns, str(t, f["FIELDNAME"]))
	}
	want := "MANDT BNAME GLTGV GLTGB USTYP CLASS TRDAT"
	if got := strings.Join(columns, " "); got != want {
		t.Errorf("columns = %q, want %q", got, want)
	}

	data := fc.MustTable("DATA")
	n := data.MustRowCount()
	if n < 0 {
		t.Fatalf("RowCount() = %d", n)
	}
	users := map[string]bool{}
	for i := 0; i < n; i++ {
		parts := strings.Split(str(t, data.MustReadRow(i)["WA"]), "|")
		if len(parts) != len(columns) {
			t.Fatalf("row %d has %d columns, want %d", i, len(parts), len(columns))
		}
		if client := strings.TrimSpace(parts[0]); client != "001" {
			t.Errorf("row %d belongs to client %q", i, client)
		}
		users[strings.TrimSpace(parts[1])] = true
	}
	if !users["U"] || !users["DEVELOPER"] {
		t.Errorf("expected U and DEVELOPER among %v", users)
	}
	t.Logf("USR02: %d rows", n)
}

// TestFunctionNotFoundNoLeak tests that a failed lookup leaves no handle behind
func TestFunctionNotFoundNoLeak(t *testing.T) {
	s, conn := openSim(t)
	baseline := s.OpenHandles()

	_, err := conn.LookupFunction("NO_SUCH_FUNCTION")
	if !errors.Is(err, nwrfc.ErrFunctionNotFound) {
		t.Fatalf("LookupFunction() = %v, want ErrFunctionNotFound", err)
	}
	var rerr *nwrfc.RfcError
	if !errors.As(err, &rerr) || rerr.Code != rfcapi.RCNotFound {
		t.Errorf("expected an RFC_NOT_FOUND RfcError, got %v", err)
	}
	if got := s.OpenHandles(); got != baseline {
		t.Errorf("OpenHandles() = %d, want %d", got, baseline)
	}
	if !conn.Alive() {
		t.Error("a failed lookup keeps the connection")
	}
}

// TestConcurrentInvokesSerialized tests that one connection never runs two calls at once
func TestConcurrentInvokesSerialized(t *testing.T) {
	s, conn := openSim(t, sim.WithLatency(20*time.Millisecond))
	fd := lookup(t, conn, "STFC_CONNECTION")

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			out, err := conn.Invoke(context.Background(), fd, nwrfc.Record{"REQUTEXT": nwrfc.String("hi")})
			if err != nil {
				return err
			}
			if echo, _ := out["ECHOTEXT"].AsString(); echo != "hi" {
				return errors.New("unexpected echo " + echo)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}

	st := s.Stats()
	if st.Violations != 0 {
		t.Errorf("%d overlapping calls on one connection", st.Violations)
	}
	if st.MaxParallel != 1 {
		t.Errorf("MaxParallel = %d, want 1", st.MaxParallel)
	}
}

// TestIndependentConnectionsParallel tests that separate connections do not wait for each other
func TestIndependentConnectionsParallel(t *testing.T) {
	s := sim.New(sim.WithLatency(50 * time.Millisecond))
	lib, err := nwrfc.New(s.API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		conn := lib.MustOpen(testLogon.Params())
		defer conn.Close()
		g.Go(func() error { return conn.Ping(context.Background()) })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Ping() failed: %v", err)
	}
	st := s.Stats()
	if st.Violations != 0 {
		t.Errorf("Violations = %d", st.Violations)
	}
	if st.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", st.MaxParallel)
	}
}

// TestInvokeWaitCanceled tests that the context bounds the wait for a busy connection
func TestInvokeWaitCanceled(t *testing.T) {
	_, conn := openSim(t, sim.WithLatency(200*time.Millisecond))
	fd := lookup(t, conn, "STFC_CONNECTION")

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := conn.Invoke(context.Background(), fd, nwrfc.Record{"REQUTEXT": nwrfc.String("slow")})
		done <- err
	}()
	<-started
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := conn.Ping(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Ping() on a busy connection = %v, want DeadlineExceeded", err)
	}
	if err := <-done; err != nil {
		t.Errorf("the running Invoke failed: %v", err)
	}
}

// TestClosedConnection tests that nothing runs on a closed connection
func TestClosedConnection(t *testing.T) {
	s, conn := openSim(t)
	fd := lookup(t, conn, "STFC_CONNECTION")
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if s.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d after Close", s.OpenHandles())
	}

	if err := conn.Ping(context.Background()); !errors.Is(err, nwrfc.ErrConnectionClosed) {
		t.Errorf("Ping() = %v, want ErrConnectionClosed", err)
	}
	if _, err := conn.NewCall(fd); !errors.Is(err, nwrfc.ErrConnectionClosed) {
		t.Errorf("NewCall() = %v, want ErrConnectionClosed", err)
	}
	if _, err := conn.LookupFunction("RFC_READ_TABLE"); !errors.Is(err, nwrfc.ErrConnectionClosed) {
		t.Errorf("LookupFunction() = %v, want ErrConnectionClosed", err)
	}
}

// TestCommunicationFailure tests that a lost connection fails the call and is dropped
func TestCommunicationFailure(t *testing.T) {
	s, conn := openSim(t)
	fc := newCall(t, conn, "STFC_CONNECTION")
	fc.MustSet("REQUTEXT", nwrfc.String("x"))

	s.Disrupt()
	err := fc.Invoke(context.Background())
	if !errors.Is(err, nwrfc.ErrRpcFailed) {
		t.Fatalf("Invoke() = %v, want ErrRpcFailed", err)
	}
	var rerr *nwrfc.RfcError
	if !errors.As(err, &rerr) || rerr.Group != rfcapi.GroupCommunicationFailure {
		t.Errorf("expected a communication failure, got %v", err)
	}
	if conn.Alive() {
		t.Error("the connection should be gone")
	}
	if err := fc.Invoke(context.Background()); !errors.Is(err, nwrfc.ErrConnectionClosed) {
		t.Errorf("second Invoke() = %v, want ErrConnectionClosed", err)
	}

	fc.Close()
	if s.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d, want 0", s.OpenHandles())
	}
}

// TestDescription tests the parameter metadata of a looked up function
func TestDescription(t *testing.T) {
	_, conn := openSim(t)
	fd := lookup(t, conn, "rfc_read_table")
	if fd.Name != "RFC_READ_TABLE" {
		t.Errorf("Name = %q", fd.Name)
	}
	if again := lookup(t, conn, "RFC_READ_TABLE"); again != fd {
		t.Error("descriptions should be cached per connection")
	}
	if fd.ParameterCount() != 8 {
		t.Fatalf("ParameterCount() = %d, want 8", fd.ParameterCount())
	}

	p := fd.Parameter("delimiter")
	if p == nil {
		t.Fatal("Parameter(delimiter) = nil")
	}
	if p.Type != rfcapi.TypeChar || p.Direction != rfcapi.DirImport || p.UcLength != 2 {
		t.Errorf("DELIMITER = %+v", p)
	}
	if !p.Optional || p.DefaultValue != "SPACE" || p.Text == "" {
		t.Errorf("DELIMITER metadata = optional %v, default %q, text %q", p.Optional, p.DefaultValue, p.Text)
	}

	data := fd.ParameterByIndex(7)
	if data == nil || data.Name != "DATA" || data.Direction != rfcapi.DirTables {
		t.Fatalf("ParameterByIndex(7) = %+v", data)
	}
	td := data.TypeDesc
	if td == nil || td.Name != "TAB512" || td.FieldCount() != 1 {
		t.Fatalf("DATA line type = %+v", td)
	}
	if f := td.Field("wa"); f == nil || f.UcLength != 1024 {
		t.Errorf("WA = %+v", f)
	}
	if fd.ParameterByIndex(8) != nil || fd.Parameter("NOPE") != nil {
		t.Error("lookups outside the signature should return nil")
	}
}

// TestLogonFailure tests the error of a rejected logon
func TestLogonFailure(t *testing.T) {
	lib, err := nwrfc.New(sim.New().API(), nwrfc.BackendSimulated)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	bad := testLogon
	bad.Passwd = "wrong"
	_, err = lib.Open(bad.Params())
	if !errors.Is(err, nwrfc.ErrConnectFailed) {
		t.Fatalf("Open() = %v, want ErrConnectFailed", err)
	}
	var rerr *nwrfc.RfcError
	if !errors.As(err, &rerr) || rerr.Code != rfcapi.RCLogonFailure {
		t.Errorf("expected RFC_LOGON_FAILURE, got %v", err)
	}
}

// TestLogonParams tests that empty fields are left out
func TestLogonParams(t *testing.T) {
	p := nwrfc.Logon{AsHost: "h", Client: "001"}.Params()
	if len(p) != 2 || p["ashost"] != "h" || p["client"] != "001" {
		t.Errorf("Params() = %v", p)
	}
}
