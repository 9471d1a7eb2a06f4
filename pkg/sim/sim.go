// Package sim is an in-process SAP system that serves the RFC library entry
// points. Its API table has the same shape as the one resolved from
// libsapnwrfc, so code written against the library runs unchanged against a
// System in tests and demos.
//
// The system carries a small repository (RFC_READ_TABLE, STFC_CONNECTION,
// STFC_STRUCTURE, STFC_CHANGING, STFC_DEEP_STRUCTURE, Z_SIM_MULTIPLY_AMOUNT),
// the tables USR02 and T000, and instrumentation for handle leaks, foreign
// call counts and overlapping calls on one connection.
package sim

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Kind is a kind of handle the caller owns.
type Kind int

const (
	KindConnection Kind = iota
	KindFunction
	KindStructure
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindFunction:
		return "function"
	case KindStructure:
		return "structure"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of the system instrumentation.
type Stats struct {
	Open         map[Kind]int // owned handles not yet destroyed
	ForeignCalls uint64       // entry point calls of any kind
	Violations   int          // calls that overlapped another call on the same connection
	MaxParallel  int          // most connection calls in flight at once, over all connections
}

// OpenHandles returns the number of owned handles not yet destroyed.
func (st Stats) OpenHandles() int {
	n := 0
	for _, c := range st.Open {
		n += c
	}
	return n
}

// Option configures a System.
type Option func(*System)

// WithUser adds a logon user for client.
func WithUser(client, user, passwd string) Option {
	return func(s *System) {
		s.users[userKey(client, user)] = passwd
	}
}

// WithLatency delays every call that uses a connection handle.
func WithLatency(d time.Duration) Option {
	return func(s *System) {
		s.latency = d
	}
}

// WithUnreachableHost makes logons to host fail with a communication error.
func WithUnreachableHost(host string) Option {
	return func(s *System) {
		s.unreachable[strings.ToLower(host)] = true
	}
}

// System is a simulated SAP system. It is safe for concurrent use.
type System struct {
	mu      sync.Mutex
	next    rfcapi.Handle
	objects map[rfcapi.Handle]any
	open    map[Kind]int
	faults  map[Kind]int

	functions map[string]*funcDef
	fdescs    map[rfcapi.Handle]*funcDef
	tdescs    map[rfcapi.Handle]*typeDef
	types     map[string]*typeDef
	db        map[string]*dbTable

	users       map[string]string
	unreachable map[string]bool

	latency    time.Duration
	calls      atomic.Uint64
	inflight   map[rfcapi.Handle]int
	parallel   int
	maxPar     int
	violations int

	version []uint16
}

// New creates a system with the default users: U/p and DEVELOPER/Down1oad
// in client 001, DDIC/19920706 in client 000.
func New(opts ...Option) *System {
	s := &System{
		next:        0x1000,
		objects:     make(map[rfcapi.Handle]any),
		open:        make(map[Kind]int),
		faults:      make(map[Kind]int),
		functions:   make(map[string]*funcDef),
		fdescs:      make(map[rfcapi.Handle]*funcDef),
		tdescs:      make(map[rfcapi.Handle]*typeDef),
		types:       make(map[string]*typeDef),
		db:          make(map[string]*dbTable),
		users:       make(map[string]string),
		unreachable: make(map[string]bool),
		inflight:    make(map[rfcapi.Handle]int),
	}
	s.users[userKey("001", "U")] = "p"
	s.users[userKey("001", "DEVELOPER")] = "Down1oad"
	s.users[userKey("000", "DDIC")] = "19920706"
	for _, opt := range opts {
		opt(s)
	}
	s.version, _ = rfcapi.CharsZ("7500.0.14 (simulated)")
	s.buildRepository()
	s.buildDatabase()
	return s
}

func userKey(client, user string) string {
	return client + "/" + strings.ToUpper(user)
}

// API returns the entry point table of the system. Every slot is filled.
func (s *System) API() *rfcapi.API {
	return &rfcapi.API{
		GetVersion:              s.getVersion,
		OpenConnection:          s.openConnection,
		CloseConnection:         s.closeConnection,
		Ping:                    s.ping,
		GetFunctionDesc:         s.getFunctionDesc,
		GetFunctionName:         s.getFunctionName,
		GetParameterCount:       s.getParameterCount,
		GetParameterDescByIndex: s.getParameterDescByIndex,
		GetTypeName:             s.getTypeName,
		GetTypeLength:           s.getTypeLength,
		GetFieldCount:           s.getFieldCount,
		GetFieldDescByIndex:     s.getFieldDescByIndex,
		CreateFunction:          s.createFunction,
		DestroyFunction:         s.destroyFunction,
		Invoke:                  s.invoke,
		CreateStructure:         s.createStructure,
		DestroyStructure:        s.destroyStructure,
		CreateTable:             s.createTable,
		DestroyTable:            s.destroyTable,
		GetRowCount:             s.getRowCount,
		AppendNewRow:            s.appendNewRow,
		MoveTo:                  s.moveTo,
		MoveToFirstRow:          s.moveToFirstRow,
		MoveToNextRow:           s.moveToNextRow,
		GetCurrentRow:           s.getCurrentRow,
		DeleteCurrentRow:        s.deleteCurrentRow,
		DeleteAllRows:           s.deleteAllRows,

		SetChars:     s.setChars,
		SetNum:       s.setNum,
		SetString:    s.setString,
		SetDate:      s.setDate,
		SetTime:      s.setTime,
		SetBytes:     s.setBytes,
		SetXString:   s.setXString,
		SetInt:       s.setInt,
		SetInt1:      s.setInt1,
		SetInt2:      s.setInt2,
		SetInt8:      s.setInt8,
		SetFloat:     s.setFloat,
		SetStructure: s.setStructure,
		SetTable:     s.setTable,

		GetChars:        s.getChars,
		GetNum:          s.getNum,
		GetDate:         s.getDate,
		GetTime:         s.getTime,
		GetStringLength: s.getStringLength,
		GetString:       s.getString,
		GetBytes:        s.getBytes,
		GetXString:      s.getXString,
		GetInt:          s.getInt,
		GetInt1:         s.getInt1,
		GetInt2:         s.getInt2,
		GetInt8:         s.getInt8,
		GetFloat:        s.getFloat,
		GetStructure:    s.getStructure,
		GetTable:        s.getTable,
	}
}

// Stats returns a snapshot of the instrumentation.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := make(map[Kind]int, len(s.open))
	for k, n := range s.open {
		if n != 0 {
			open[k] = n
		}
	}
	return Stats{
		Open:         open,
		ForeignCalls: s.calls.Load(),
		Violations:   s.violations,
		MaxParallel:  s.maxPar,
	}
}

// ForeignCalls returns the number of entry point calls so far.
func (s *System) ForeignCalls() uint64 {
	return s.calls.Load()
}

// OpenHandles returns the number of owned handles not yet destroyed.
func (s *System) OpenHandles() int {
	return s.Stats().OpenHandles()
}

// FailDestroy makes the next n destroy calls for kind report an error. The
// object is freed regardless, as the library does.
func (s *System) FailDestroy(kind Kind, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[kind] += n
}

// Disrupt breaks every open connection. The next call on each fails with
// RFC_COMMUNICATION_FAILURE and closes the connection.
func (s *System) Disrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		if c, ok := o.(*conn); ok {
			c.broken = true
		}
	}
}

// alloc registers o under a fresh handle. Callers hold s.mu.
func (s *System) alloc(o any) rfcapi.Handle {
	s.next += 0x10
	s.objects[s.next] = o
	return s.next
}

// track records a call that uses conn and applies the configured latency.
// The returned func ends the call.
func (s *System) track(conn rfcapi.Handle) func() {
	s.mu.Lock()
	s.inflight[conn]++
	if s.inflight[conn] > 1 {
		s.violations++
	}
	s.parallel++
	s.maxPar = max(s.maxPar, s.parallel)
	s.mu.Unlock()

	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.parallel--
		if s.inflight[conn]--; s.inflight[conn] <= 0 {
			delete(s.inflight, conn)
		}
	}
}

// fault is a failure reported through RFC_ERROR_INFO.
type fault struct {
	rc      rfcapi.RC
	key     string
	msg     string
	msgType string
}

func (f *fault) Error() string {
	return f.rc.String() + ": " + f.msg
}

func failf(rc rfcapi.RC, key, format string, args ...any) *fault {
	return &fault{rc: rc, key: key, msg: fmt.Sprintf(format, args...)}
}

func groupOf(rc rfcapi.RC) rfcapi.ErrorGroup {
	switch rc {
	case rfcapi.RCOk:
		return rfcapi.GroupOk
	case rfcapi.RCLogonFailure:
		return rfcapi.GroupLogonFailure
	case rfcapi.RCCommunicationFailure:
		return rfcapi.GroupCommunicationFailure
	case rfcapi.RCAbapException:
		return rfcapi.GroupAbapApplicationFailure
	case rfcapi.RCAbapRuntimeFailure, rfcapi.RCAbapMessage:
		return rfcapi.GroupAbapRuntimeFailure
	default:
		return rfcapi.GroupExternalRuntimeFailure
	}
}

// report fills ei from f and returns its code. A nil fault clears ei.
func report(ei *rfcapi.ErrorInfo, f *fault) rfcapi.RC {
	if f == nil {
		if ei != nil {
			*ei = rfcapi.ErrorInfo{}
		}
		return rfcapi.RCOk
	}
	if ei != nil {
		ei.Fill(f.rc, groupOf(f.rc), f.key, f.msg)
		if f.msgType != "" {
			ei.FillAbapMessage("SIM", f.msgType, "000", f.msg)
		}
	}
	return f.rc
}

func invalidHandle(what string, h rfcapi.Handle) *fault {
	return failf(rfcapi.RCInvalidHandle, "RFC_INVALID_HANDLE", "An invalid %s handle 0x%x was passed to the API call", what, uintptr(h))
}
