package nwrfc

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// FunctionCall is one invocation of a remote function. Parameters are bound
// with Set, the call runs with Invoke and results are read with Get, Table
// and Structure. Close destroys the call and every table or structure
// obtained from it.
//
// A FunctionCall belongs to one goroutine at a time.
type FunctionCall struct {
	conn  *Connection
	fd    *FunctionDescription
	g     *guard
	bound map[string]struct{}
}

// Description returns the signature the call was created from.
func (fc *FunctionCall) Description() *FunctionDescription {
	return fc.fd
}

// param resolves name and checks its direction. Nothing crosses the
// library boundary.
func (fc *FunctionCall) param(name string, write bool) (*ParameterDescription, error) {
	p := fc.fd.Parameter(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no parameter %s", ErrUnknownParameter, fc.fd.Name, name)
	}
	if write && !p.Direction.CanWrite() {
		return nil, fmt.Errorf("%w: %s is an %s parameter and cannot be set", ErrDirectionMismatch, p.Name, p.Direction)
	}
	if !write && !p.Direction.CanRead() {
		return nil, fmt.Errorf("%w: %s is an %s parameter and cannot be read", ErrDirectionMismatch, p.Name, p.Direction)
	}
	return p, nil
}

// Set binds v to the named import, changing or tables parameter. v is fully
// checked before the library is called, so a rejected value leaves every
// parameter as it was.
func (fc *FunctionCall) Set(name string, v Value) error {
	p, err := fc.param(name, true)
	if err != nil {
		return err
	}
	sh := p.shape()
	c, err := encode(v, sh)
	if err != nil {
		return err
	}
	return fc.storeParam(sh, c)
}

func (fc *FunctionCall) storeParam(sh shape, c cell) error {
	err := fc.g.borrow(func(h rfcapi.Handle) error {
		return store(fc.conn.lib.api, h, sh, c)
	})
	if err != nil {
		return err
	}
	fc.bound[sh.name] = struct{}{}
	return nil
}

// SetAll binds every value of rec. All values are checked first; the first
// invalid one fails the whole set without a library call.
func (fc *FunctionCall) SetAll(rec Record) error {
	type pending struct {
		sh shape
		c  cell
	}
	names := slices.Sorted(maps.Keys(rec))
	todo := make([]pending, 0, len(names))
	for _, name := range names {
		p, err := fc.param(name, true)
		if err != nil {
			return err
		}
		sh := p.shape()
		c, err := encode(rec[name], sh)
		if err != nil {
			return err
		}
		todo = append(todo, pending{sh: sh, c: c})
	}
	for _, t := range todo {
		if err := fc.storeParam(t.sh, t.c); err != nil {
			return err
		}
	}
	return nil
}

// Bound reports whether the named parameter has been set.
func (fc *FunctionCall) Bound(name string) bool {
	p := fc.fd.Parameter(name)
	if p == nil {
		return false
	}
	_, ok := fc.bound[p.Name]
	return ok
}

// Get reads the named export, changing or tables parameter. Tables are
// returned as rows; use Table for positional access.
func (fc *FunctionCall) Get(name string) (Value, error) {
	p, err := fc.param(name, false)
	if err != nil {
		return Value{}, err
	}
	sh := p.shape()
	var v Value
	err = fc.g.borrow(func(h rfcapi.Handle) error {
		c, err := load(fc.conn.lib.api, h, sh)
		if err != nil {
			return err
		}
		v, err = decode(c, sh)
		return err
	})
	return v, err
}

// Table returns the named TABLE parameter. The table belongs to the call
// and is valid until the call is closed.
func (fc *FunctionCall) Table(name string) (*Table, error) {
	p := fc.fd.Parameter(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no parameter %s", ErrUnknownParameter, fc.fd.Name, name)
	}
	if p.Type != rfcapi.TypeTable {
		return nil, fmt.Errorf("%w: %s is %s, not TABLE", ErrTypeMismatch, p.Name, p.Type)
	}
	var t *Table
	err := fc.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		var raw rfcapi.Handle
		if err := check(fc.conn.lib.api.GetTable(h, &p.nameZ[0], &raw, &ei), "get table "+p.Name, &ei); err != nil {
			return err
		}
		t = &Table{lib: fc.conn.lib, g: fc.g.child(kindTable, raw), td: p.TypeDesc}
		return nil
	})
	return t, err
}

// Structure returns the named STRUCTURE parameter. The structure belongs to
// the call and is valid until the call is closed.
func (fc *FunctionCall) Structure(name string) (*Structure, error) {
	p := fc.fd.Parameter(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no parameter %s", ErrUnknownParameter, fc.fd.Name, name)
	}
	if p.Type != rfcapi.TypeStructure {
		return nil, fmt.Errorf("%w: %s is %s, not STRUCTURE", ErrTypeMismatch, p.Name, p.Type)
	}
	var s *Structure
	err := fc.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		var raw rfcapi.Handle
		if err := check(fc.conn.lib.api.GetStructure(h, &p.nameZ[0], &raw, &ei), "get structure "+p.Name, &ei); err != nil {
			return err
		}
		s = &Structure{lib: fc.conn.lib, g: fc.g.child(kindStructure, raw), td: p.TypeDesc}
		return nil
	})
	return s, err
}

// Invoke runs the call on its connection. ctx bounds only the wait for the
// connection; once the request is sent, Invoke blocks until the backend
// answers. A non-OK result fails with ErrRpcFailed wrapping the *RfcError.
func (fc *FunctionCall) Invoke(ctx context.Context) error {
	c := fc.conn
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()

	start := time.Now()
	var ei rfcapi.ErrorInfo
	err := c.g.borrow(func(conn rfcapi.Handle) error {
		return fc.g.borrow(func(fn rfcapi.Handle) error {
			if rc := c.lib.api.Invoke(conn, fn, &ei); rc != rfcapi.RCOk {
				if ei.Code == rfcapi.RCOk {
					ei.Code = rc
				}
				return failure(ErrRpcFailed, fc.fd.Name, &ei)
			}
			return nil
		})
	})
	c.lib.logger.Debug("invoke", "function", fc.fd.Name, "elapsed", time.Since(start), "ok", err == nil)
	if err != nil && closesConnection(&ei) {
		// The library has already dropped the connection.
		c.g.abandon()
		c.lib.logger.Debug("connection lost", "code", ei.Code.String())
	}
	return err
}

// closesConnection reports failures after which the library has closed the
// connection itself.
func closesConnection(ei *rfcapi.ErrorInfo) bool {
	return ei.Group == rfcapi.GroupCommunicationFailure || ei.Code == rfcapi.RCAbapRuntimeFailure
}

// Close destroys the call. Tables and structures obtained from it become
// invalid. Close is idempotent.
func (fc *FunctionCall) Close() error {
	fc.g.release()
	return nil
}
