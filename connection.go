package nwrfc

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Params are connection parameters. Keys are passed to the library as given;
// the library decides which ones it accepts.
type Params map[string]string

// Logon holds the common parameters of a direct application server logon.
type Logon struct {
	AsHost string
	SysNr  string
	Client string
	User   string
	Passwd string
	Lang   string
}

// Params returns the non-empty fields under their library key names.
func (l Logon) Params() Params {
	p := Params{}
	for k, v := range map[string]string{
		"ashost": l.AsHost,
		"sysnr":  l.SysNr,
		"client": l.Client,
		"user":   l.User,
		"passwd": l.Passwd,
		"lang":   l.Lang,
	} {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// Connection is one logon session. Every library call that uses the
// connection handle is serialized; independent connections run in parallel.
//
// The connection is closed when Close is called, or by the garbage
// collector if it becomes unreachable while still open.
type Connection struct {
	lib *Library
	g   *guard
	sem chan struct{}

	mu        sync.Mutex
	functions map[string]*FunctionDescription
}

// Open logs on with params. A failed logon returns ErrConnectFailed wrapping
// the *RfcError.
func (l *Library) Open(params Params) (*Connection, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	keys := slices.Sorted(maps.Keys(params))
	cp := make([]rfcapi.ConnectionParameter, 0, len(keys))
	var pinner runtime.Pinner
	defer pinner.Unpin()
	for _, k := range keys {
		name, err := rfcapi.CharsZ(k)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %w", ErrConnectFailed, k, err)
		}
		value, err := rfcapi.CharsZ(params[k])
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %w", ErrConnectFailed, k, err)
		}
		pinner.Pin(&name[0])
		pinner.Pin(&value[0])
		cp = append(cp, rfcapi.ConnectionParameter{Name: &name[0], Value: &value[0]})
	}
	var first *rfcapi.ConnectionParameter
	if len(cp) > 0 {
		first = &cp[0]
	}

	start := time.Now()
	var ei rfcapi.ErrorInfo
	h := l.api.OpenConnection(first, uint32(len(cp)), &ei)
	if h == 0 {
		if ei.Code == rfcapi.RCOk {
			ei.Code = rfcapi.RCInvalidParameter
		}
		return nil, failure(ErrConnectFailed, "open", &ei)
	}
	l.logger.Debug("connection opened", "ashost", params["ashost"], "client", params["client"], "elapsed", time.Since(start))

	return &Connection{
		lib:       l,
		g:         l.acquire(kindConnection, h, l.api.CloseConnection),
		sem:       make(chan struct{}, 1),
		functions: make(map[string]*FunctionDescription),
	}, nil
}

// lock takes the connection for one library call. It waits until ctx is
// done at most, and fails with ErrConnectionClosed on a closed connection.
func (c *Connection) lock(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !c.g.live() {
		<-c.sem
		return ErrConnectionClosed
	}
	return nil
}

func (c *Connection) unlock() {
	<-c.sem
}

// Library returns the library the connection was opened with.
func (c *Connection) Library() *Library {
	return c.lib
}

// Alive reports whether the connection is open.
func (c *Connection) Alive() bool {
	return c.g.live()
}

// Close logs off. It waits for a running call to finish. Close is
// idempotent; a failure of the library close is logged.
func (c *Connection) Close() error {
	c.sem <- struct{}{}
	defer c.unlock()
	if c.g.live() {
		c.g.release()
		c.lib.logger.Debug("connection closed")
	}
	return nil
}

// Ping checks that the backend answers.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	var ei rfcapi.ErrorInfo
	err := c.g.borrow(func(h rfcapi.Handle) error {
		if rc := c.lib.api.Ping(h, &ei); rc != rfcapi.RCOk {
			if ei.Code == rfcapi.RCOk {
				ei.Code = rc
			}
			return failure(ErrRpcFailed, "ping", &ei)
		}
		return nil
	})
	if err != nil && closesConnection(&ei) {
		c.g.abandon()
	}
	return err
}

// LookupFunction fetches the signature of the named function. Descriptions
// are cached per connection. An unknown name fails with ErrFunctionNotFound.
func (c *Connection) LookupFunction(name string) (*FunctionDescription, error) {
	if !c.g.live() {
		return nil, ErrConnectionClosed
	}
	key := strings.ToUpper(name)
	c.mu.Lock()
	fd, ok := c.functions[key]
	c.mu.Unlock()
	if ok {
		return fd, nil
	}

	if err := c.lock(context.Background()); err != nil {
		return nil, err
	}
	defer c.unlock()

	nameZ, err := rfcapi.CharsZ(key)
	if err != nil {
		return nil, err
	}
	err = c.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		raw := c.lib.api.GetFunctionDesc(h, &nameZ[0], &ei)
		if raw == 0 {
			if ei.Code == rfcapi.RCNotFound {
				return failure(ErrFunctionNotFound, key, &ei)
			}
			return fmt.Errorf("lookup %s: %w", key, translate(&ei))
		}
		d := &describer{lib: c.lib, types: make(map[rfcapi.Handle]*TypeDescription)}
		fd, err = d.function(raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.functions[key] = fd
	c.mu.Unlock()
	return fd, nil
}

// NewCall creates a call of fd on this connection. The caller must Close it.
func (c *Connection) NewCall(fd *FunctionDescription) (*FunctionCall, error) {
	if !c.g.live() {
		return nil, ErrConnectionClosed
	}
	var fc *FunctionCall
	err := fd.g.borrow(func(raw rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		h := c.lib.api.CreateFunction(raw, &ei)
		if h == 0 {
			return check(rfcapi.RCIllegalState, "create function "+fd.Name, &ei)
		}
		fc = &FunctionCall{
			conn:  c,
			fd:    fd,
			g:     c.lib.acquire(kindFunction, h, c.lib.api.DestroyFunction),
			bound: make(map[string]struct{}),
		}
		return nil
	})
	return fc, err
}

// Invoke runs fd with inputs and returns every export, changing and tables
// parameter. Tables come back as rows. The call is destroyed before Invoke
// returns, whatever the outcome.
func (c *Connection) Invoke(ctx context.Context, fd *FunctionDescription, inputs Record) (Record, error) {
	fc, err := c.NewCall(fd)
	if err != nil {
		return nil, err
	}
	defer fc.Close()

	if err := fc.SetAll(inputs); err != nil {
		return nil, err
	}
	if err := fc.Invoke(ctx); err != nil {
		return nil, err
	}

	out := make(Record)
	for _, p := range fd.params {
		if !p.Direction.CanRead() {
			continue
		}
		v, err := fc.Get(p.Name)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

// Call looks up name and invokes it with inputs.
func (c *Connection) Call(ctx context.Context, name string, inputs Record) (Record, error) {
	fd, err := c.LookupFunction(name)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, fd, inputs)
}
