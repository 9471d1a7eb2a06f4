package nwrfc

import (
	"context"
	"fmt"
)

// Must variants panic instead of returning an error. They suit scripts and
// tests where a failure is fatal anyway.

// MustOpen is like Open but panics on error.
func (l *Library) MustOpen(params Params) *Connection {
	c, err := l.Open(params)
	if err != nil {
		panic(fmt.Sprintf("MustOpen failed: %v", err))
	}
	return c
}

// MustPing is like Ping but panics on error.
func (c *Connection) MustPing(ctx context.Context) {
	if err := c.Ping(ctx); err != nil {
		panic(fmt.Sprintf("MustPing failed: %v", err))
	}
}

// MustLookupFunction is like LookupFunction but panics on error.
func (c *Connection) MustLookupFunction(name string) *FunctionDescription {
	fd, err := c.LookupFunction(name)
	if err != nil {
		panic(fmt.Sprintf("MustLookupFunction(%q) failed: %v", name, err))
	}
	return fd
}

// MustNewCall is like NewCall but panics on error.
func (c *Connection) MustNewCall(fd *FunctionDescription) *FunctionCall {
	fc, err := c.NewCall(fd)
	if err != nil {
		panic(fmt.Sprintf("MustNewCall(%s) failed: %v", fd.Name, err))
	}
	return fc
}

// MustInvoke is like Invoke but panics on error.
func (c *Connection) MustInvoke(ctx context.Context, fd *FunctionDescription, inputs Record) Record {
	out, err := c.Invoke(ctx, fd, inputs)
	if err != nil {
		panic(fmt.Sprintf("MustInvoke(%s) failed: %v", fd.Name, err))
	}
	return out
}

// MustSet is like Set but panics on error.
func (fc *FunctionCall) MustSet(name string, v Value) {
	if err := fc.Set(name, v); err != nil {
		panic(fmt.Sprintf("MustSet(%q) failed: %v", name, err))
	}
}

// MustGet is like Get but panics on error.
func (fc *FunctionCall) MustGet(name string) Value {
	v, err := fc.Get(name)
	if err != nil {
		panic(fmt.Sprintf("MustGet(%q) failed: %v", name, err))
	}
	return v
}

// MustInvoke is like Invoke but panics on error.
func (fc *FunctionCall) MustInvoke(ctx context.Context) {
	if err := fc.Invoke(ctx); err != nil {
		panic(fmt.Sprintf("MustInvoke(%s) failed: %v", fc.fd.Name, err))
	}
}

// MustTable is like Table but panics on error.
func (fc *FunctionCall) MustTable(name string) *Table {
	t, err := fc.Table(name)
	if err != nil {
		panic(fmt.Sprintf("MustTable(%q) failed: %v", name, err))
	}
	return t
}

// MustRowCount is like RowCount but panics on error.
func (t *Table) MustRowCount() int {
	n, err := t.RowCount()
	if err != nil {
		panic(fmt.Sprintf("MustRowCount failed: %v", err))
	}
	return n
}

// MustAppendRow is like AppendRow but panics on error.
func (t *Table) MustAppendRow(rec Record) int {
	i, err := t.AppendRow(rec)
	if err != nil {
		panic(fmt.Sprintf("MustAppendRow failed: %v", err))
	}
	return i
}

// MustReadRow is like ReadRow but panics on error.
func (t *Table) MustReadRow(index int) Record {
	rec, err := t.ReadRow(index)
	if err != nil {
		panic(fmt.Sprintf("MustReadRow(%d) failed: %v", index, err))
	}
	return rec
}
