package nwrfc

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// handleKind names the kind of resource a guard holds.
type handleKind int

const (
	kindConnection handleKind = iota
	kindFunctionDesc
	kindTypeDesc
	kindFunction
	kindStructure
	kindTable
	kindRow
)

func (k handleKind) String() string {
	switch k {
	case kindConnection:
		return "connection"
	case kindFunctionDesc:
		return "function description"
	case kindTypeDesc:
		return "type description"
	case kindFunction:
		return "function"
	case kindStructure:
		return "structure"
	case kindTable:
		return "table"
	case kindRow:
		return "row"
	default:
		return "unknown"
	}
}

// destroyer is the library call that releases one kind of handle.
type destroyer func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC

// guard owns or borrows one raw handle. The raw value never leaves the
// guard except for the duration of a borrow callback.
//
// An owned guard carries the destroyer bound at acquisition and calls it
// exactly once. A borrowed guard has no destroyer and a parent; it is live
// only while every ancestor is.
type guard struct {
	kind    handleKind
	raw     rfcapi.Handle
	parent  *guard
	destroy destroyer
	lib     *Library

	once sync.Once
	dead atomic.Bool
}

// acquire wraps an owned handle. The finalizer releases it if the owner is
// dropped without Close.
func (l *Library) acquire(kind handleKind, raw rfcapi.Handle, destroy destroyer) *guard {
	g := &guard{kind: kind, raw: raw, destroy: destroy, lib: l}
	if destroy != nil {
		l.owned.Add(1)
		runtime.SetFinalizer(g, (*guard).finalize)
	}
	return g
}

// child wraps a handle that lives inside the container held by g.
func (g *guard) child(kind handleKind, raw rfcapi.Handle) *guard {
	return &guard{kind: kind, raw: raw, parent: g, lib: g.lib}
}

func (g *guard) live() bool {
	for p := g; p != nil; p = p.parent {
		if p.dead.Load() {
			return false
		}
	}
	return true
}

// borrow passes the raw handle to fn while g and its ancestors are live.
// g, and through parent every ancestor, stays reachable until fn returns,
// so no finalizer can destroy the handle while the library uses it.
// Guards are not safe for a release concurrent with a borrow; connections
// serialize their own use and containers belong to one goroutine.
func (g *guard) borrow(fn func(rfcapi.Handle) error) error {
	defer runtime.KeepAlive(g)
	if !g.live() {
		return fmt.Errorf("%w: %s", ErrUseAfterRelease, g.kind)
	}
	return fn(g.raw)
}

// release runs the destroyer once. A failing destroy is logged and
// swallowed; the guard is dead afterwards either way.
func (g *guard) release() {
	g.once.Do(func() {
		g.dead.Store(true)
		runtime.SetFinalizer(g, nil)
		if g.destroy == nil {
			return
		}
		defer g.lib.owned.Add(-1)
		var ei rfcapi.ErrorInfo
		if rc := g.destroy(g.raw, &ei); rc != rfcapi.RCOk {
			if ei.Code == rfcapi.RCOk {
				ei.Code = rc
			}
			g.lib.logger.Warn(ErrHandleReleaseFailed.Error(),
				"kind", g.kind.String(),
				"code", rc.String(),
				"message", rfcapi.String(ei.Message[:]))
		}
	})
}

func (g *guard) finalize() {
	if g.dead.Load() {
		return
	}
	g.lib.logger.Warn("handle released by finalizer", "kind", g.kind.String())
	g.release()
}

// abandon marks the guard released without calling the destroyer. It is
// used for handles the library has already freed on its side.
func (g *guard) abandon() {
	g.once.Do(func() {
		g.dead.Store(true)
		runtime.SetFinalizer(g, nil)
		if g.destroy != nil {
			g.lib.owned.Add(-1)
		}
	})
}
