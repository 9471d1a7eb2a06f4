package nwrfc

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Table is a TABLE parameter or a standalone table. Rows are addressed by
// zero-based position; each row is a structure of the table's line type.
//
// A table obtained from a FunctionCall is borrowed and becomes invalid when
// the call is closed. A table made with Library.NewTable is owned by the
// caller until Close, or until it is attached to a call with FromTable.
type Table struct {
	lib *Library
	g   *guard
	td  *TypeDescription
}

// NewTable creates a standalone table of the given line type.
func (l *Library) NewTable(td *TypeDescription) (*Table, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	if td == nil {
		return nil, fmt.Errorf("%w: no line type", ErrTypeMismatch)
	}
	var t *Table
	err := td.g.borrow(func(raw rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		h := l.api.CreateTable(raw, &ei)
		if h == 0 {
			return check(rfcapi.RCIllegalState, "create table "+td.Name, &ei)
		}
		t = &Table{lib: l, g: l.acquire(kindTable, h, l.api.DestroyTable), td: td}
		return nil
	})
	return t, err
}

// TypeDescription returns the line type.
func (t *Table) TypeDescription() *TypeDescription {
	return t.td
}

// Valid reports whether the table may still be used.
func (t *Table) Valid() bool {
	return t.g.live()
}

// Close releases an owned table, or detaches a borrowed one. Close is
// idempotent.
func (t *Table) Close() error {
	t.g.release()
	return nil
}

// RowCount returns the number of rows.
func (t *Table) RowCount() (int, error) {
	var n uint32
	err := t.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		return check(t.lib.api.GetRowCount(h, &n, &ei), "get row count", &ei)
	})
	return int(n), err
}

// AppendRow appends a row holding the fields of rec and returns its index.
// Fields absent from rec keep their initial value. If filling the row fails
// the row is removed again.
func (t *Table) AppendRow(rec Record) (int, error) {
	fields, err := encodeRecord(rec, t.td)
	if err != nil {
		return 0, err
	}
	var index int
	err = t.g.borrow(func(h rfcapi.Handle) error {
		api := t.lib.api
		var ei rfcapi.ErrorInfo
		row := api.AppendNewRow(h, &ei)
		if row == 0 {
			return check(rfcapi.RCIllegalState, "append row", &ei)
		}
		if err := storeFields(api, row, fields); err != nil {
			api.DeleteCurrentRow(h, &ei)
			return err
		}
		var n uint32
		if err := check(api.GetRowCount(h, &n, &ei), "get row count", &ei); err != nil {
			return err
		}
		index = int(n) - 1
		return nil
	})
	return index, err
}

// inBounds fails with ErrRowIndexOutOfBounds unless 0 <= index < RowCount.
func (t *Table) inBounds(h rfcapi.Handle, index int) error {
	var ei rfcapi.ErrorInfo
	var n uint32
	if err := check(t.lib.api.GetRowCount(h, &n, &ei), "get row count", &ei); err != nil {
		return err
	}
	if index < 0 || index >= int(n) {
		return fmt.Errorf("%w: row %d of %d", ErrRowIndexOutOfBounds, index, n)
	}
	return nil
}

// ReadRow returns the fields of row index.
func (t *Table) ReadRow(index int) (Record, error) {
	var rec Record
	err := t.g.borrow(func(h rfcapi.Handle) error {
		if err := t.inBounds(h, index); err != nil {
			return err
		}
		row, err := currentRow(t.lib.api, h, uint32(index))
		if err != nil {
			return err
		}
		rec, err = t.readFields(row)
		return err
	})
	return rec, err
}

func (t *Table) readFields(row rfcapi.Handle) (Record, error) {
	fields, err := loadFields(t.lib.api, row, t.td)
	if err != nil {
		return nil, err
	}
	return decodeRecord(fields)
}

// WriteRow overwrites the fields of row index that are present in rec.
func (t *Table) WriteRow(index int, rec Record) error {
	fields, err := encodeRecord(rec, t.td)
	if err != nil {
		return err
	}
	return t.g.borrow(func(h rfcapi.Handle) error {
		if err := t.inBounds(h, index); err != nil {
			return err
		}
		row, err := currentRow(t.lib.api, h, uint32(index))
		if err != nil {
			return err
		}
		return storeFields(t.lib.api, row, fields)
	})
}

// DeleteRow removes row index; later rows move up by one.
func (t *Table) DeleteRow(index int) error {
	return t.g.borrow(func(h rfcapi.Handle) error {
		if err := t.inBounds(h, index); err != nil {
			return err
		}
		var ei rfcapi.ErrorInfo
		if err := check(t.lib.api.MoveTo(h, uint32(index), &ei), "move to row", &ei); err != nil {
			return err
		}
		return check(t.lib.api.DeleteCurrentRow(h, &ei), "delete row", &ei)
	})
}

// Clear removes every row.
func (t *Table) Clear() error {
	return t.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		return check(t.lib.api.DeleteAllRows(h, &ei), "delete rows", &ei)
	})
}

// Rows iterates over the rows in order. Iteration stops at the first error,
// which is yielded with a nil record.
func (t *Table) Rows() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		n, err := t.RowCount()
		if err != nil {
			yield(nil, err)
			return
		}
		for i := 0; i < n; i++ {
			rec, err := t.ReadRow(i)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Records returns every row.
func (t *Table) Records() ([]Record, error) {
	var out []Record
	for rec, err := range t.Rows() {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// cursor maps the end-of-table codes to io.EOF.
func (t *Table) cursor(op string, move func(rfcapi.Handle, *rfcapi.ErrorInfo) rfcapi.RC) error {
	return t.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		switch rc := move(h, &ei); rc {
		case rfcapi.RCTableMoveEOF, rfcapi.RCTableMoveBOF:
			return io.EOF
		default:
			return check(rc, op, &ei)
		}
	})
}

// First moves the cursor to the first row. It returns io.EOF on an empty
// table.
func (t *Table) First() error {
	return t.cursor("move to first row", t.lib.api.MoveToFirstRow)
}

// Next moves the cursor to the following row. It returns io.EOF after the
// last row.
func (t *Table) Next() error {
	return t.cursor("move to next row", t.lib.api.MoveToNextRow)
}

// MoveTo moves the cursor to row index.
func (t *Table) MoveTo(index int) error {
	return t.g.borrow(func(h rfcapi.Handle) error {
		if err := t.inBounds(h, index); err != nil {
			return err
		}
		var ei rfcapi.ErrorInfo
		return check(t.lib.api.MoveTo(h, uint32(index), &ei), "move to row", &ei)
	})
}

// Current returns the fields of the row under the cursor.
func (t *Table) Current() (Record, error) {
	var rec Record
	err := t.g.borrow(func(h rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		row := t.lib.api.GetCurrentRow(h, &ei)
		if row == 0 {
			if ei.Code == rfcapi.RCTableMoveEOF || ei.Code == rfcapi.RCTableMoveBOF {
				return io.EOF
			}
			return check(rfcapi.RCIllegalState, "get current row", &ei)
		}
		var err error
		rec, err = t.readFields(row)
		return err
	})
	return rec, err
}

// Each calls fn for every row under a cursor walk, stopping at the first
// error fn returns.
func (t *Table) Each(fn func(Record) error) error {
	err := t.First()
	for err == nil {
		var rec Record
		if rec, err = t.Current(); err != nil {
			break
		}
		if err = fn(rec); err != nil {
			return err
		}
		err = t.Next()
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
