package nwrfc

import (
	"fmt"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Structure is a STRUCTURE parameter, or a standalone structure made with
// Library.NewStructure.
type Structure struct {
	lib *Library
	g   *guard
	td  *TypeDescription
}

// NewStructure creates a standalone structure of the given type.
func (l *Library) NewStructure(td *TypeDescription) (*Structure, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	if td == nil {
		return nil, fmt.Errorf("%w: no structure type", ErrTypeMismatch)
	}
	var s *Structure
	err := td.g.borrow(func(raw rfcapi.Handle) error {
		var ei rfcapi.ErrorInfo
		h := l.api.CreateStructure(raw, &ei)
		if h == 0 {
			return check(rfcapi.RCIllegalState, "create structure "+td.Name, &ei)
		}
		s = &Structure{lib: l, g: l.acquire(kindStructure, h, l.api.DestroyStructure), td: td}
		return nil
	})
	return s, err
}

// TypeDescription returns the structure type.
func (s *Structure) TypeDescription() *TypeDescription {
	return s.td
}

// Valid reports whether the structure may still be used.
func (s *Structure) Valid() bool {
	return s.g.live()
}

// Close releases an owned structure, or detaches a borrowed one.
func (s *Structure) Close() error {
	s.g.release()
	return nil
}

// Set writes one field.
func (s *Structure) Set(name string, v Value) error {
	f := s.td.Field(name)
	if f == nil {
		return fmt.Errorf("%w: %s has no field %s", ErrUnknownParameter, s.td.Name, name)
	}
	sh := f.shape()
	c, err := encode(v, sh)
	if err != nil {
		return err
	}
	return s.g.borrow(func(h rfcapi.Handle) error {
		return store(s.lib.api, h, sh, c)
	})
}

// Get reads one field.
func (s *Structure) Get(name string) (Value, error) {
	f := s.td.Field(name)
	if f == nil {
		return Value{}, fmt.Errorf("%w: %s has no field %s", ErrUnknownParameter, s.td.Name, name)
	}
	sh := f.shape()
	var v Value
	err := s.g.borrow(func(h rfcapi.Handle) error {
		c, err := load(s.lib.api, h, sh)
		if err != nil {
			return err
		}
		v, err = decode(c, sh)
		return err
	})
	return v, err
}

// SetRecord writes the fields present in rec.
func (s *Structure) SetRecord(rec Record) error {
	fields, err := encodeRecord(rec, s.td)
	if err != nil {
		return err
	}
	return s.g.borrow(func(h rfcapi.Handle) error {
		return storeFields(s.lib.api, h, fields)
	})
}

// Record reads every field.
func (s *Structure) Record() (Record, error) {
	var rec Record
	err := s.g.borrow(func(h rfcapi.Handle) error {
		fields, err := loadFields(s.lib.api, h, s.td)
		if err != nil {
			return err
		}
		rec, err = decodeRecord(fields)
		return err
	})
	return rec, err
}
