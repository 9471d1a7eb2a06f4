package nwrfc

import (
	"slices"
	"strings"

	"github.com/mkfoss/nwrfc/pkg/rfcapi"
)

// Type is the ABAP type of a parameter or field.
type Type = rfcapi.Type

// Direction is the direction of a parameter, seen from the called function.
type Direction = rfcapi.Direction

// FunctionDescription is the parameter signature of a remote function.
// Descriptions are cached by the library repository and stay valid for the
// life of the process, independent of the connection that fetched them.
type FunctionDescription struct {
	Name   string
	params []*ParameterDescription
	index  map[string]int // upper-cased name -> position
	g      *guard
}

// Parameters returns the parameters in declaration order.
func (fd *FunctionDescription) Parameters() []*ParameterDescription {
	return slices.Clone(fd.params)
}

// ParameterCount returns the number of parameters.
func (fd *FunctionDescription) ParameterCount() int {
	return len(fd.params)
}

// ParameterByIndex returns the parameter at the zero-based index, or nil.
func (fd *FunctionDescription) ParameterByIndex(index int) *ParameterDescription {
	if index < 0 || index >= len(fd.params) {
		return nil
	}
	return fd.params[index]
}

// Parameter returns the named parameter, or nil. The lookup is
// case-insensitive.
func (fd *FunctionDescription) Parameter(name string) *ParameterDescription {
	i, ok := fd.index[strings.ToUpper(name)]
	if !ok {
		return nil
	}
	return fd.params[i]
}

// ParameterDescription describes one parameter of a function.
type ParameterDescription struct {
	Name         string
	Type         Type
	Direction    Direction
	NucLength    uint32
	UcLength     uint32
	Decimals     uint32
	Optional     bool
	DefaultValue string
	Text         string
	TypeDesc     *TypeDescription // line type of STRUCTURE and TABLE parameters

	nameZ []uint16
}

func (p *ParameterDescription) shape() shape {
	return shape{name: p.Name, nameZ: p.nameZ, typ: p.Type, nuc: p.NucLength, uc: p.UcLength, decimals: p.Decimals, td: p.TypeDesc}
}

// TypeDescription describes the layout of a structure or table line.
type TypeDescription struct {
	Name      string
	NucLength uint32
	UcLength  uint32
	fields    []*FieldDescription
	index     map[string]int
	ordered   []*FieldDescription // by UcOffset
	g         *guard
}

// Fields returns the fields in declaration order.
func (td *TypeDescription) Fields() []*FieldDescription {
	return slices.Clone(td.fields)
}

// FieldCount returns the number of fields.
func (td *TypeDescription) FieldCount() int {
	return len(td.fields)
}

// Field returns the named field, or nil. The lookup is case-insensitive.
func (td *TypeDescription) Field(name string) *FieldDescription {
	i := td.FieldIndex(name)
	if i < 0 {
		return nil
	}
	return td.fields[i]
}

// FieldIndex returns the position of the named field, or -1.
func (td *TypeDescription) FieldIndex(name string) int {
	i, ok := td.index[strings.ToUpper(name)]
	if !ok {
		return -1
	}
	return i
}

// FieldDescription describes one field of a structure.
type FieldDescription struct {
	Name      string
	Type      Type
	NucLength uint32
	NucOffset uint32
	UcLength  uint32
	UcOffset  uint32
	Decimals  uint32
	TypeDesc  *TypeDescription

	nameZ []uint16
}

func (f *FieldDescription) shape() shape {
	return shape{name: f.Name, nameZ: f.nameZ, typ: f.Type, nuc: f.NucLength, uc: f.UcLength, decimals: f.Decimals, td: f.TypeDesc}
}

// describer walks the metadata of one function, sharing type descriptions
// that occur more than once.
type describer struct {
	lib   *Library
	types map[rfcapi.Handle]*TypeDescription
}

func (d *describer) function(raw rfcapi.Handle) (*FunctionDescription, error) {
	api := d.lib.api
	var ei rfcapi.ErrorInfo
	var name [rfcapi.ABAPNameLen]uint16
	if err := check(api.GetFunctionName(raw, &name[0], &ei), "get function name", &ei); err != nil {
		return nil, err
	}
	var count uint32
	if err := check(api.GetParameterCount(raw, &count, &ei), "get parameter count", &ei); err != nil {
		return nil, err
	}

	fd := &FunctionDescription{
		Name:   rfcapi.String(name[:]),
		params: make([]*ParameterDescription, 0, count),
		index:  make(map[string]int, count),
		g:      d.lib.acquire(kindFunctionDesc, raw, nil),
	}
	for i := uint32(0); i < count; i++ {
		var pd rfcapi.ParameterDesc
		if err := check(api.GetParameterDescByIndex(raw, i, &pd, &ei), "get parameter description", &ei); err != nil {
			return nil, err
		}
		p := &ParameterDescription{
			Name:         rfcapi.String(pd.Name[:]),
			Type:         pd.Type,
			Direction:    pd.Direction,
			NucLength:    pd.NucLength,
			UcLength:     pd.UcLength,
			Decimals:     pd.Decimals,
			Optional:     pd.Optional != 0,
			DefaultValue: rfcapi.String(pd.DefaultValue[:]),
			Text:         rfcapi.String(pd.ParameterText[:]),
		}
		z, err := rfcapi.CharsZ(p.Name)
		if err != nil {
			return nil, err
		}
		p.nameZ = z
		if pd.TypeDescHandle != 0 {
			if p.TypeDesc, err = d.typ(pd.TypeDescHandle); err != nil {
				return nil, err
			}
		}
		fd.index[strings.ToUpper(p.Name)] = len(fd.params)
		fd.params = append(fd.params, p)
	}
	return fd, nil
}

func (d *describer) typ(raw rfcapi.Handle) (*TypeDescription, error) {
	if td, ok := d.types[raw]; ok {
		return td, nil
	}
	api := d.lib.api
	var ei rfcapi.ErrorInfo
	var name [rfcapi.ABAPNameLen]uint16
	if err := check(api.GetTypeName(raw, &name[0], &ei), "get type name", &ei); err != nil {
		return nil, err
	}
	td := &TypeDescription{
		Name:  rfcapi.String(name[:]),
		index: make(map[string]int),
		g:     d.lib.acquire(kindTypeDesc, raw, nil),
	}
	if err := check(api.GetTypeLength(raw, &td.NucLength, &td.UcLength, &ei), "get type length", &ei); err != nil {
		return nil, err
	}
	d.types[raw] = td

	var count uint32
	if err := check(api.GetFieldCount(raw, &count, &ei), "get field count", &ei); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var fdesc rfcapi.FieldDesc
		if err := check(api.GetFieldDescByIndex(raw, i, &fdesc, &ei), "get field description", &ei); err != nil {
			return nil, err
		}
		f := &FieldDescription{
			Name:      rfcapi.String(fdesc.Name[:]),
			Type:      fdesc.Type,
			NucLength: fdesc.NucLength,
			NucOffset: fdesc.NucOffset,
			UcLength:  fdesc.UcLength,
			UcOffset:  fdesc.UcOffset,
			Decimals:  fdesc.Decimals,
		}
		z, err := rfcapi.CharsZ(f.Name)
		if err != nil {
			return nil, err
		}
		f.nameZ = z
		if fdesc.TypeDescHandle != 0 {
			if f.TypeDesc, err = d.typ(fdesc.TypeDescHandle); err != nil {
				return nil, err
			}
		}
		td.index[strings.ToUpper(f.Name)] = len(td.fields)
		td.fields = append(td.fields, f)
	}
	td.ordered = slices.Clone(td.fields)
	slices.SortStableFunc(td.ordered, func(a, b *FieldDescription) int {
		return int(a.UcOffset) - int(b.UcOffset)
	})
	return td, nil
}
