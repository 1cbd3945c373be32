// Package layout lowers the declarative slot-layout strings from a setup
// file (canonical scalar type names, or named-field record mappings) into a
// fixed-size, fixed-offset binary encoding shared by every slot in a ring
// buffer.
//
// A Layout never changes after a buffer is created: it is the contract that
// lets a writer in one goroutine and a reader in another agree on how many
// bytes a slot occupies and how to interpret them, without either side
// holding a pointer into the other's memory.
package layout

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind identifies one of the canonical numeric element types a setup file
// may name. Unknown names are rejected at setup time (ConfigError) rather
// than lowered to some best-guess default.
type Kind int

const (
	Invalid Kind = iota
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
)

// Size returns the number of bytes one element of this kind occupies.
func (k Kind) Size() int {
	switch k {
	case Float32, Int32, Uint32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	case Int16, Uint16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case Float32:
		return "float32"
	case Float64:
		return "float"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bool:
		return "bool"
	default:
		return "invalid"
	}
}

// kindsByName is the closed set of canonical type names a setup file may
// use. "float" and "int" follow numpy's default-width convention (64-bit)
// since the original mimoCoRB setup files are numpy.dtype strings.
var kindsByName = map[string]Kind{
	"float":   Float64,
	"float32": Float32,
	"float64": Float64,
	"double":  Float64,
	"int":     Int64,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"uint":    Uint64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"bool":    Bool,
}

// ParseKind resolves a canonical type name to a Kind. An unrecognized name
// is a setup-time ConfigError, per spec.
func ParseKind(name string) (Kind, error) {
	k, ok := kindsByName[name]
	if !ok {
		return Invalid, fmt.Errorf("layout: unknown data type %q", name)
	}
	return k, nil
}

// Field describes one named member of a heterogeneous record layout.
type Field struct {
	Name   string
	Kind   Kind
	Offset int
}

// Layout is the immutable, fixed-size shape of every slot in one ring
// buffer. It is either a homogeneous array of C scalars of one Kind, or a
// heterogeneous record of named Fields.
type Layout struct {
	scalar   Kind
	channels int
	fields   []Field
	size     int
}

// NewScalar builds a homogeneous layout: channels scalars of kind k.
func NewScalar(k Kind, channels int) (*Layout, error) {
	if k == Invalid {
		return nil, fmt.Errorf("layout: invalid scalar kind")
	}
	if channels <= 0 {
		return nil, fmt.Errorf("layout: channel_per_slot must be positive, got %d", channels)
	}
	return &Layout{scalar: k, channels: channels, size: k.Size() * channels}, nil
}

// NewRecord builds a heterogeneous layout from named fields, laid out in
// declaration order with each field aligned to its own size (the same rule
// numpy's structured dtype applies absent explicit padding).
func NewRecord(fields []Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("layout: record must have at least one field")
	}
	out := make([]Field, len(fields))
	offset := 0
	for i, f := range fields {
		if f.Kind == Invalid {
			return nil, fmt.Errorf("layout: field %q has invalid kind", f.Name)
		}
		sz := f.Kind.Size()
		if rem := offset % sz; rem != 0 {
			offset += sz - rem
		}
		out[i] = Field{Name: f.Name, Kind: f.Kind, Offset: offset}
		offset += sz
	}
	return &Layout{fields: out, size: offset}, nil
}

// Size is the number of bytes one slot of this layout occupies.
func (l *Layout) Size() int { return l.size }

// IsRecord reports whether this is a heterogeneous named-field layout.
func (l *Layout) IsRecord() bool { return l.fields != nil }

// Channels returns the scalar channel count (0 for record layouts).
func (l *Layout) Channels() int { return l.channels }

// ScalarKind returns the scalar element kind (Invalid for record layouts).
func (l *Layout) ScalarKind() Kind { return l.scalar }

// Fields returns the record's fields in declaration order (nil for scalar
// layouts).
func (l *Layout) Fields() []Field { return l.fields }

// EncodeScalars writes a homogeneous slot from vs into buf. len(vs) must
// equal Channels(); buf must be at least Size() bytes.
func (l *Layout) EncodeScalars(buf []byte, vs []float64) error {
	if l.IsRecord() {
		return fmt.Errorf("layout: EncodeScalars called on a record layout")
	}
	if len(vs) != l.channels {
		return fmt.Errorf("layout: expected %d channels, got %d", l.channels, len(vs))
	}
	step := l.scalar.Size()
	for i, v := range vs {
		putScalar(buf[i*step:], l.scalar, v)
	}
	return nil
}

// DecodeScalars reads a homogeneous slot out of buf as float64s, regardless
// of the underlying element width, so callers can treat every numeric
// layout uniformly.
func (l *Layout) DecodeScalars(buf []byte) ([]float64, error) {
	if l.IsRecord() {
		return nil, fmt.Errorf("layout: DecodeScalars called on a record layout")
	}
	step := l.scalar.Size()
	out := make([]float64, l.channels)
	for i := range out {
		out[i] = getScalar(buf[i*step:], l.scalar)
	}
	return out, nil
}

// EncodeRecord writes named field values into buf. Missing fields are left
// zeroed; unknown keys are an error so typos are caught at write time
// rather than silently dropped.
func (l *Layout) EncodeRecord(buf []byte, values map[string]float64) error {
	if !l.IsRecord() {
		return fmt.Errorf("layout: EncodeRecord called on a scalar layout")
	}
	clear(buf[:l.size])
	seen := make(map[string]bool, len(values))
	for _, f := range l.fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		seen[f.Name] = true
		putScalar(buf[f.Offset:], f.Kind, v)
	}
	if len(seen) != len(values) {
		for k := range values {
			if !seen[k] {
				return fmt.Errorf("layout: unknown field %q", k)
			}
		}
	}
	return nil
}

// DecodeRecord reads a heterogeneous slot out of buf into a name->value map.
func (l *Layout) DecodeRecord(buf []byte) (map[string]float64, error) {
	if !l.IsRecord() {
		return nil, fmt.Errorf("layout: DecodeRecord called on a scalar layout")
	}
	out := make(map[string]float64, len(l.fields))
	for _, f := range l.fields {
		out[f.Name] = getScalar(buf[f.Offset:], f.Kind)
	}
	return out, nil
}

func putScalar(buf []byte, k Kind, v float64) {
	switch k {
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	case Int8:
		buf[0] = byte(int8(v))
	case Uint8:
		buf[0] = byte(uint8(v))
	case Bool:
		if v != 0 {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case Int16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case Uint16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case Int64:
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	case Uint64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
}

func getScalar(buf []byte, k Kind) float64 {
	switch k {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case Int8:
		return float64(int8(buf[0]))
	case Uint8:
		return float64(buf[0])
	case Bool:
		if buf[0] != 0 {
			return 1
		}
		return 0
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(buf)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(buf))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(buf)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(buf))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(buf)))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(buf))
	default:
		return 0
	}
}
