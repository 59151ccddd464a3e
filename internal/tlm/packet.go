package tlm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrFieldNotFound is returned by Packet.Field for a name the packet's
// definition does not declare.
var ErrFieldNotFound = errors.New("tlm: field not found")

// Packet is one decoded telemetry record. It owns a private copy of the
// datagram bytes, so it stays valid after the listener reuses its receive
// buffer. Field values are read from the raw bytes on demand.
type Packet struct {
	defn *PacketDefinition
	data []byte
}

// Decode interprets data as one packet of this type. It fails when the
// datagram is shorter than the definition's field extent; trailing bytes
// beyond the known fields are kept but otherwise ignored.
func (d *PacketDefinition) Decode(data []byte) (*Packet, error) {
	if len(data) < d.minSize {
		return nil, fmt.Errorf("tlm: %s: datagram is %d bytes, need at least %d",
			d.Name, len(data), d.minSize)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Packet{defn: d, data: raw}, nil
}

// Definition returns the packet's type definition.
func (p *Packet) Definition() *PacketDefinition { return p.defn }

// Type returns the packet-type name.
func (p *Packet) Type() string { return p.defn.Name }

// Raw returns the packet's underlying bytes. The slice must not be modified.
func (p *Packet) Raw() []byte { return p.data }

// Field returns the named field's value. Integer fields normalize to uint64
// or int64, floats to float64, bytes fields to a []byte view of the raw data.
func (p *Packet) Field(name string) (any, error) {
	f, ok := p.defn.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, p.defn.Name, name)
	}
	b := p.data[f.Offset:]
	switch f.Kind {
	case KindU8:
		return uint64(b[0]), nil
	case KindU16:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case KindU32:
		return uint64(binary.BigEndian.Uint32(b)), nil
	case KindU64:
		return binary.BigEndian.Uint64(b), nil
	case KindI8:
		return int64(int8(b[0])), nil
	case KindI16:
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case KindI32:
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case KindI64:
		return int64(binary.BigEndian.Uint64(b)), nil
	case KindF32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case KindF64:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	default:
		return b[:f.Length:f.Length], nil
	}
}

// Uint returns an unsigned integer field.
func (p *Packet) Uint(name string) (uint64, error) {
	v, err := p.Field(name)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint64)
	if !ok {
		return 0, fmt.Errorf("tlm: %s.%s is not an unsigned field", p.defn.Name, name)
	}
	return u, nil
}

// Int returns a signed integer field.
func (p *Packet) Int(name string) (int64, error) {
	v, err := p.Field(name)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("tlm: %s.%s is not a signed field", p.defn.Name, name)
	}
	return i, nil
}

// Float returns a floating-point field.
func (p *Packet) Float(name string) (float64, error) {
	v, err := p.Field(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("tlm: %s.%s is not a float field", p.defn.Name, name)
	}
	return f, nil
}
