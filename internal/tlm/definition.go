// Package tlm decodes telemetry datagrams into packets and buffers them by
// packet type. A PacketDefinition names a packet type and describes its wire
// layout; a Dictionary maps type names to definitions; Buffers keeps a
// bounded history of decoded packets per type, most recent first; a Listener
// feeds one buffer from a UDP port.
package tlm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// FieldKind identifies the wire encoding of one telemetry field. All
// multi-byte fields are big-endian on the wire.
type FieldKind int

const (
	KindU8 FieldKind = iota
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindBytes
)

var kindNames = map[string]FieldKind{
	"u8":    KindU8,
	"u16":   KindU16,
	"u32":   KindU32,
	"u64":   KindU64,
	"i8":    KindI8,
	"i16":   KindI16,
	"i32":   KindI32,
	"i64":   KindI64,
	"f32":   KindF32,
	"f64":   KindF64,
	"bytes": KindBytes,
}

// ParseFieldKind maps a dictionary type string ("u16", "f64", ...) to its
// FieldKind.
func ParseFieldKind(s string) (FieldKind, error) {
	k, ok := kindNames[s]
	if !ok {
		return 0, fmt.Errorf("tlm: unknown field type %q", s)
	}
	return k, nil
}

func (k FieldKind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// size returns the wire size in bytes; KindBytes fields carry their own
// length.
func (k FieldKind) size() int {
	switch k {
	case KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	default:
		return 8
	}
}

// FieldDefinition describes one field of a packet type.
type FieldDefinition struct {
	Name   string
	Kind   FieldKind
	Offset int
	Length int // KindBytes only
}

func (f FieldDefinition) size() int {
	if f.Kind == KindBytes {
		return f.Length
	}
	return f.Kind.size()
}

// PacketDefinition names a packet type and describes how to decode its raw
// datagram bytes.
type PacketDefinition struct {
	Name   string
	Fields []FieldDefinition

	byName  map[string]*FieldDefinition
	minSize int
}

// NewPacketDefinition builds a definition from a name and field list.
// Field names must be unique within the packet.
func NewPacketDefinition(name string, fields []FieldDefinition) (*PacketDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("tlm: packet definition needs a name")
	}
	d := &PacketDefinition{
		Name:   name,
		Fields: fields,
		byName: make(map[string]*FieldDefinition, len(fields)),
	}
	for i := range fields {
		f := &d.Fields[i]
		if f.Offset < 0 {
			return nil, fmt.Errorf("tlm: %s.%s: negative offset", name, f.Name)
		}
		if f.Kind == KindBytes && f.Length <= 0 {
			return nil, fmt.Errorf("tlm: %s.%s: bytes field needs a length", name, f.Name)
		}
		if _, dup := d.byName[f.Name]; dup {
			return nil, fmt.Errorf("tlm: %s: duplicate field %q", name, f.Name)
		}
		d.byName[f.Name] = f
		if end := f.Offset + f.size(); end > d.minSize {
			d.minSize = end
		}
	}
	return d, nil
}

// MinSize is the smallest datagram that contains every field.
func (d *PacketDefinition) MinSize() int { return d.minSize }

// Dictionary maps packet-type names to definitions.
type Dictionary struct {
	defs map[string]*PacketDefinition
}

func NewDictionary(defs ...*PacketDefinition) *Dictionary {
	dict := &Dictionary{defs: make(map[string]*PacketDefinition, len(defs))}
	for _, d := range defs {
		dict.defs[d.Name] = d
	}
	return dict
}

// Add registers or replaces a definition.
func (t *Dictionary) Add(d *PacketDefinition) {
	t.defs[d.Name] = d
}

// Get returns the definition for name.
func (t *Dictionary) Get(name string) (*PacketDefinition, error) {
	d, ok := t.defs[name]
	if !ok {
		return nil, fmt.Errorf("tlm: no packet type %q in dictionary", name)
	}
	return d, nil
}

// Names returns the defined packet-type names in sorted order.
func (t *Dictionary) Names() []string {
	names := make([]string, 0, len(t.defs))
	for name := range t.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Dictionary) Len() int { return len(t.defs) }

// JSON dictionary file format:
//
//	{"packets": [
//	  {"name": "hs_status",
//	   "fields": [{"name": "counter", "type": "u32", "offset": 0}, ...]}
//	]}
type dictFile struct {
	Packets []struct {
		Name   string `json:"name"`
		Fields []struct {
			Name   string `json:"name"`
			Type   string `json:"type"`
			Offset int    `json:"offset"`
			Length int    `json:"length,omitempty"`
		} `json:"fields"`
	} `json:"packets"`
}

// LoadDictionary reads a JSON telemetry dictionary from path.
func LoadDictionary(path string) (*Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlm: read dictionary: %w", err)
	}
	var file dictFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("tlm: parse dictionary %s: %w", path, err)
	}

	dict := NewDictionary()
	for _, p := range file.Packets {
		fields := make([]FieldDefinition, 0, len(p.Fields))
		for _, f := range p.Fields {
			kind, err := ParseFieldKind(f.Type)
			if err != nil {
				return nil, fmt.Errorf("tlm: %s.%s: %w", p.Name, f.Name, err)
			}
			fields = append(fields, FieldDefinition{
				Name:   f.Name,
				Kind:   kind,
				Offset: f.Offset,
				Length: f.Length,
			})
		}
		defn, err := NewPacketDefinition(p.Name, fields)
		if err != nil {
			return nil, err
		}
		dict.Add(defn)
	}
	return dict, nil
}
