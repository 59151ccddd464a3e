// Package command validates and encodes instrument commands against a
// dictionary and transmits them as UDP datagrams. The dictionary is always an
// explicit dependency: there is no process-wide default.
package command

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// ArgKind identifies the wire encoding of one command argument. Multi-byte
// arguments are big-endian on the wire.
type ArgKind int

const (
	ArgU8 ArgKind = iota
	ArgU16
	ArgU32
	ArgU64
	ArgI8
	ArgI16
	ArgI32
	ArgI64
	ArgF32
	ArgF64
)

var argKindNames = map[string]ArgKind{
	"u8":  ArgU8,
	"u16": ArgU16,
	"u32": ArgU32,
	"u64": ArgU64,
	"i8":  ArgI8,
	"i16": ArgI16,
	"i32": ArgI32,
	"i64": ArgI64,
	"f32": ArgF32,
	"f64": ArgF64,
}

// ParseArgKind maps a dictionary type string to its ArgKind.
func ParseArgKind(s string) (ArgKind, error) {
	k, ok := argKindNames[s]
	if !ok {
		return 0, fmt.Errorf("command: unknown argument type %q", s)
	}
	return k, nil
}

func (k ArgKind) String() string {
	for name, kind := range argKindNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("ArgKind(%d)", int(k))
}

func (k ArgKind) size() int {
	switch k {
	case ArgU8, ArgI8:
		return 1
	case ArgU16, ArgI16:
		return 2
	case ArgU32, ArgI32, ArgF32:
		return 4
	default:
		return 8
	}
}

func (k ArgKind) signed() bool {
	switch k {
	case ArgI8, ArgI16, ArgI32, ArgI64:
		return true
	}
	return false
}

func (k ArgKind) float() bool {
	return k == ArgF32 || k == ArgF64
}

// ArgDefinition describes one positional argument of a command. Min/Max are
// inclusive bounds applied during validation when set. Enum maps symbolic
// names to raw values; when present, string argument values are accepted and
// the raw value must be one of the enum's values.
type ArgDefinition struct {
	Name string
	Kind ArgKind
	Min  *float64
	Max  *float64
	Enum map[string]int64
}

// Definition describes one command: a name, a 16-bit opcode and its
// positional arguments.
type Definition struct {
	Name   string
	Opcode uint16
	Args   []ArgDefinition
}

// Dictionary maps command names to definitions.
type Dictionary struct {
	defs map[string]*Definition
}

func NewDictionary(defs ...*Definition) *Dictionary {
	dict := &Dictionary{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		dict.defs[d.Name] = d
	}
	return dict
}

// Add registers or replaces a definition.
func (d *Dictionary) Add(defn *Definition) {
	d.defs[defn.Name] = defn
}

// Names returns the defined command names in sorted order.
func (d *Dictionary) Names() []string {
	names := make([]string, 0, len(d.defs))
	for name := range d.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds a Command for name with the given positional argument
// values. It fails only for names the dictionary does not define; argument
// problems are reported by Command.Validate.
func (d *Dictionary) Create(name string, args ...any) (*Command, error) {
	defn, ok := d.defs[name]
	if !ok {
		return nil, fmt.Errorf("command: no command %q in dictionary", name)
	}
	return &Command{defn: defn, args: args}, nil
}

// JSON dictionary file format:
//
//	{"commands": [
//	  {"name": "SET_RATE", "opcode": 17,
//	   "args": [{"name": "rate", "type": "u16", "min": 1, "max": 100}]}
//	]}
type cmdDictFile struct {
	Commands []struct {
		Name   string `json:"name"`
		Opcode uint16 `json:"opcode"`
		Args   []struct {
			Name string           `json:"name"`
			Type string           `json:"type"`
			Min  *float64         `json:"min,omitempty"`
			Max  *float64         `json:"max,omitempty"`
			Enum map[string]int64 `json:"enum,omitempty"`
		} `json:"args,omitempty"`
	} `json:"commands"`
}

// LoadDictionary reads a JSON command dictionary from path.
func LoadDictionary(path string) (*Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("command: read dictionary: %w", err)
	}
	var file cmdDictFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("command: parse dictionary %s: %w", path, err)
	}

	dict := NewDictionary()
	for _, c := range file.Commands {
		defn := &Definition{Name: c.Name, Opcode: c.Opcode}
		for _, a := range c.Args {
			kind, err := ParseArgKind(a.Type)
			if err != nil {
				return nil, fmt.Errorf("command: %s.%s: %w", c.Name, a.Name, err)
			}
			defn.Args = append(defn.Args, ArgDefinition{
				Name: a.Name,
				Kind: kind,
				Min:  a.Min,
				Max:  a.Max,
				Enum: a.Enum,
			})
		}
		dict.Add(defn)
	}
	return dict, nil
}

// Command is one command instance: a definition plus argument values.
type Command struct {
	defn *Definition
	args []any
}

// Name returns the command name.
func (c *Command) Name() string { return c.defn.Name }

// Validate checks argument arity, types, ranges and enum membership. Each
// problem appends a human-readable message; Validate reports whether the
// command is valid.
func (c *Command) Validate(messages *[]string) bool {
	ok := true
	fail := func(format string, v ...any) {
		ok = false
		if messages != nil {
			*messages = append(*messages, fmt.Sprintf(format, v...))
		}
	}

	if len(c.args) != len(c.defn.Args) {
		fail("%s: takes %d arguments, got %d", c.defn.Name, len(c.defn.Args), len(c.args))
		return false
	}

	for i, ad := range c.defn.Args {
		val, err := ad.resolve(c.args[i])
		if err != nil {
			fail("%s: argument %d (%s): %v", c.defn.Name, i+1, ad.Name, err)
			continue
		}
		if ad.Min != nil && val < *ad.Min {
			fail("%s: argument %d (%s): %v below minimum %v", c.defn.Name, i+1, ad.Name, val, *ad.Min)
		}
		if ad.Max != nil && val > *ad.Max {
			fail("%s: argument %d (%s): %v above maximum %v", c.defn.Name, i+1, ad.Name, val, *ad.Max)
		}
		if !ad.Kind.float() {
			if _, frac := math.Modf(val); frac != 0 {
				fail("%s: argument %d (%s): %v is not an integer", c.defn.Name, i+1, ad.Name, val)
			} else if err := ad.Kind.checkRange(val); err != nil {
				fail("%s: argument %d (%s): %v", c.defn.Name, i+1, ad.Name, err)
			}
		}
	}
	return ok
}

// checkRange rejects integer values that do not fit the wire type.
func (k ArgKind) checkRange(v float64) error {
	bits := float64(k.size() * 8)
	var lo, hi float64
	if k.signed() {
		hi = math.Pow(2, bits-1) - 1
		lo = -math.Pow(2, bits-1)
	} else {
		hi = math.Pow(2, bits) - 1
		lo = 0
	}
	if v < lo || v > hi {
		return fmt.Errorf("%v does not fit in %s", v, k)
	}
	return nil
}

// resolve coerces one supplied argument value to a float64 for validation.
// Strings are looked up in the argument's enum.
func (ad *ArgDefinition) resolve(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		if ad.Enum == nil {
			return 0, fmt.Errorf("%q is not numeric and %s has no enumeration", x, ad.Name)
		}
		raw, ok := ad.Enum[x]
		if !ok {
			return 0, fmt.Errorf("%q is not one of %v", x, enumNames(ad.Enum))
		}
		return float64(raw), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unsupported argument type %T", v)
	}
}

func enumNames(enum map[string]int64) []string {
	names := make([]string, 0, len(enum))
	for name := range enum {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode serializes the command: the 16-bit opcode followed by each argument
// in definition order, all big-endian. Encode assumes the command has passed
// Validate and fails otherwise.
func (c *Command) Encode() ([]byte, error) {
	if !c.Validate(nil) {
		return nil, fmt.Errorf("command: %s: encode of invalid command", c.defn.Name)
	}

	size := 2
	for _, ad := range c.defn.Args {
		size += ad.Kind.size()
	}
	out := make([]byte, 2, size)
	binary.BigEndian.PutUint16(out, c.defn.Opcode)

	for i, ad := range c.defn.Args {
		val, _ := ad.resolve(c.args[i])
		out = appendArg(out, ad.Kind, val)
	}
	return out, nil
}

func appendArg(out []byte, k ArgKind, v float64) []byte {
	switch k {
	case ArgU8:
		return append(out, byte(uint64(v)))
	case ArgU16:
		return binary.BigEndian.AppendUint16(out, uint16(v))
	case ArgU32:
		return binary.BigEndian.AppendUint32(out, uint32(v))
	case ArgU64:
		return binary.BigEndian.AppendUint64(out, uint64(v))
	case ArgI8:
		return append(out, byte(int8(v)))
	case ArgI16:
		return binary.BigEndian.AppendUint16(out, uint16(int16(v)))
	case ArgI32:
		return binary.BigEndian.AppendUint32(out, uint32(int32(v)))
	case ArgI64:
		return binary.BigEndian.AppendUint64(out, uint64(int64(v)))
	case ArgF32:
		return binary.BigEndian.AppendUint32(out, math.Float32bits(float32(v)))
	default:
		return binary.BigEndian.AppendUint64(out, math.Float64bits(v))
	}
}
