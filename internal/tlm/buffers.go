package tlm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/groundline/gse/internal/deque"
)

// DefaultCapacity is the packet history kept per type when a buffer is
// created implicitly.
const DefaultCapacity = 60

// ErrUnknownType is returned by Buffers.Get for a type that has never been
// created.
var ErrUnknownType = errors.New("tlm: unknown packet type")

// packetDeque shortens the registry's value type.
type packetDeque = deque.Deque[*Packet]

// Buffers maps packet-type names to their bounded packet history. One writer
// (the telemetry listener) inserts; any number of readers view. The most
// recently inserted packet is always at index 0 of its buffer.
type Buffers struct {
	mu   sync.RWMutex
	bufs map[string]*packetDeque
}

func NewBuffers() *Buffers {
	return &Buffers{bufs: make(map[string]*packetDeque)}
}

// Create makes a buffer for name if one does not exist, retaining at most
// capacity packets (0 selects DefaultCapacity). It reports whether a new
// buffer was created; repeat calls are no-ops.
func (b *Buffers) Create(name string, capacity int) bool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bufs[name]; ok {
		return false
	}
	b.bufs[name] = deque.NewBounded[*Packet](capacity)
	return true
}

// Insert pushes pkt to the most-recent end of name's buffer, creating the
// buffer with DefaultCapacity if needed.
func (b *Buffers) Insert(name string, pkt *Packet) {
	b.mu.Lock()
	buf, ok := b.bufs[name]
	if !ok {
		buf = deque.NewBounded[*Packet](DefaultCapacity)
		b.bufs[name] = buf
	}
	b.mu.Unlock()
	buf.PushLeft(pkt)
}

// Get returns the buffer for name, or ErrUnknownType if it was never created.
// Reads never create buffers.
func (b *Buffers) Get(name string) (*packetDeque, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buf, ok := b.bufs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return buf, nil
}

// View returns a read view over name's buffer.
func (b *Buffers) View(name string) (*View, error) {
	buf, err := b.Get(name)
	if err != nil {
		return nil, err
	}
	return &View{buf: buf}, nil
}

// Names returns the created buffer names in sorted order.
func (b *Buffers) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.bufs))
	for name := range b.bufs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
