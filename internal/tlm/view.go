package tlm

import (
	"errors"
	"fmt"
)

// ErrNoData is returned by View.Field when no packet of that type has been
// buffered yet.
var ErrNoData = errors.New("tlm: no packets buffered")

// View is a read-only accessor over one packet type's buffer. Index 0 is the
// most recently inserted packet.
type View struct {
	buf *packetDeque
}

// Len reports the number of buffered packets.
func (v *View) Len() int { return v.buf.Len() }

// At returns the packet at position i (0 = most recent).
func (v *View) At(i int) (*Packet, error) {
	pkt, err := v.buf.At(i)
	if err != nil {
		return nil, fmt.Errorf("tlm: index %d out of range (%d buffered): %w", i, v.buf.Len(), err)
	}
	return pkt, nil
}

// Latest returns the most recent packet, or ErrNoData if the buffer is empty.
func (v *View) Latest() (*Packet, error) {
	pkt, err := v.buf.At(0)
	if err != nil {
		return nil, ErrNoData
	}
	return pkt, nil
}

// Field returns the named field of the most recent packet.
func (v *View) Field(name string) (any, error) {
	pkt, err := v.Latest()
	if err != nil {
		return nil, err
	}
	return pkt.Field(name)
}

// Uint returns the named unsigned field of the most recent packet.
func (v *View) Uint(name string) (uint64, error) {
	pkt, err := v.Latest()
	if err != nil {
		return 0, err
	}
	return pkt.Uint(name)
}

// Int returns the named signed field of the most recent packet.
func (v *View) Int(name string) (int64, error) {
	pkt, err := v.Latest()
	if err != nil {
		return 0, err
	}
	return pkt.Int(name)
}

// Float returns the named float field of the most recent packet.
func (v *View) Float(name string) (float64, error) {
	pkt, err := v.Latest()
	if err != nil {
		return 0, err
	}
	return pkt.Float(name)
}
