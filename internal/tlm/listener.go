package tlm

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/groundline/gse/internal/monitoring"
)

// maxDatagram is the largest UDP payload the listener will accept.
const maxDatagram = 65507

// Listener receives telemetry datagrams on a UDP port, decodes each one
// against a fixed packet definition and inserts the result into the target
// buffers. Ingestion is fire-and-forget: nothing is ever sent back to the
// source, and a datagram that fails to decode is logged and skipped without
// interrupting the receive loop.
type Listener struct {
	address string
	rcvBuf  int
	defn    *PacketDefinition
	buffers *Buffers
	stats   *monitoring.LinkStats
	buffer  []byte

	mu   sync.Mutex
	addr *net.UDPAddr
}

// ListenerConfig configures a telemetry Listener.
type ListenerConfig struct {
	Address string            // UDP bind address, e.g. ":3076" or "127.0.0.1:0"
	RcvBuf  int               // socket receive buffer size, 0 for the OS default
	Defn    *PacketDefinition // packet type decoded by this listener
	Buffers *Buffers          // registry receiving decoded packets
	Stats   *monitoring.LinkStats
}

// NewListener creates a telemetry listener. The packet definition and target
// buffers are required.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Defn == nil {
		return nil, fmt.Errorf("tlm: listener needs a packet definition")
	}
	if config.Buffers == nil {
		return nil, fmt.Errorf("tlm: listener needs a packet buffer registry")
	}
	return &Listener{
		address: config.Address,
		rcvBuf:  config.RcvBuf,
		defn:    config.Defn,
		buffers: config.Buffers,
		stats:   config.Stats,
		buffer:  make([]byte, maxDatagram),
	}, nil
}

// Start binds the UDP socket and runs the receive loop until ctx is
// cancelled. It returns the bind error immediately if the socket cannot be
// opened; after that, per-datagram errors are logged and skipped.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %v", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %v", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer to %d bytes: %v", l.rcvBuf, err)
		}
	}

	bound := conn.LocalAddr().(*net.UDPAddr)
	l.mu.Lock()
	l.addr = bound
	l.mu.Unlock()

	monitoring.Logf("Listening for %s telemetry on %s (UDP)", l.defn.Name, bound)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("Telemetry listener for %s shutting down", l.defn.Name)
			return ctx.Err()
		default:
			// Short read deadline so the loop observes ctx cancellation.
			if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
				monitoring.Logf("Error setting read deadline: %v", err)
				continue
			}

			n, _, err := conn.ReadFromUDP(l.buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				monitoring.Logf("Error reading telemetry datagram: %v", err)
				continue
			}

			l.handleDatagram(l.buffer[:n])
		}
	}
}

// handleDatagram decodes one datagram and deposits the packet. The decoder
// copies the bytes, so the receive buffer can be reused immediately.
func (l *Listener) handleDatagram(data []byte) {
	if l.stats != nil {
		l.stats.AddPacket(len(data))
	}

	pkt, err := l.defn.Decode(data)
	if err != nil {
		// A malformed datagram must not interrupt ingestion.
		if l.stats != nil {
			l.stats.AddDecodeError()
		}
		monitoring.Logf("Dropping undecodable %s datagram: %v", l.defn.Name, err)
		return
	}

	l.buffers.Insert(l.defn.Name, pkt)
}

// LocalAddr returns the bound UDP address once Start has opened the socket,
// or nil before that. Useful when binding to port 0.
func (l *Listener) LocalAddr() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Definition returns the packet definition this listener decodes against.
func (l *Listener) Definition() *PacketDefinition { return l.defn }
