// Package gse composes the command and telemetry sides of an instrument
// link: one command sender, one packet buffer registry and one telemetry
// listener, plus a polling wait helper for scripting against buffered
// telemetry.
package gse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/groundline/gse/internal/command"
	"github.com/groundline/gse/internal/monitoring"
	"github.com/groundline/gse/internal/tlm"
)

// Default ports for the command uplink and telemetry downlink.
const (
	DefaultCmdPort = 3075
	DefaultTlmPort = 3076
)

// ErrNoDefaultPacketType is returned when no packet definition was supplied
// and the telemetry dictionary defines none to fall back on.
var ErrNoDefaultPacketType = errors.New("gse: no packets defined in telemetry dictionary")

// Config describes an instrument link. CmdDict is required. If Defn is nil,
// the alphabetically first packet type in TlmDict is used.
type Config struct {
	CmdAddr string // command destination, defaults to 127.0.0.1:DefaultCmdPort
	TlmAddr string // telemetry bind address, defaults to 127.0.0.1:DefaultTlmPort

	Defn    *tlm.PacketDefinition
	TlmDict *tlm.Dictionary
	CmdDict *command.Dictionary

	Capacity int  // per-type packet history, 0 selects tlm.DefaultCapacity
	Verbose  bool // hex-dump outgoing commands
	RcvBuf   int  // telemetry socket receive buffer, 0 for the OS default

	Audit command.Recorder // optional command audit trail
}

// Instrument owns the command sender, the packet buffer registry and the
// telemetry listener for one instrument. The listener starts during New and
// runs until Close.
type Instrument struct {
	sender   *command.Sender
	buffers  *tlm.Buffers
	listener *tlm.Listener
	stats    *monitoring.LinkStats

	cancel   context.CancelFunc
	done     chan error
	closer   sync.Once
	closeErr error
}

// New builds the instrument link and immediately starts its telemetry
// listener. It fails if the listener cannot bind.
func New(config Config) (*Instrument, error) {
	defn := config.Defn
	if defn == nil {
		if config.TlmDict == nil || config.TlmDict.Len() == 0 {
			return nil, ErrNoDefaultPacketType
		}
		var err error
		defn, err = config.TlmDict.Get(config.TlmDict.Names()[0])
		if err != nil {
			return nil, err
		}
	}

	cmdAddr := config.CmdAddr
	if cmdAddr == "" {
		cmdAddr = fmt.Sprintf("127.0.0.1:%d", DefaultCmdPort)
	}
	tlmAddr := config.TlmAddr
	if tlmAddr == "" {
		tlmAddr = fmt.Sprintf("127.0.0.1:%d", DefaultTlmPort)
	}

	stats := monitoring.NewLinkStats()

	buffers := tlm.NewBuffers()
	buffers.Create(defn.Name, config.Capacity)

	sender, err := command.NewSender(command.SenderConfig{
		Destination: cmdAddr,
		Dict:        config.CmdDict,
		Verbose:     config.Verbose,
		Stats:       stats,
		Audit:       config.Audit,
	})
	if err != nil {
		return nil, err
	}

	listener, err := tlm.NewListener(tlm.ListenerConfig{
		Address: tlmAddr,
		RcvBuf:  config.RcvBuf,
		Defn:    defn,
		Buffers: buffers,
		Stats:   stats,
	})
	if err != nil {
		sender.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &Instrument{
		sender:   sender,
		buffers:  buffers,
		listener: listener,
		stats:    stats,
		cancel:   cancel,
		done:     make(chan error, 1),
	}

	go func() { inst.done <- listener.Start(ctx) }()

	// Wait for the socket to bind so a bad telemetry address fails here
	// rather than silently in the background.
	bindDeadline := time.Now().Add(5 * time.Second)
	for listener.LocalAddr() == nil {
		select {
		case err := <-inst.done:
			cancel()
			sender.Close()
			return nil, err
		default:
		}
		if time.Now().After(bindDeadline) {
			inst.Close()
			return nil, fmt.Errorf("gse: telemetry listener never bound to %s", tlmAddr)
		}
		time.Sleep(time.Millisecond)
	}

	return inst, nil
}

// Cmd returns the command sender.
func (i *Instrument) Cmd() *command.Sender { return i.sender }

// Send is shorthand for Cmd().Send.
func (i *Instrument) Send(name string, args ...any) bool {
	return i.sender.Send(name, args...)
}

// Tlm returns a read view over the buffered packets of the named type.
func (i *Instrument) Tlm(name string) (*tlm.View, error) {
	return i.buffers.View(name)
}

// Buffers returns the packet buffer registry.
func (i *Instrument) Buffers() *tlm.Buffers { return i.buffers }

// Stats returns the shared link counters.
func (i *Instrument) Stats() *monitoring.LinkStats { return i.stats }

// TlmAddr returns the telemetry listener's bound address.
func (i *Instrument) TlmAddr() *net.UDPAddr { return i.listener.LocalAddr() }

// Close stops the telemetry listener and releases the command socket. It is
// safe to call more than once.
func (i *Instrument) Close() error {
	i.closer.Do(func() {
		i.cancel()
		<-i.done
		i.closeErr = i.sender.Close()
	})
	return i.closeErr
}
