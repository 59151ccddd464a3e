package command

import (
	"fmt"
	"net"
	"time"

	"github.com/groundline/gse/internal/dump"
	"github.com/groundline/gse/internal/monitoring"
)

// Record describes one send attempt for the audit trail.
type Record struct {
	Time        time.Time
	Name        string
	Destination string
	Bytes       int
	Validated   bool
	Sent        bool
	Messages    []string
}

// Recorder receives one Record per Send call. Implementations must not
// block; recording failures are the recorder's problem, not the sender's.
type Recorder interface {
	RecordCommand(rec Record)
}

// Sender validates commands against a dictionary, encodes them and transmits
// each one as a single UDP datagram to a fixed destination. Delivery is
// at-most-once and fire-and-forget: no retry, no acknowledgement.
type Sender struct {
	destination string
	dict        *Dictionary
	verbose     bool
	conn        *net.UDPConn
	stats       *monitoring.LinkStats
	audit       Recorder
}

// SenderConfig configures a command Sender.
type SenderConfig struct {
	Destination string // "host:port"
	Dict        *Dictionary
	Verbose     bool // hex-dump each encoded command before sending
	Stats       *monitoring.LinkStats
	Audit       Recorder
}

// NewSender opens the outbound UDP socket for the configured destination.
func NewSender(config SenderConfig) (*Sender, error) {
	if config.Dict == nil {
		return nil, fmt.Errorf("command: sender needs a dictionary")
	}
	addr, err := net.ResolveUDPAddr("udp", config.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve command destination: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open command socket: %v", err)
	}
	return &Sender{
		destination: config.Destination,
		dict:        config.Dict,
		verbose:     config.Verbose,
		conn:        conn,
		stats:       config.Stats,
		audit:       config.Audit,
	}, nil
}

// Destination returns the configured "host:port" target.
func (s *Sender) Destination() string { return s.destination }

// Send creates, validates and transmits the named command. It returns true
// only when the command was valid and one datagram went out; validation and
// transport failures are logged and reported as false, never as a panic or
// error the caller must unwrap.
func (s *Sender) Send(name string, args ...any) bool {
	rec := Record{Time: time.Now(), Name: name, Destination: s.destination}
	defer func() {
		if s.stats != nil {
			s.stats.AddCommand(rec.Sent)
		}
		if s.audit != nil {
			s.audit.RecordCommand(rec)
		}
	}()

	cmdobj, err := s.dict.Create(name, args...)
	if err != nil {
		monitoring.Logf("Error: %v", err)
		rec.Messages = append(rec.Messages, err.Error())
		return false
	}

	var messages []string
	if !cmdobj.Validate(&messages) {
		for _, msg := range messages {
			monitoring.Logf("Error: %s", msg)
		}
		rec.Messages = messages
		return false
	}
	rec.Validated = true

	encoded, err := cmdobj.Encode()
	if err != nil {
		monitoring.Logf("Error encoding %s: %v", name, err)
		rec.Messages = append(rec.Messages, err.Error())
		return false
	}
	rec.Bytes = len(encoded)

	if s.verbose {
		monitoring.Logf("%s", dump.Bytes(cmdobj.Name()+":", encoded))
	}

	monitoring.Logf("Sending to %s: %s", s.destination, cmdobj.Name())
	if _, err := s.conn.Write(encoded); err != nil {
		monitoring.Logf("Error sending %s to %s: %v", cmdobj.Name(), s.destination, err)
		rec.Messages = append(rec.Messages, err.Error())
		return false
	}

	rec.Sent = true
	return true
}

// Close releases the outbound socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
