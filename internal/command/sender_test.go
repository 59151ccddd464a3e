package command

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundline/gse/internal/monitoring"
)

// recorderSpy captures audit records handed to the sender.
type recorderSpy struct {
	records []Record
}

func (r *recorderSpy) RecordCommand(rec Record) {
	r.records = append(r.records, rec)
}

// commandSink is a local UDP socket standing in for the instrument.
type commandSink struct {
	conn *net.UDPConn
}

func newCommandSink(t *testing.T) *commandSink {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &commandSink{conn: conn}
}

func (s *commandSink) addr() string {
	return s.conn.LocalAddr().String()
}

// next returns the next datagram, or nil if none arrives in time.
func (s *commandSink) next(t *testing.T, wait time.Duration) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	_ = s.conn.SetReadDeadline(time.Now().Add(wait))
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func TestSendValidCommand(t *testing.T) {
	sink := newCommandSink(t)
	stats := monitoring.NewLinkStats()
	spy := &recorderSpy{}

	sender, err := NewSender(SenderConfig{
		Destination: sink.addr(),
		Dict:        testDictionary(),
		Stats:       stats,
		Audit:       spy,
	})
	require.NoError(t, err)
	defer sender.Close()

	assert.True(t, sender.Send("SET_RATE", 60))

	got := sink.next(t, time.Second)
	require.NotNil(t, got, "no datagram received")
	assert.Equal(t, []byte{0x00, 0x11, 0x00, 0x3c}, got)

	snap := stats.GetAndReset()
	assert.Equal(t, int64(1), snap.CommandsSent)
	assert.Equal(t, int64(0), snap.CommandsFail)

	require.Len(t, spy.records, 1)
	rec := spy.records[0]
	assert.Equal(t, "SET_RATE", rec.Name)
	assert.True(t, rec.Validated)
	assert.True(t, rec.Sent)
	assert.Equal(t, 4, rec.Bytes)
}

func TestSendInvalidCommandSendsNothing(t *testing.T) {
	sink := newCommandSink(t)
	stats := monitoring.NewLinkStats()
	spy := &recorderSpy{}

	sender, err := NewSender(SenderConfig{
		Destination: sink.addr(),
		Dict:        testDictionary(),
		Stats:       stats,
		Audit:       spy,
	})
	require.NoError(t, err)
	defer sender.Close()

	assert.False(t, sender.Send("SET_RATE", 500))

	if got := sink.next(t, 100*time.Millisecond); got != nil {
		t.Fatalf("invalid command reached the wire: % x", got)
	}

	snap := stats.GetAndReset()
	assert.Equal(t, int64(0), snap.CommandsSent)
	assert.Equal(t, int64(1), snap.CommandsFail)

	require.Len(t, spy.records, 1)
	rec := spy.records[0]
	assert.False(t, rec.Validated)
	assert.False(t, rec.Sent)
	assert.NotEmpty(t, rec.Messages)
}

func TestSendUnknownCommand(t *testing.T) {
	sink := newCommandSink(t)
	sender, err := NewSender(SenderConfig{
		Destination: sink.addr(),
		Dict:        testDictionary(),
	})
	require.NoError(t, err)
	defer sender.Close()

	assert.False(t, sender.Send("SELF_DESTRUCT"))
	if got := sink.next(t, 100*time.Millisecond); got != nil {
		t.Fatalf("unknown command reached the wire: % x", got)
	}
}

func TestSendTransportFailure(t *testing.T) {
	sink := newCommandSink(t)
	spy := &recorderSpy{}

	sender, err := NewSender(SenderConfig{
		Destination: sink.addr(),
		Dict:        testDictionary(),
		Audit:       spy,
	})
	require.NoError(t, err)

	// Closing the outbound socket forces a transport-level send error.
	require.NoError(t, sender.Close())

	assert.False(t, sender.Send("NOOP"))

	require.Len(t, spy.records, 1)
	rec := spy.records[0]
	assert.True(t, rec.Validated)
	assert.False(t, rec.Sent)
	assert.NotEmpty(t, rec.Messages)
}

func TestSendVerboseDump(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...any) {
		logged = append(logged, format)
	})

	sink := newCommandSink(t)
	sender, err := NewSender(SenderConfig{
		Destination: sink.addr(),
		Dict:        testDictionary(),
		Verbose:     true,
	})
	require.NoError(t, err)
	defer sender.Close()

	assert.True(t, sender.Send("NOOP"))
	// One dump line plus the send line at minimum.
	assert.GreaterOrEqual(t, len(logged), 2)
}

func TestNewSenderErrors(t *testing.T) {
	_, err := NewSender(SenderConfig{Destination: "127.0.0.1:1"})
	assert.Error(t, err, "missing dictionary")

	_, err = NewSender(SenderConfig{Destination: "bogus:port", Dict: testDictionary()})
	assert.Error(t, err)
}
