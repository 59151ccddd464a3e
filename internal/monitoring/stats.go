package monitoring

import (
	"sync"
	"time"
)

// LinkStats tracks command/telemetry link counters. It is safe for concurrent
// use: the telemetry listener and the command sender both feed it while a
// periodic logger drains it.
type LinkStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	decodeErrors int64
	cmdsSent     int64
	cmdsFailed   int64
	lastReset    time.Time
}

// Snapshot is one interval's worth of link counters.
type Snapshot struct {
	Packets      int64
	Bytes        int64
	DecodeErrors int64
	CommandsSent int64
	CommandsFail int64
	Interval     time.Duration
}

func NewLinkStats() *LinkStats {
	return &LinkStats{lastReset: time.Now()}
}

// AddPacket records one received telemetry datagram of the given size.
func (s *LinkStats) AddPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetCount++
	s.byteCount += int64(bytes)
}

// AddDecodeError records a datagram that failed to decode.
func (s *LinkStats) AddDecodeError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decodeErrors++
}

// AddCommand records one command send attempt and whether it was transmitted.
func (s *LinkStats) AddCommand(sent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sent {
		s.cmdsSent++
	} else {
		s.cmdsFailed++
	}
}

// GetAndReset returns the counters accumulated since the last reset and
// starts a new interval.
func (s *LinkStats) GetAndReset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Packets:      s.packetCount,
		Bytes:        s.byteCount,
		DecodeErrors: s.decodeErrors,
		CommandsSent: s.cmdsSent,
		CommandsFail: s.cmdsFailed,
		Interval:     now.Sub(s.lastReset),
	}

	s.packetCount = 0
	s.byteCount = 0
	s.decodeErrors = 0
	s.cmdsSent = 0
	s.cmdsFailed = 0
	s.lastReset = now

	return snap
}

// LogStats emits one line summarising the interval via the package logger.
func (s *LinkStats) LogStats() {
	snap := s.GetAndReset()
	secs := snap.Interval.Seconds()
	if secs <= 0 {
		secs = 1
	}
	Logf("link: %d pkts (%d bytes, %.1f pkt/s), %d decode errors, %d cmds sent, %d cmds failed",
		snap.Packets, snap.Bytes, float64(snap.Packets)/secs, snap.DecodeErrors,
		snap.CommandsSent, snap.CommandsFail)
}
