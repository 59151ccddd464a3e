// gse-replay feeds captured telemetry back into a running instrument link:
// it extracts UDP payloads for one port from a pcap file and resends them as
// datagrams to the telemetry listener, preserving the captured pacing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	pcapFile = flag.String("pcap", "", "pcap file to replay (required)")
	udpPort  = flag.Int("port", 3076, "replay only UDP packets captured for this destination port")
	destAddr = flag.String("dest", "127.0.0.1:3076", "address to replay datagrams to")
	rate     = flag.Float64("rate", 1.0, "pacing factor: 2.0 replays twice as fast, 0 disables pacing")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		flag.Usage()
		log.Fatal("-pcap is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := replay(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Replay failed: %v", err)
	}
}

func replay(ctx context.Context) error {
	f, err := os.Open(*pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open pcap file: %w", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read pcap header: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("failed to open replay socket: %w", err)
	}
	defer conn.Close()

	log.Printf("Replaying UDP port %d datagrams from %s to %s", *udpPort, *pcapFile, *destAddr)

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	sent, skipped := 0, 0
	var lastCapture time.Time
	start := time.Now()

	for packet := range source.Packets() {
		select {
		case <-ctx.Done():
			log.Printf("Replay interrupted after %d datagrams", sent)
			return ctx.Err()
		default:
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			skipped++
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != *udpPort || len(udp.Payload) == 0 {
			skipped++
			continue
		}

		// Reproduce the captured inter-packet gap, scaled by -rate.
		captured := packet.Metadata().Timestamp
		if *rate > 0 && !lastCapture.IsZero() && captured.After(lastCapture) {
			gap := time.Duration(float64(captured.Sub(lastCapture)) / *rate)
			time.Sleep(gap)
		}
		lastCapture = captured

		if _, err := conn.Write(udp.Payload); err != nil {
			log.Printf("Error replaying datagram: %v", err)
			continue
		}
		sent++
	}

	log.Printf("Replay complete: %d datagrams sent, %d packets skipped, %v elapsed",
		sent, skipped, time.Since(start).Round(time.Millisecond))
	return nil
}
