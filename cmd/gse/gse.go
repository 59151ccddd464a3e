// gse is the operator shell for one instrument link: it starts the telemetry
// listener, opens the command uplink and accepts interactive commands on
// stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/groundline/gse/internal/auditdb"
	"github.com/groundline/gse/internal/command"
	"github.com/groundline/gse/internal/gse"
	"github.com/groundline/gse/internal/tlm"
)

var (
	cmdAddr       = flag.String("cmd-addr", fmt.Sprintf("127.0.0.1:%d", gse.DefaultCmdPort), "command destination address")
	tlmAddr       = flag.String("tlm-addr", fmt.Sprintf("127.0.0.1:%d", gse.DefaultTlmPort), "telemetry bind address")
	cmdDictPath   = flag.String("cmd-dict", "", "path to the JSON command dictionary (required)")
	tlmDictPath   = flag.String("tlm-dict", "", "path to the JSON telemetry dictionary (required)")
	packetType    = flag.String("packet", "", "telemetry packet type to ingest (default: first in dictionary)")
	capacity      = flag.Int("capacity", 0, "packets of history to retain per type (default 60)")
	verbose       = flag.Bool("verbose", false, "hex-dump encoded commands before sending")
	rcvBuf        = flag.Int("rcvbuf", 0, "telemetry socket receive buffer size in bytes")
	dbFile        = flag.String("db", "", "path to the SQLite command audit database (optional)")
	statsInterval = flag.Int("stats-interval", 60, "link statistics logging interval in seconds")
)

func main() {
	flag.Parse()

	if *cmdDictPath == "" || *tlmDictPath == "" {
		flag.Usage()
		log.Fatal("both -cmd-dict and -tlm-dict are required")
	}

	cmdDict, err := command.LoadDictionary(*cmdDictPath)
	if err != nil {
		log.Fatalf("Failed to load command dictionary: %v", err)
	}
	tlmDict, err := tlm.LoadDictionary(*tlmDictPath)
	if err != nil {
		log.Fatalf("Failed to load telemetry dictionary: %v", err)
	}

	config := gse.Config{
		CmdAddr:  *cmdAddr,
		TlmAddr:  *tlmAddr,
		TlmDict:  tlmDict,
		CmdDict:  cmdDict,
		Capacity: *capacity,
		Verbose:  *verbose,
		RcvBuf:   *rcvBuf,
	}

	if *packetType != "" {
		defn, err := tlmDict.Get(*packetType)
		if err != nil {
			log.Fatalf("Failed to select packet type: %v", err)
		}
		config.Defn = defn
	}

	if *dbFile != "" {
		audit, err := auditdb.Open(*dbFile, "gse shell")
		if err != nil {
			log.Fatalf("Failed to open audit database: %v", err)
		}
		defer audit.Close()
		log.Printf("Audit session %s -> %s", audit.SessionID(), *dbFile)
		config.Audit = audit
	}

	inst, err := gse.New(config)
	if err != nil {
		log.Fatalf("Failed to start instrument link: %v", err)
	}
	defer inst.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go logStats(ctx, inst, time.Duration(*statsInterval)*time.Second)

	shell(ctx, inst)
}

func logStats(ctx context.Context, inst *gse.Instrument, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inst.Stats().LogStats()
		}
	}
}

// shell reads operator lines from stdin until EOF or interrupt.
func shell(ctx context.Context, inst *gse.Instrument) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("gse shell: send NAME [args...] | tlm NAME [index] | wait NAME [seconds] | stats | quit")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := dispatch(inst, strings.Fields(line)); quit {
				return
			}
		}
	}
}

func dispatch(inst *gse.Instrument, words []string) (quit bool) {
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "quit", "exit":
		return true
	case "stats":
		inst.Stats().LogStats()
	case "send":
		if len(words) < 2 {
			fmt.Println("usage: send NAME [args...]")
			break
		}
		args := make([]any, 0, len(words)-2)
		for _, w := range words[2:] {
			args = append(args, parseArg(w))
		}
		fmt.Println("sent:", inst.Send(words[1], args...))
	case "tlm":
		if len(words) < 2 {
			fmt.Println("usage: tlm NAME [index]")
			break
		}
		showTlm(inst, words[1], words[2:])
	case "wait":
		if len(words) < 2 {
			fmt.Println("usage: wait NAME [seconds]")
			break
		}
		waitTlm(inst, words[1], words[2:])
	default:
		fmt.Printf("unknown command %q\n", words[0])
	}
	return false
}

func showTlm(inst *gse.Instrument, name string, rest []string) {
	view, err := inst.Tlm(name)
	if err != nil {
		fmt.Println(err)
		return
	}
	index := 0
	if len(rest) > 0 {
		if i, err := strconv.Atoi(rest[0]); err == nil {
			index = i
		}
	}
	pkt, err := view.At(index)
	if err != nil {
		fmt.Printf("%s: %d packets buffered, %v\n", name, view.Len(), err)
		return
	}
	fmt.Printf("%s[%d] (%d buffered):\n", name, index, view.Len())
	for _, field := range pkt.Definition().Fields {
		value, err := pkt.Field(field.Name)
		if err != nil {
			fmt.Printf("  %-20s <%v>\n", field.Name, err)
			continue
		}
		fmt.Printf("  %-20s %v\n", field.Name, value)
	}
}

func waitTlm(inst *gse.Instrument, name string, rest []string) {
	view, err := inst.Tlm(name)
	if err != nil {
		fmt.Println(err)
		return
	}
	iterations := gse.Forever
	if len(rest) > 0 {
		if secs, err := strconv.Atoi(rest[0]); err == nil {
			iterations = secs
		}
	}
	before := view.Len()
	ok := gse.Wait(func() bool { return view.Len() > before }, iterations)
	fmt.Printf("wait %s: %v (%d buffered)\n", name, ok, view.Len())
}

// parseArg interprets an operator token as an int, then a float, then an
// enum/string literal.
func parseArg(word string) any {
	if i, err := strconv.Atoi(word); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return f
	}
	return word
}
