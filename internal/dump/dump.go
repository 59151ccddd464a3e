// Package dump renders byte-level diagnostics for verbose command tracing.
package dump

import (
	"fmt"
	"strings"
)

// perLine is the number of bytes rendered per output line.
const perLine = 16

// Bytes formats data as hex plus printable ASCII, one line per 16 bytes,
// each line prefixed with label and the byte offset.
func Bytes(label string, data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += perLine {
		end := off + perLine
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		fmt.Fprintf(&b, "%s %04x  ", label, off)
		for i := 0; i < perLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteByte(' ')
		for _, c := range line {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
