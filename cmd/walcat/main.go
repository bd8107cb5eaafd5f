// Command walcat inspects a Transactional Slot Log (C7) file, printing each
// record in a locale-formatted, human-readable form. The on-disk format
// itself is untouched RFC3339 (§6); this tool only affects how timestamps
// are displayed, the same split the teacher draws between a Date's
// internal time.Time and its locale-aware asString (date.go's
// DateAsString, backed by lctime.Strftime).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"gitlab.com/variadico/lctime"

	"github.com/ImPhilipGlover/EntropicGarden/wal"
)

func main() {
	format := flag.String("format", "%Y-%m-%d %H:%M:%S %Z", "strftime format for record timestamps")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: walcat [-format FMT] <wal-file>")
		os.Exit(2)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	sink := &printSink{out: out, format: *format}
	if err := wal.Replay(flag.Arg(0), sink); err != nil {
		fmt.Fprintf(os.Stderr, "walcat: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(out, "%d record(s)\n", sink.count)
}

type printSink struct {
	out    *bufio.Writer
	format string
	count  int
}

func (s *printSink) ApplyReplay(rec wal.Record) error {
	s.count++
	v, err := rec.Value()
	if err != nil {
		fmt.Fprintf(s.out, "%d\t%s\t%s\tobj=%d\tslot=%s\t<decode error: %v>\n",
			rec.Sequence, lctime.Strftime(s.format, rec.Timestamp), rec.Origin, rec.ObjectID, rec.SlotName, err)
		return nil
	}
	fmt.Fprintf(s.out, "%d\t%s\t%s\tobj=%d\tslot=%s\tvalue=%v\n",
		rec.Sequence, lctime.Strftime(s.format, rec.Timestamp), rec.Origin, rec.ObjectID, rec.SlotName, v)
	return nil
}
