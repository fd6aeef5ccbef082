// Command hermit-log views and summarizes hermit protocol capture files.
//
// Capture files are CBOR event streams written with the -log-file flag of
// hermit-echo and hermit-client.
//
// Usage:
//
//	hermit-log <command> [flags] <file>
//
// Commands:
//
//	view   Print events in human-readable form
//	stats  Summarize a capture file
//
// Examples:
//
//	# View all events
//	hermit-log view session.cbor
//
//	# View only handshake events of one session
//	hermit-log view -layer HANDSHAKE -session 8f14e45f session.cbor
//
//	# Summarize
//	hermit-log stats session.cbor
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hermit-proto/hermit-go/pkg/log"
)

const usage = `hermit-log - hermit protocol capture viewer

Usage:
  hermit-log <command> [flags] <file>

Commands:
  view   Print events in human-readable form
  stats  Summarize a capture file

Use "hermit-log <command> -help" for details on a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "view":
		runView(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func loadEvents(path string) []log.Event {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open capture: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	events, err := log.ReadEvents(f)
	if err != nil {
		// Partial captures happen when an endpoint dies mid-write; show
		// what decoded and note the cutoff.
		fmt.Fprintf(os.Stderr, "warning: capture truncated: %v\n", err)
	}
	return events
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Only show this layer (FRAMING, HANDSHAKE, RECORD, NEGOTIATION, SESSION)")
	sessionPrefix := fs.String("session", "", "Only show sessions whose ID starts with this prefix")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hermit-log view [flags] <file>")
		os.Exit(1)
	}

	for _, event := range loadEvents(fs.Arg(0)) {
		if *layer != "" && !strings.EqualFold(event.Layer.String(), *layer) {
			continue
		}
		if *sessionPrefix != "" && !strings.HasPrefix(event.SessionID, *sessionPrefix) {
			continue
		}
		fmt.Println(formatEvent(event))
	}
}

func formatEvent(event log.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s [%.8s]", event.Timestamp.Format("15:04:05.000000"), event.SessionID)
	if event.Role != log.RoleNone {
		fmt.Fprintf(&b, " %s", event.Role)
	}
	fmt.Fprintf(&b, " %-11s", event.Layer)

	switch {
	case event.Frame != nil:
		dir := "--"
		switch event.Direction {
		case log.DirectionIn:
			dir = "<-"
		case log.DirectionOut:
			dir = "->"
		}
		fmt.Fprintf(&b, " %s %s (%d bytes)", dir, event.Frame.Type, event.Frame.Size)
		if event.Frame.Truncated {
			b.WriteString(" [truncated in capture]")
		}
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(&b, " %s: %s -> %s", sc.Entity, sc.OldState, sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(&b, " (%s)", sc.Reason)
		}
	case event.Negotiation != nil:
		n := event.Negotiation
		fmt.Fprintf(&b, " limit request %d", n.RequestedLimit)
		if n.Accepted != nil {
			if *n.Accepted {
				fmt.Fprintf(&b, " accepted, now %d", n.AppliedLimit)
			} else {
				b.WriteString(" rejected")
			}
		}
	case event.Error != nil:
		fmt.Fprintf(&b, " ERROR %s: %s", event.Error.Context, event.Error.Message)
	default:
		fmt.Fprintf(&b, " %s", event.Category)
	}

	return b.String()
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hermit-log stats <file>")
		os.Exit(1)
	}

	events := loadEvents(fs.Arg(0))
	if len(events) == 0 {
		fmt.Println("no events")
		return
	}

	sessions := map[string]int{}
	frames := map[string]int{}
	var bytesIn, bytesOut, errCount int
	for _, event := range events {
		sessions[event.SessionID]++
		if event.Frame != nil {
			frames[event.Frame.Type]++
			switch event.Direction {
			case log.DirectionIn:
				bytesIn += event.Frame.Size
			case log.DirectionOut:
				bytesOut += event.Frame.Size
			}
		}
		if event.Error != nil {
			errCount++
		}
	}

	first, last := events[0].Timestamp, events[len(events)-1].Timestamp
	fmt.Printf("events:   %d\n", len(events))
	fmt.Printf("sessions: %d\n", len(sessions))
	fmt.Printf("span:     %s\n", last.Sub(first))
	fmt.Printf("bytes:    %d in, %d out\n", bytesIn, bytesOut)
	fmt.Printf("errors:   %d\n", errCount)

	types := make([]string, 0, len(frames))
	for t := range frames {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Println("frames:")
	for _, t := range types {
		fmt.Printf("  %-26s %d\n", t, frames[t])
	}
}
