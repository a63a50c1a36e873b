package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nuriemon/companion/internal/mdns"
)

// runDiscover implements "nuriemon-companion discover": browse the LAN for
// advertised companion hosts. Diagnostic counterpart to the --mdns option.
func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", 3*time.Second, "How long to browse")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: nuriemon-companion discover [--timeout 3s]")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	hosts, err := mdns.Discover(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(hosts) == 0 {
		fmt.Fprintln(stdout, "No companion hosts found")
		return 0
	}
	for _, h := range hosts {
		fmt.Fprintf(stdout, "%s\t%s:%d\tversion %s\n", h.Name, h.Addr, h.Port, h.Version)
	}
	return 0
}
