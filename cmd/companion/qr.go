package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/nuriemon/companion/internal/qr"
)

// runQR implements "nuriemon-companion qr": encode arbitrary text the same
// way pairing URLs are encoded. Useful for checking what a phone will scan.
func runQR(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: nuriemon-companion qr <text>")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	dataURI, err := qr.DataURI(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, dataURI)
	return 0
}
