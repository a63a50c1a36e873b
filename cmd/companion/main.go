package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd/companion
var Version = "dev"

const usage = `nuriemon-companion - phone-controlled desktop companion service

Usage:
  nuriemon-companion <command> [options]

Commands:
  start      Start the companion server
  qr         Encode text as a QR data URI
  discover   Browse the LAN for advertised companion hosts
  version    Print the version

Run 'nuriemon-companion <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "start":
		return runStart(args[2:], stdout, stderr)
	case "qr":
		return runQR(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "nuriemon-companion %s\n", Version)
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[1])
		fmt.Fprint(stderr, usage)
		return 1
	}
}
