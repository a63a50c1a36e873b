package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuriemon/companion/internal/config"
	"github.com/nuriemon/companion/internal/events"
	"github.com/nuriemon/companion/internal/mdns"
	"github.com/nuriemon/companion/internal/qr"
	"github.com/nuriemon/companion/internal/server"
	"github.com/nuriemon/companion/internal/session"
	"github.com/nuriemon/companion/internal/storage"
	"github.com/nuriemon/companion/internal/watcher"
)

// runStart implements "nuriemon-companion start": it ensures the workspace
// exists, starts the front door on the first free port in the range, and
// keeps running until interrupted. With --image it also creates a pairing
// session and prints the URL and QR payload the desktop would display.
func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to config file (default: ~/.nuriemon/config.toml)")
	workspace := fs.String("workspace", "", "Workspace directory (overrides config)")
	watchFolder := fs.String("watch", "", "Folder to watch for auto-import (overrides config)")
	enableMdns := fs.Bool("mdns", false, "Advertise the server via mDNS/Bonjour")
	imageID := fs.String("image", "", "Create a pairing session for this image id and print the QR payload")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: nuriemon-companion start [options]

Start the companion server. The phone pairs by scanning the QR code the
desktop displays; with --image the QR payload is printed here instead.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Flags override file values.
	if *workspace != "" {
		cfg.Workspace = *workspace
	}
	if *watchFolder != "" {
		cfg.WatchFolder = *watchFolder
	}
	if *enableMdns {
		cfg.MdnsEnabled = true
	}
	if cfg.Workspace == "" {
		cfg.Workspace, err = config.DefaultWorkspace()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := storage.EnsureLayout(cfg.Workspace); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	store, err := storage.Open(storage.DBPath(cfg.Workspace))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	rt := server.NewRuntime(server.RuntimeConfig{
		PortRangeStart:    cfg.PortRangeStart,
		PortRangeEnd:      cfg.PortRangeEnd,
		Bus:               bus,
		Store:             store,
		HeartbeatInterval: time.Duration(cfg.HeartbeatSeconds) * time.Second,
		Retention:         time.Duration(cfg.SessionRetentionHours) * time.Hour,
	})

	port, err := rt.Start()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.Stop()

	fmt.Fprintf(stdout, "Companion server listening on port %d\n", port)
	fmt.Fprintf(stdout, "Workspace: %s\n", cfg.Workspace)

	if *imageID != "" {
		if code := printPairing(rt.Registry(), *imageID, stdout, stderr); code != 0 {
			return code
		}
	}

	if cfg.WatchFolder != "" {
		w := watcher.New(watcher.Config{
			Folder:       cfg.WatchFolder,
			WorkspaceDir: cfg.Workspace,
			Store:        store,
			Bus:          bus,
		})
		if err := w.Start(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer w.Stop()
		fmt.Fprintf(stdout, "Auto-import watching: %s\n", cfg.WatchFolder)
	}

	if cfg.MdnsEnabled {
		adv := mdns.NewAdvertiser(mdns.Config{Port: port})
		if err := adv.Start(); err != nil {
			// Discovery is a convenience; the QR path still works.
			log.Printf("mdns advertisement failed: %v", err)
		} else {
			defer adv.Stop()
			fmt.Fprintf(stdout, "mDNS advertisement: %s\n", mdns.ServiceType)
		}
	}

	// Stand-in for the desktop GUI: log every bus event.
	ch, cancel := bus.Subscribe()
	defer cancel()
	go func() {
		for ev := range ch {
			switch e := ev.(type) {
			case events.MobileConnected:
				log.Printf("event %s: target %s", e.EventName(), e.ImageID)
			case events.MobileControl:
				log.Printf("event %s: %s %s%s%s target %s", e.EventName(),
					e.Type, e.Direction, e.ActionType, e.EmoteType, e.ImageID)
			default:
				log.Printf("event %s: %+v", ev.EventName(), ev)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Fprintln(stdout, "Shutting down")
	return 0
}

// printPairing creates a session for the target and prints what the desktop
// QR dialog would show.
func printPairing(registry *session.Registry, imageID string, stdout, stderr io.Writer) int {
	_, pairingURL := registry.CreateSession(imageID)
	dataURI, err := qr.DataURI(pairingURL)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Pairing URL: %s\n", pairingURL)
	fmt.Fprintf(stdout, "QR payload:  %s\n", dataURI)
	return 0
}
