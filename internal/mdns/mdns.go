// Package mdns provides optional mDNS/Bonjour advertisement of the
// companion server, so a phone on the same network can find the desktop
// without typing an IP address. Opt-in; the QR code remains the primary
// pairing path and discovery reveals presence only, never a session token.
package mdns

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for companion hosts.
const ServiceType = "_nuriemon._tcp"

// ProtocolVersion lets future phone apps detect incompatible hosts before
// connecting.
const ProtocolVersion = "1"

// Config holds advertisement settings.
type Config struct {
	// Port is the bound front door port.
	Port int

	// Name is the human-readable instance name. Defaults to the system
	// hostname.
	Name string
}

// Advertiser registers the companion service with DNS-SD.
type Advertiser struct {
	mu     sync.Mutex
	config Config
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Nothing is broadcast until Start.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// Start registers the service. Safe to call repeatedly; an already running
// advertiser is left alone.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.config.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "nuriemon"
		} else {
			name = hostname
		}
	}

	txt := []string{
		fmt.Sprintf("version=%s", ProtocolVersion),
		fmt.Sprintf("name=%s", name),
	}

	server, err := zeroconf.Register(name, ServiceType, "local.", a.config.Port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.server = server
	return nil
}

// Stop unregisters the service. Safe to call repeatedly or before Start.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the advertisement is active.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Host is one companion service found on the network.
type Host struct {
	Name    string
	Addr    string
	Port    int
	Version string
}

// Discover browses for companion hosts until ctx expires. Primarily a
// diagnostic; the phone app uses the platform's native discovery.
func Discover(ctx context.Context) ([]Host, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)

	var (
		mu    sync.Mutex
		hosts []Host
		wg    sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			h := Host{Name: entry.Instance, Port: entry.Port}
			if len(entry.AddrIPv4) > 0 {
				h.Addr = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				h.Addr = entry.AddrIPv6[0].String()
			}
			for _, txt := range entry.Text {
				if len(txt) > 8 && txt[:8] == "version=" {
					h.Version = txt[8:]
				}
			}
			mu.Lock()
			hosts = append(hosts, h)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()
	wg.Wait()
	return hosts, nil
}
