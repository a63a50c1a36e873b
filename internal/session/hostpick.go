package session

import (
	"net"
	"strings"
)

// Interface preference scores. Lower wins: wired ethernet beats Wi-Fi,
// which beats anything else that survives the exclusion rules.
const (
	scoreWired   = 10  // eth*
	scoreDarwin  = 20  // en* (macOS names both wired and Wi-Fi en*)
	scoreWifi    = 30  // wl*
	scoreGeneric = 100 // anything else routable
)

// excludedPrefixes are virtual or tunnel interfaces a phone can never reach.
var excludedPrefixes = []string{"awdl", "llw", "utun"}

// PreferredHost returns the LAN IPv4 address a phone is most likely to
// reach, preferring wired over Wi-Fi interfaces. Loopback, link-local and
// known virtual/tunnel interfaces are excluded. Falls back to the OS
// routing table's preferred outbound address, then to the literal
// placeholder "localhost" when nothing routable is found.
func PreferredHost() string {
	if ip := bestInterfaceIPv4(); ip != "" {
		return ip
	}
	if ip := preferredOutboundIP(); ip != "" {
		return ip
	}
	return "localhost"
}

// bestInterfaceIPv4 enumerates network interfaces and returns the IPv4 of
// the best-scoring candidate, or empty if none qualifies.
func bestInterfaceIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	bestScore := -1
	bestIP := ""
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		score, ok := scoreInterfaceName(iface.Name)
		if !ok {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || !routableIPv4(ip) {
				continue
			}
			if bestScore == -1 || score < bestScore {
				bestScore = score
				bestIP = ip.String()
			}
		}
	}
	return bestIP
}

// scoreInterfaceName assigns a preference score to an interface name.
// Returns ok=false for interfaces that must never be offered to a phone.
func scoreInterfaceName(name string) (score int, ok bool) {
	lower := strings.ToLower(name)
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return 0, false
		}
	}
	if strings.Contains(lower, "bridge") {
		return 0, false
	}

	switch {
	case strings.HasPrefix(lower, "eth"):
		return scoreWired, true
	case strings.HasPrefix(lower, "en"):
		return scoreDarwin, true
	case strings.HasPrefix(lower, "wl"):
		return scoreWifi, true
	default:
		return scoreGeneric, true
	}
}

// routableIPv4 reports whether ip is a plausible LAN address:
// not loopback and not link-local (169.254/16).
func routableIPv4(ip net.IP) bool {
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast()
}

// preferredOutboundIP returns the machine's preferred outbound IPv4 address.
// It works by dialing a UDP connection to a public IP (no actual traffic
// sent) and checking which local address was selected by the OS routing
// table. Returns empty string if detection fails.
func preferredOutboundIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
