// Package netaddr resolves and canonicalizes client network addresses for
// grouping peers into address rooms.
package netaddr

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
)

// Loopback is the canonical address shared by every private, link-local and
// loopback client, so peers on the same network always land in one room.
const Loopback = "127.0.0.1"

// Proxy headers in priority order.
const (
	HeaderCFConnectingIP = "CF-Connecting-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
)

const mappedPrefix = "::ffff:"

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),  // unique local, includes fd00::/8
	netip.MustParsePrefix("fec0::/10"), // deprecated site local
	netip.MustParsePrefix("fe80::/10"), // link local
	netip.MustParsePrefix("100::/64"),  // discard prefix
}

// ClientIP returns the raw client address of a request: the first entry of
// CF-Connecting-IP, else of X-Forwarded-For, else the host part of remoteAddr.
func ClientIP(header http.Header, remoteAddr string) string {
	for _, name := range []string{HeaderCFConnectingIP, HeaderXForwardedFor} {
		if v := header.Get(name); v != "" {
			if first := firstListEntry(v); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func firstListEntry(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// Canonicalize strips the IPv4-mapped IPv6 prefix, collapses loopback and
// private addresses to Loopback and, when segments is in 1..7, truncates
// public IPv6 addresses to their first segments. It is idempotent.
func Canonicalize(ip string, segments int) string {
	ip = strings.TrimSpace(ip)
	if len(ip) >= len(mappedPrefix) && strings.EqualFold(ip[:len(mappedPrefix)], mappedPrefix) {
		ip = ip[len(mappedPrefix):]
	}

	if IsLoopback(ip) || IsPrivate(ip) {
		return Loopback
	}

	if segments > 0 && strings.Contains(ip, ":") {
		return Localize(ip, segments)
	}
	return ip
}

// Localize keeps the first n colon-separated segments of an IPv6 address.
func Localize(ip string, n int) string {
	if n <= 0 {
		return ip
	}
	parts := strings.Split(ip, ":")
	if len(parts) <= n {
		return ip
	}
	kept := strings.Join(parts[:n], ":")
	if strings.Trim(kept, ":") == "" {
		return ip
	}
	return kept
}

// IsLoopback reports whether ip is a loopback address.
func IsLoopback(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

// IsPrivate reports whether ip belongs to a private IPv4 range or a local
// IPv6 range. Truncated IPv6 addresses are classified by their first segment.
func IsPrivate(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err == nil {
		addr = addr.Unmap().WithZone("")
		for _, p := range privatePrefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	if strings.Contains(ip, ".") {
		return false
	}
	return firstSegmentIsLocal(ip)
}

func firstSegmentIsLocal(ip string) bool {
	var word string
	for _, seg := range strings.Split(ip, ":") {
		if seg != "" {
			word = seg
			break
		}
	}
	if word == "" {
		return false
	}

	w, err := strconv.ParseUint(word, 16, 16)
	if err != nil {
		return false
	}

	switch {
	case w >= 0xfc00 && w <= 0xfdff:
		return true
	case w >= 0xfe80 && w <= 0xfeff:
		return true
	case w == 0x100:
		return true
	}
	return false
}
