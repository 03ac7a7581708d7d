package codegate

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers consulted after X-Forwarded-For, in priority order.
var proxyIPHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Client-IP",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7"} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

// IsValidIP reports whether s parses as an IP address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsPrivateIP reports whether s is loopback or inside a private range.
// Unparseable input counts as private: it must never reach the geo lookup.
func IsPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func firstPublicIP(headerValue string) string {
	for _, candidate := range strings.Split(headerValue, ",") {
		candidate = strings.TrimSpace(candidate)
		if IsValidIP(candidate) && !IsPrivateIP(candidate) {
			return candidate
		}
	}
	return ""
}

// ClientIP resolves the caller's public address from proxy headers, falling
// back to the connection's remote address. Returns "unknown" when nothing
// public resolves.
func ClientIP(r *http.Request) string {
	if ip := firstPublicIP(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	for _, header := range proxyIPHeaders {
		if ip := firstPublicIP(r.Header.Get(header)); ip != "" {
			return ip
		}
	}

	direct := r.RemoteAddr
	if host, _, err := net.SplitHostPort(direct); err == nil {
		direct = host
	}
	direct = strings.TrimPrefix(direct, "::ffff:")
	if direct == "::1" {
		direct = "127.0.0.1"
	}
	if IsValidIP(direct) && !IsPrivateIP(direct) {
		return direct
	}
	return "unknown"
}

// Referrer resolves the request referrer, preferring the Referer header and
// falling back to Origin.
func Referrer(r *http.Request) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		return ref
	}
	return r.Header.Get("Origin")
}
