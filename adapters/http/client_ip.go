package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc resolves the address a request is rate limited and audited under.
// An empty result means unknown, and the rate limiter lets the request through.
type ClientIPFunc func(r *http.Request) string

// DefaultClientIP keys on the TCP peer when it is publicly routable. A private
// peer is taken to be a load balancer and yields "".
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string { return publicOrEmpty(peerAddr(r)) }
}

// edgeHeaders carry a single client address set by the edge proxy.
var edgeHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// ClientIPFromForwardedHeaders is the strategy for walletauth behind the proxies
// listed in trusted (the server's trustedProxies setting). Headers are read only
// when the peer is trusted. X-Forwarded-For is walked right to left past trusted
// hops, so addresses a wallet client prepends itself are never used as its key.
func ClientIPFromForwardedHeaders(trusted []netip.Prefix) ClientIPFunc {
	isTrusted := func(a netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}
	return func(r *http.Request) string {
		peer := peerAddr(r)
		if !peer.IsValid() {
			return ""
		}
		if !isTrusted(peer) {
			return publicOrEmpty(peer)
		}
		for _, h := range edgeHeaders {
			if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(h))); err == nil && isPublicAddr(a) {
				return a.Unmap().String()
			}
		}
		hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if isTrusted(a) {
				continue
			}
			return publicOrEmpty(a)
		}
		return publicOrEmpty(peer)
	}
}

// peerAddr parses RemoteAddr, with or without a port.
func peerAddr(r *http.Request) netip.Addr {
	if r == nil || r.RemoteAddr == "" {
		return netip.Addr{}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}

func remoteIP(r *http.Request) string {
	if a := peerAddr(r); a.IsValid() {
		return a.String()
	}
	return ""
}

func publicOrEmpty(a netip.Addr) string {
	if !isPublicAddr(a) {
		return ""
	}
	return a.Unmap().String()
}

func isPublicAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsValid() && a.IsGlobalUnicast() && !a.IsPrivate()
}
