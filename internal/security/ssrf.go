// Package security keeps outbound webhook traffic away from internal
// infrastructure: loopback, link-local (including the cloud metadata
// endpoint) and private ranges are refused at dial time and on redirects.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"
)

const dnsTimeout = 500 * time.Millisecond

var (
	ErrBlocked          = errors.New("ssrf: destination address is blocked")
	ErrDNSFailed        = errors.New("ssrf: DNS resolution failed")
	ErrTooManyRedirects = errors.New("ssrf: too many redirects")
)

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// IsBlocked reports whether addr falls in a refused range. IPv4-mapped IPv6
// addresses are checked as IPv4.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Guard resolves and checks hosts before any connection is made.
type Guard struct {
	resolver Resolver
	dialer   *net.Dialer
}

// NewGuard uses net.DefaultResolver when r is nil.
func NewGuard(r Resolver) *Guard {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Guard{resolver: r, dialer: &net.Dialer{Timeout: 5 * time.Second}}
}

// Check resolves host and fails if any resulting address is blocked. Every
// address is checked, so a name mixing public and private records is
// refused.
func (g *Guard) Check(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if IsBlocked(addr) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, addr)
		}
		return []netip.Addr{addr}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	addrs, err := g.resolver.LookupNetIP(dnsCtx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}
	for _, a := range addrs {
		if IsBlocked(a) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a, host)
		}
	}
	return addrs, nil
}

// DialContext dials the first checked address, so the connection goes to
// exactly the address that was validated.
func (g *Guard) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", address, err)
	}
	addrs, err := g.Check(ctx, host)
	if err != nil {
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].String(), port))
}

// CheckRedirect validates every redirect hop and caps the chain length.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		_, err := g.Check(req.Context(), host)
		return err
	}
}

// NewSafeHTTPClient returns a client whose every hop passes the guard.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	g := NewGuard(nil)
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = g.DialContext
	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: g.CheckRedirect(maxRedirects),
	}
}

// IsSSRFError reports whether err came from the guard.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrDNSFailed) || errors.Is(err, ErrTooManyRedirects)
}
