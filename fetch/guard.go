package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrBlockedURL is returned for URLs rejected by the request guard.
var ErrBlockedURL = errors.New("url not allowed")

var (
	cgnat    *net.IPNet // 100.64.0.0/10
	v6unique *net.IPNet // fc00::/7
	v6link   *net.IPNet // fe80::/10
)

func init() {
	for cidr, dst := range map[string]**net.IPNet{
		"100.64.0.0/10": &cgnat,
		"fc00::/7":      &v6unique,
		"fe80::/10":     &v6link,
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR " + cidr + ": " + err.Error())
		}
		*dst = n
	}
}

// Guard decides which URLs may be fetched. The zero value allows only
// public HTTPS URLs.
type Guard struct {
	// AllowHTTP permits plain http URLs. Most linked data is still served
	// over http.
	AllowHTTP bool
	// AllowPrivate permits localhost, local domains and private addresses.
	AllowPrivate bool
}

// ValidateURL checks a URL against the guard.
func (g Guard) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrBlockedURL, err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !g.AllowHTTP {
			return fmt.Errorf("%w: only HTTPS URLs are allowed", ErrBlockedURL)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrBlockedURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrBlockedURL)
	}
	if g.AllowPrivate {
		return nil
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("%w: localhost URLs are not allowed", ErrBlockedURL)
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("%w: local domain URLs are not allowed", ErrBlockedURL)
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("%w: private IP addresses are not allowed", ErrBlockedURL)
	}
	return nil
}

// IsPrivateIP reports whether ip is loopback, private, link-local, CGNAT or
// IPv6 unique local. IPv4-mapped IPv6 addresses are checked as IPv4.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}

// Origin returns scheme://host of a URL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
