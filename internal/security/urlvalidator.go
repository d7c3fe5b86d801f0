// Package security validates user-supplied URLs and save paths before the
// client fetches from or writes to them.
package security

import (
	"fmt"
	"net"
	"net/url"
)

var (
	ErrPrivateIP     = fmt.Errorf("URL resolves to private IP address")
	ErrInvalidScheme = fmt.Errorf("only HTTP and HTTPS URLs are allowed")
	ErrMissingHost   = fmt.Errorf("URL has no host")
)

// ValidateRemoteURL checks a URL the user asked the client to hand to the
// backend (template sync sources). Local/private destinations are rejected
// unless allowLocal is set, which the CLI enables when the backend itself
// is local.
func ValidateRemoteURL(rawURL string, allowLocal bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrMissingHost
	}

	if allowLocal {
		return nil
	}
	return validateHostIP(host)
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable hosts are left for the backend to reject.
		return nil
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0:
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // CGNAT
			return true
		case ip4[0] >= 224: // multicast and reserved
			return true
		}
	}
	return false
}
