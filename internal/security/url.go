// Package security validates URLs that enter rendered templates or are
// stored as persisted image locations.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateAssetURL checks an href or src value produced by a template.
// Relative URLs, http(s), mailto, tel, blob and data:image URLs are
// allowed; script-capable schemes such as javascript: are rejected.
func ValidateAssetURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	// Browsers ignore control characters and whitespace inside schemes.
	cleaned := strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, trimmed)

	lower := strings.ToLower(cleaned)
	if strings.HasPrefix(lower, "data:") {
		if strings.HasPrefix(lower, "data:image/") {
			return nil
		}
		return fmt.Errorf("data URLs must be images")
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto", "tel", "blob":
		return nil
	default:
		return fmt.Errorf("URL scheme %q is not allowed", parsed.Scheme)
	}
}

// ValidateHTTPURL checks that a persisted asset URL is a public http(s)
// location. It rejects localhost, private IP ranges, link-local addresses
// and cloud metadata endpoints.
func ValidateHTTPURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a host")
	}

	hostLower := strings.ToLower(host)
	if hostLower == "localhost" || hostLower == "localhost.localdomain" {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames are not resolved here.
		return nil
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback addresses are not allowed")
	case ip.IsPrivate():
		return fmt.Errorf("private network addresses are not allowed")
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local addresses are not allowed")
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified addresses are not allowed")
	}
	return nil
}
