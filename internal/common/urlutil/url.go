// Package urlutil provides URL handling utilities for network operations
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
)

// DefaultScheme is used when a host is given without one
const DefaultScheme = "http"

// EnsureScheme prefixes rawURL with the default scheme unless it already
// starts with http:// or https://.
func EnsureScheme(rawURL string) string {
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return rawURL
	}
	return DefaultScheme + "://" + rawURL
}

// ParseBaseURL turns a host[:port] with an optional scheme into a validated
// base URL. Any path, query or fragment on the input is dropped.
func ParseBaseURL(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", errors.ErrInvalidURL)
	}

	if i := strings.Index(host, "://"); i >= 0 {
		if scheme := strings.ToLower(host[:i]); scheme != "http" && scheme != "https" {
			return nil, fmt.Errorf("%w: unsupported scheme '%s'", errors.ErrInvalidURL, host[:i])
		}
	}

	u, err := url.Parse(EnsureScheme(host))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidURL, err.Error())
	}
	if err := ValidateURL(u.String()); err != nil {
		return nil, err
	}

	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host}, nil
}

// ValidateURL checks if a URL is valid
func ValidateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidURL, err.Error())
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("%w: missing scheme (http:// or https://)", errors.ErrInvalidURL)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme '%s'", errors.ErrInvalidURL, parsedURL.Scheme)
	}

	if parsedURL.Hostname() == "" {
		return fmt.Errorf("%w: missing host", errors.ErrInvalidURL)
	}

	return nil
}

// JoinURL appends path segments to base. Each segment is escaped on its
// own, so an identifier containing "/" stays a single segment.
func JoinURL(base *url.URL, segments ...string) *url.URL {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return base.JoinPath(escaped...)
}
