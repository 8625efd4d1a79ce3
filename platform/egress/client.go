// Package egress builds outbound HTTP clients that optionally route through a
// forward proxy. This is part of the platform layer and contains no business logic.
package egress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const defaultTimeout = 30 * time.Second

// Options configures an outbound client.
type Options struct {
	// ProxyURL is an http, https, socks5 or socks5h URL. Empty disables proxying.
	ProxyURL string
	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration
}

// NewClient returns an *http.Client for the given options.
// A proxied call that fails is never retried without the proxy.
func NewClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	raw := strings.TrimSpace(opts.ProxyURL)
	if raw != "" {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if proxyURL.Host == "" {
			return nil, fmt.Errorf("proxy url %q has no host", Redact(raw))
		}

		switch strings.ToLower(proxyURL.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: timeout})
			if err != nil {
				return nil, fmt.Errorf("build socks dialer: %w", err)
			}
			ctxDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks dialer does not support contexts")
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return ctxDialer.DialContext(ctx, network, addr)
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// Redact strips credentials from a proxy URL for logging.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("****")
	return u.String()
}
