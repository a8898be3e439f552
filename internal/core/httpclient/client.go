// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

type Options struct {
	Timeout time.Duration
	// Proxy overrides HTTP(S)_PROXY from the environment when set.
	Proxy string
}

// NewOutbound creates a new outbound http client
func NewOutbound(o Options) (*http.Client, error) {
	proxy := http.ProxyFromEnvironment
	if o.Proxy != "" {
		u, err := url.Parse(o.Proxy)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", o.Proxy)
		}
		proxy = http.ProxyURL(u)
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   o.Timeout,
	}, nil
}
