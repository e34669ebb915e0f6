package irc

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// proxyDialer tunnels connections through the proxy at u, reaching it
// with forward
func proxyDialer(u *url.URL, forward proxy.Dialer) (DialFunc, error) {
	d, err := proxy.FromURL(u, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}
