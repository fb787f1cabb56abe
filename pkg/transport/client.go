package transport

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to address and wraps the connection as a Conn.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return New(raw, opts...), nil
}
