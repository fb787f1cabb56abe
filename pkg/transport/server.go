package transport

import "net"

// Listener accepts TCP connections and wraps each one as a Conn.
type Listener struct {
	ln   net.Listener
	opts []Option
}

// Listen opens a TCP listener on address, applying opts to every
// accepted Conn.
func Listen(address string, opts ...Option) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, opts: opts}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept blocks until a new connection arrives, returning it wrapped as
// a Conn.
func (l *Listener) Accept() (*Conn, error) {
	raw, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return New(raw, l.opts...), nil
}

// Close stops accepting new connections. Existing Conns are unaffected.
func (l *Listener) Close() error { return l.ln.Close() }
