package server

import (
	"errors"
	"net"
	"sync"
)

// singleConnListener adapts one already-accepted net.Conn into a
// net.Listener so a connection can be handed to its own *http.Server,
// which gives us HTTP/1.1 framing, keep-alive, and Hijacker support for
// upgrades for free instead of hand-parsing requests off the wire —
// matching, at the per-connection granularity, what the original
// project's hyper server does with serve_connection(...).with_upgrades().
type singleConnListener struct {
	conn net.Conn

	once   sync.Once
	closed chan struct{}
	taken  bool
	mu     sync.Mutex
}

func newSingleConnListener(conn net.Conn) *singleConnListener {
	return &singleConnListener{conn: conn, closed: make(chan struct{})}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if !l.taken {
		l.taken = true
		l.mu.Unlock()
		return l.conn, nil
	}
	l.mu.Unlock()

	<-l.closed
	return nil, errors.New("server: singleConnListener closed")
}

func (l *singleConnListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *singleConnListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}
