// Package server runs one HTTP/1.1 listener: a semaphore-gated accept
// loop, an observable lifecycle state, and a graceful shutdown sequence
// that waits for every in-flight connection to finish before reporting
// itself done.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rxh-proxy/rxh/internal/logging"
	"github.com/rxh-proxy/rxh/internal/notify"
	"github.com/rxh-proxy/rxh/internal/watch"
)

// ShutdownGrace bounds how long a connection's in-flight request gets to
// finish once shutdown starts before its *http.Server is forced closed.
const ShutdownGrace = 10 * time.Second

// Server owns one bound listener and the accept loop serving it.
type Server struct {
	addr        string
	listener    net.Listener
	handler     http.Handler
	connections int64

	sem      *semaphore.Weighted
	notifier *notify.Notifier
	state    *watch.Value[State]

	wg sync.WaitGroup
}

// Bind opens a TCP listener at addr. The accept loop isn't running yet —
// call Run to start it. Binding eagerly, separate from running, is what
// lets Master report every server's address right after construction,
// before any of them has accepted a single connection.
func Bind(addr string, connections int, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:        ln.Addr().String(),
		listener:    ln,
		handler:     handler,
		connections: int64(connections),
		sem:         semaphore.NewWeighted(int64(connections)),
		notifier:    notify.New(),
		state:       watch.New(State{Phase: Starting}),
	}, nil
}

// Addr returns the address actually bound (useful when addr was
// "host:0" and the kernel picked a port).
func (s *Server) Addr() string { return s.addr }

// State returns the current observable lifecycle state.
func (s *Server) State() State { return s.state.Get() }

// Watch returns the current state and a channel that closes on the next
// transition, for callers that want to react to a change instead of
// polling State.
func (s *Server) Watch() (State, <-chan struct{}) { return s.state.Watch() }

// Run accepts connections until ctx is canceled, then drains: the
// listener stops accepting, every in-flight handler is asked to finish,
// and Run returns once they all have. A non-nil error return, other than
// from the shutdown path, means the listener itself failed and the
// accept loop never recovers — Master's contract is to propagate that as
// the first error, without restarting this server.
func (s *Server) Run(ctx context.Context) error {
	s.state.Set(State{Phase: Listening})

	errCh := make(chan error, 1)
	s.wg.Add(1)
	go s.acceptLoop(ctx, errCh)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	_ = s.listener.Close()
	s.notifier.Send()
	s.state.Set(State{Phase: ShuttingDown, Connections: s.notifier.Pending()})

	// Update the published pending count as handlers finish, so an
	// observer watching State sees the drain progress rather than one
	// jump from N to Done.
	done := make(chan struct{})
	go func() {
		s.notifier.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			s.wg.Wait()
			s.state.Set(State{Phase: ShutdownDone})
			return nil
		case <-time.After(100 * time.Millisecond):
			s.state.Set(State{Phase: ShuttingDown, Connections: s.notifier.Pending()})
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, errCh chan<- error) {
	defer s.wg.Done()

	for {
		if !s.sem.TryAcquire(1) {
			s.state.Set(State{Phase: MaxConnectionsReached, Connections: int(s.connections)})
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			if s.state.Get().Phase == MaxConnectionsReached {
				s.state.Set(State{Phase: Listening})
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case errCh <- err:
			default:
			}
			return
		}

		sub := s.notifier.Subscribe()
		s.wg.Add(1)
		go s.handleConn(conn, sub)
	}
}

func (s *Server) handleConn(conn net.Conn, sub *notify.Subscription) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer sub.Done()
	defer conn.Close()

	ln := newSingleConnListener(conn)
	httpSrv := &http.Server{Handler: s.handler}

	served := make(chan struct{})
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Debug().Err(err).Str("server", s.addr).Msg("connection serve ended")
		}
		close(served)
	}()

	select {
	case <-sub.Signal():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		<-served
	case <-served:
	}
}
