// Package master owns every running Server: it binds them all up front,
// runs them concurrently, and tears every one of them down — without
// restarting any — the moment either an external shutdown trigger fires
// or any single server returns an error.
package master

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rxh-proxy/rxh/internal/config"
	"github.com/rxh-proxy/rxh/internal/logging"
	"github.com/rxh-proxy/rxh/internal/proxy"
	"github.com/rxh-proxy/rxh/internal/server"
	"github.com/rxh-proxy/rxh/internal/service"
)

// Master is the root of the task tree: one bound Server per expanded
// `listen` address, all sharing a single Proxy (and so a single set of
// per-backend circuit breakers) across every `[[server]]` table.
type Master struct {
	servers  []*server.Server
	shutdown <-chan struct{}
}

// Init binds a listener for every `listen` address across every
// `[[server]]` table — a table with N addresses becomes N independent
// Server values sharing that table's patterns — failing fast if any bind
// fails, before any of them has accepted a connection.
func Init(cfg config.Config) (*Master, error) {
	shared := proxy.New(&net.Dialer{})

	var servers []*server.Server
	for si, sc := range cfg.Servers {
		for _, addr := range sc.Listen {
			// The Service is built after binding so it names the address
			// actually bound (addr may ask for port 0).
			var svc *service.Service
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { svc.ServeHTTP(w, r) })

			srv, err := server.Bind(addr, sc.Connections, handler)
			if err != nil {
				return nil, fmt.Errorf("master: server[%d]: bind %s: %w", si, addr, err)
			}

			svc, err = service.New(sc, srv.Addr(), shared)
			if err != nil {
				return nil, fmt.Errorf("master: server[%d] %s: %w", si, addr, err)
			}
			servers = append(servers, srv)
		}
	}

	return &Master{servers: servers}, nil
}

// ShutdownOn arms the trigger that starts a graceful shutdown of every
// server: Run begins draining the moment ctx is canceled. Call this
// before Run.
func (m *Master) ShutdownOn(ctx context.Context) {
	m.shutdown = ctx.Done()
}

// Sockets returns the address each running server actually bound.
func (m *Master) Sockets() []string {
	addrs := make([]string, len(m.servers))
	for i, s := range m.servers {
		addrs[i] = s.Addr()
	}
	return addrs
}

// Run runs every server concurrently until the shutdown trigger fires or
// any one of them returns an error, whichever happens first; it then
// cancels every other server's context, waits for all of them to finish,
// and returns the first non-nil error (nil on a clean shutdown).
func (m *Master) Run() error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(m.servers))
	var wg sync.WaitGroup
	for _, s := range m.servers {
		wg.Add(1)
		go func(s *server.Server) {
			defer wg.Done()
			if err := s.Run(runCtx); err != nil {
				logging.Error().Err(err).Str("addr", s.Addr()).Msg("server exited with error")
				errCh <- err
				cancel()
			}
		}(s)
	}

	shutdown := m.shutdown
	if shutdown == nil {
		shutdown = make(chan struct{}) // never fires; only a server error ends Run
	}

	select {
	case <-shutdown:
		cancel()
	case <-runCtx.Done():
		// a server failed and called cancel() itself above
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
