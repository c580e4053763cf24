// Package service implements the per-server request dispatcher: match
// the request path against the server's configured patterns in
// declaration order, dispatch the first match to its Forward or Serve
// action, and log the completed request.
package service

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rxh-proxy/rxh/internal/config"
	"github.com/rxh-proxy/rxh/internal/files"
	"github.com/rxh-proxy/rxh/internal/httpio"
	"github.com/rxh-proxy/rxh/internal/logging"
	"github.com/rxh-proxy/rxh/internal/proxy"
	"github.com/rxh-proxy/rxh/internal/sched"
)

// compiledPattern is a config.Pattern with its Forward action already
// turned into a live Scheduler, so the hot path never allocates one.
type compiledPattern struct {
	uri       string
	scheduler sched.Scheduler // nil for a Serve pattern
	root      string          // empty for a Forward pattern
}

// Service dispatches every request that arrives on one running Server.
type Service struct {
	serverAddr string
	patterns   []compiledPattern
	proxy      *proxy.Proxy
}

// New compiles sc's patterns against serverAddr (this server's own
// listen address, used for the Forwarded header and logging) and proxy
// (shared across every server using the Forward action).
func New(sc config.ServerConfig, serverAddr string, proxy *proxy.Proxy) (*Service, error) {
	patterns := make([]compiledPattern, len(sc.Patterns))
	for i, p := range sc.Patterns {
		switch action := p.Action.(type) {
		case config.Forward:
			backends := make([]sched.Backend, len(action.Backends))
			for j, b := range action.Backends {
				backends[j] = sched.Backend{Address: b.Address, Weight: b.Weight}
			}
			s, err := sched.New(action.Algorithm, backends)
			if err != nil {
				return nil, fmt.Errorf("service: pattern %q: %w", p.URI, err)
			}
			patterns[i] = compiledPattern{uri: p.URI, scheduler: s}
		case config.Serve:
			patterns[i] = compiledPattern{uri: p.URI, root: action.Root}
		default:
			return nil, fmt.Errorf("service: pattern %q: unknown action %T", p.URI, p.Action)
		}
	}
	return &Service{serverAddr: serverAddr, patterns: patterns, proxy: proxy}, nil
}

// ServeHTTP implements http.Handler so a Service can be handed straight
// to a connection's request loop.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	// The match is a strict prefix test against the request's path and
	// query, stringified, not just its path — matching request.uri()'s
	// path_and_query() in the original implementation. File serving still
	// strips from the bare path, since a query string is never part of a
	// filesystem path.
	match := s.match(r.RequestURI)
	if match == nil {
		httpio.NotFound(rec)
	} else if match.scheduler != nil {
		backend := match.scheduler.NextServer()
		s.proxy.Forward(rec, r, backend, s.serverAddr)
	} else {
		httpio.SetServerHeader(rec.Header())
		files.Transfer(rec, strings.TrimPrefix(r.URL.Path, "/"), match.root)
	}

	logging.Info().
		Str("client", r.RemoteAddr).
		Str("server", s.serverAddr).
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Int("status", rec.status).
		Msg("request completed")
}

// match returns the first pattern whose URI is a prefix of path, or nil.
func (s *Service) match(path string) *compiledPattern {
	for i := range s.patterns {
		if strings.HasPrefix(path, s.patterns[i].uri) {
			return &s.patterns[i]
		}
	}
	return nil
}

// statusRecorder captures the status code written through it so the
// completed-request log line can report it even when the underlying
// action (files.Transfer, proxy.Forward) never returns one directly.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the wrapped ResponseWriter's Hijacker, which
// proxy.Forward's upgrade path needs to take over the connection for a
// 101 upgrade tunnel. Without this, wrapping the ResponseWriter here would
// silently break every WebSocket-style upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("service: underlying ResponseWriter does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return hj.Hijack()
}
