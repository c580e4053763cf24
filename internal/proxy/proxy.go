// Package proxy implements the Forward action: dial a backend fresh for
// every request (never pooled, so a protocol upgrade handshake is never
// ambiguous about which connection it belongs to), add this hop's
// Forwarded entry, and hand the response back — including tunneling a
// successful 101 Switching Protocols upgrade (e.g. WebSocket) as raw
// bytes in both directions for the rest of the connection's life.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"sync"

	"github.com/google/uuid"

	"github.com/rxh-proxy/rxh/internal/breaker"
	"github.com/rxh-proxy/rxh/internal/httpio"
	"github.com/rxh-proxy/rxh/internal/logging"
)

// errUnexpectedUpgrade marks a backend replying 101 to a request that
// never asked to upgrade. The spec treats this exactly like a failed
// dial: the client gets a 502, never a half-finished tunnel.
var errUnexpectedUpgrade = errors.New("proxy: backend sent 101 Switching Protocols for a non-upgrade request")

// Proxy forwards requests to a fixed set of backend addresses, dialing
// through a shared set of per-backend circuit breakers.
type Proxy struct {
	breakers *breaker.Breakers
}

// New builds a Proxy. dialer is typically &net.Dialer{}; tests can
// substitute a stub that never opens a real socket.
func New(dialer breaker.Dialer) *Proxy {
	return &Proxy{breakers: breaker.New(dialer)}
}

// Forward proxies r to backend and writes the result to w. serverAddr is
// this server's own listen address, used both as the `by` value in the
// Forwarded header and as the Host fallback.
//
// A request that carries an Upgrade header is handled entirely by
// forwardUpgrade: the request is written onto a hand-dialed backend
// connection, so a 101 response can hand both connections off to a
// tunnel instead of flowing back through the ordinary response path.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, backend, serverAddr string) {
	if r.Header.Get("Upgrade") != "" {
		p.forwardUpgrade(w, r, backend, serverAddr)
		return
	}

	forwarded := httpio.Forwarded(r, serverAddr, r.RemoteAddr)

	director := func(out *http.Request) {
		out.URL.Scheme = "http"
		out.URL.Host = backend
		out.Host = r.Host
		out.Header.Set("Forwarded", forwarded)
	}

	rp := &httputil.ReverseProxy{
		Director: director,
		Transport: &breakerTransport{
			breakers: p.breakers,
			backend:  backend,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Warn().Err(err).Str("backend", backend).Msg("forward failed")
			httpio.BadGateway(w)
		},
		ModifyResponse: func(resp *http.Response) error {
			httpio.SetServerHeader(resp.Header)
			return nil
		},
	}

	rp.ServeHTTP(w, r)
}

// forwardUpgrade dials backend by hand, writes the rewritten request
// directly onto the raw connection, and — only if the backend answers
// 101 Switching Protocols — hijacks the client connection and hands both
// sides off to a tunnel. Any other response is relayed normally and the
// backend connection is closed; no hijack happens on that path.
func (p *Proxy) forwardUpgrade(w http.ResponseWriter, r *http.Request, backend, serverAddr string) {
	clientAddr := r.RemoteAddr
	forwarded := httpio.Forwarded(r, serverAddr, clientAddr)

	backendConn, err := p.breakers.Dial(r.Context(), backend)
	if err != nil {
		logging.Warn().Err(err).Str("backend", backend).Msg("forward failed")
		httpio.BadGateway(w)
		return
	}

	outReq := r.Clone(r.Context())
	outReq.URL.Scheme = "http"
	outReq.URL.Host = backend
	outReq.Host = r.Host
	outReq.Header.Set("Forwarded", forwarded)

	if err := outReq.Write(backendConn); err != nil {
		backendConn.Close()
		logging.Warn().Err(err).Str("backend", backend).Msg("forward failed")
		httpio.BadGateway(w)
		return
	}

	backendReader := bufio.NewReader(backendConn)
	resp, err := http.ReadResponse(backendReader, outReq)
	if err != nil {
		backendConn.Close()
		logging.Warn().Err(err).Str("backend", backend).Msg("forward failed")
		httpio.BadGateway(w)
		return
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		defer resp.Body.Close()
		defer backendConn.Close()
		httpio.SetServerHeader(resp.Header)
		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		resp.Body.Close()
		backendConn.Close()
		logging.Warn().Str("backend", backend).Msg("forward failed: response writer does not support hijacking")
		httpio.BadGateway(w)
		return
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		resp.Body.Close()
		backendConn.Close()
		logging.Warn().Err(err).Str("backend", backend).Msg("forward failed: hijack")
		httpio.BadGateway(w)
		return
	}

	httpio.SetServerHeader(resp.Header)
	if err := resp.Write(clientConn); err != nil {
		logging.Warn().Err(err).Str("backend", backend).Msg("forward failed: writing 101 to client")
		clientConn.Close()
		backendConn.Close()
		return
	}

	runTunnel(clientConn, clientBuf.Reader, backendConn, backendReader, clientAddr, backend)
}

// runTunnel copies bytes bidirectionally between an upgraded client
// connection and an upgraded backend connection until both directions
// reach EOF or error, then logs both directional byte counts — spec.md
// §4.5 step 3 and §6's "tunnel byte counts" log line. clientBuf and
// backendBuf are the buffered readers left over from parsing the request
// line/headers (client) and the 101 response (backend): reading from them
// first drains any bytes already pulled off the wire before the upgrade.
func runTunnel(client net.Conn, clientBuf *bufio.Reader, backend net.Conn, backendBuf *bufio.Reader, clientAddr, backendAddr string) {
	id := uuid.NewString()

	var wg sync.WaitGroup
	var clientToBackend, backendToClient int64
	var errClientToBackend, errBackendToClient error

	wg.Add(2)
	go func() {
		defer wg.Done()
		clientToBackend, errClientToBackend = io.Copy(backend, clientBuf)
		closeWrite(backend)
	}()
	go func() {
		defer wg.Done()
		backendToClient, errBackendToClient = io.Copy(client, backendBuf)
		closeWrite(client)
	}()
	wg.Wait()

	client.Close()
	backend.Close()

	event := logging.Info()
	if errClientToBackend != nil || errBackendToClient != nil {
		event = logging.Warn()
		if errClientToBackend != nil {
			event = event.AnErr("client_to_backend_err", errClientToBackend)
		}
		if errBackendToClient != nil {
			event = event.AnErr("backend_to_client_err", errBackendToClient)
		}
	}
	event.
		Str("tunnel_id", id).
		Str("client", clientAddr).
		Str("backend", backendAddr).
		Int64("client_to_backend_bytes", clientToBackend).
		Int64("backend_to_client_bytes", backendToClient).
		Msg("upgrade tunnel closed")
}

// closeWrite half-closes conn's write side, if it supports doing so, so
// the peer blocked reading from the other goroutine's io.Copy sees EOF
// instead of hanging once this direction has finished.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
}

// breakerTransport is an http.RoundTripper that dials exactly one
// backend address, through that address's circuit breaker, and never
// reuses a connection across requests (DisableKeepAlives below), so each
// request's upgrade handshake — if any — owns its connection outright.
type breakerTransport struct {
	breakers *breaker.Breakers
	backend  string
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := &http.Transport{
		DisableKeepAlives: true,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return t.breakers.Dial(ctx, t.backend)
		},
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusSwitchingProtocols && req.Header.Get("Upgrade") == "" {
		resp.Body.Close()
		return nil, errUnexpectedUpgrade
	}
	return resp, nil
}
