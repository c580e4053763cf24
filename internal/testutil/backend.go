// Package testutil provides small end-to-end helpers for exercising a
// running rxh Master the way a real client would: over real TCP, against
// a real backend, rather than calling handlers in-process. It plays the
// role the original project's own tests/util harness plays for its
// integration suite.
package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// EchoBackend starts an HTTP server that reports the request it received
// back via response headers the test can assert on, and returns it. It
// is closed automatically at test cleanup.
func EchoBackend(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Received-Forwarded", r.Header.Get("Forwarded"))
		w.Header().Set("X-Received-Host", r.Host)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// DeadAddr returns an address nothing is listening on, for exercising a
// forward attempt that must fail to dial.
func DeadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testutil: reserving a dead address: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("testutil: releasing dead address: %v", err)
	}
	return addr
}
