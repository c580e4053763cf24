package testutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rxh-proxy/rxh/internal/config"
	"github.com/rxh-proxy/rxh/internal/master"
)

// S1: a request to a single-backend forward gets that backend's response.
func TestIntegration_SingleBackendForward(t *testing.T) {
	backend := EchoBackend(t, http.StatusOK)

	m, sockets := startMaster(t, config.Config{Servers: []config.ServerConfig{{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 8,
		Patterns: []config.Pattern{{
			URI:    "/",
			Action: config.Forward{Backends: []config.Backend{{Address: backendAddr(backend), Weight: 1}}},
		}},
	}}})
	defer m.shutdown()

	resp, err := http.Get("http://" + sockets[0] + "/hello")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Received-Forwarded"))
}

// S2: a path matching no pattern's prefix is 404.
func TestIntegration_NoMatchingPatternIs404(t *testing.T) {
	m, sockets := startMaster(t, config.Config{Servers: []config.ServerConfig{{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 8,
		Patterns: []config.Pattern{{
			URI:    "/api",
			Action: config.Forward{Backends: []config.Backend{{Address: "127.0.0.1:1", Weight: 1}}},
		}},
	}}})
	defer m.shutdown()

	resp, err := http.Get("http://" + sockets[0] + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// S3: a backend that refuses the connection yields 502, not a hang.
func TestIntegration_DeadBackendIs502(t *testing.T) {
	dead := DeadAddr(t)

	m, sockets := startMaster(t, config.Config{Servers: []config.ServerConfig{{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 8,
		Patterns: []config.Pattern{{
			URI:    "/",
			Action: config.Forward{Backends: []config.Backend{{Address: dead, Weight: 1}}},
		}},
	}}})
	defer m.shutdown()

	resp, err := http.Get("http://" + sockets[0] + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

// S4: the Forwarded header the backend receives names this hop.
func TestIntegration_ForwardedHeaderNamesThisHop(t *testing.T) {
	backend := EchoBackend(t, http.StatusOK)

	m, sockets := startMaster(t, config.Config{Servers: []config.ServerConfig{{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 8,
		Patterns: []config.Pattern{{
			URI:    "/",
			Action: config.Forward{Backends: []config.Backend{{Address: backendAddr(backend), Weight: 1}}},
		}},
	}}})
	defer m.shutdown()

	resp, err := http.Get("http://" + sockets[0] + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Contains(t, resp.Header.Get("X-Received-Forwarded"), "by="+sockets[0])
}

// S5: once shutdown starts, the listener stops accepting new connections.
func TestIntegration_ShutdownStopsAcceptingNewConnections(t *testing.T) {
	backend := EchoBackend(t, http.StatusOK)

	cfg := config.Config{Servers: []config.ServerConfig{{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 8,
		Patterns: []config.Pattern{{
			URI:    "/",
			Action: config.Forward{Backends: []config.Backend{{Address: backendAddr(backend), Weight: 1}}},
		}},
	}}}

	m, err := master.Init(cfg)
	require.NoError(t, err)
	sockets := m.Sockets()

	ctx, cancel := context.WithCancel(context.Background())
	m.ShutdownOn(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- m.Run() }()
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://" + sockets[0] + "/")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after shutdown")
	}

	_, err = net.DialTimeout("tcp", sockets[0], time.Second)
	require.Error(t, err, "listener must refuse connections once shut down")
}

type runningMaster struct {
	cancel context.CancelFunc
	done   chan error
}

func (m *runningMaster) shutdown() {
	m.cancel()
	<-m.done
}

func startMaster(t *testing.T, cfg config.Config) (*runningMaster, []string) {
	t.Helper()
	m, err := master.Init(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.ShutdownOn(ctx)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()
	time.Sleep(50 * time.Millisecond)

	return &runningMaster{cancel: cancel, done: done}, m.Sockets()
}

func backendAddr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}
