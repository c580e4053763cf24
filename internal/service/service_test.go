package service

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rxh-proxy/rxh/internal/config"
	"github.com/rxh-proxy/rxh/internal/proxy"
)

func TestService_ForwardsMatchingPrefixToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	sc := config.ServerConfig{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 1,
		Patterns: []config.Pattern{{
			URI: "/api",
			Action: config.Forward{
				Backends: []config.Backend{{Address: backend.Listener.Addr().String(), Weight: 1}},
			},
		}},
	}

	svc, err := New(sc, "rxh-test:8080", proxy.New(&net.Dialer{}))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/things", nil)
	svc.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestService_NoMatchIs404(t *testing.T) {
	sc := config.ServerConfig{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 1,
		Patterns: []config.Pattern{{
			URI:    "/api",
			Action: config.Forward{Backends: []config.Backend{{Address: "127.0.0.1:1", Weight: 1}}},
		}},
	}
	svc, err := New(sc, "rxh-test:8080", proxy.New(&net.Dialer{}))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/nope", nil)
	svc.ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "rxh", w.Header().Get("Server"))
}

func TestService_ServesStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644))

	sc := config.ServerConfig{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 1,
		Patterns: []config.Pattern{{
			URI:    "/",
			Action: config.Serve{Root: dir},
		}},
	}
	svc, err := New(sc, "rxh-test:8080", proxy.New(&net.Dialer{}))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	svc.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hi", w.Body.String())
}

func TestService_FirstDeclaredPrefixWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "file.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "file.txt"), []byte("B"), 0o644))

	sc := config.ServerConfig{
		Listen:      []string{"127.0.0.1:0"},
		Connections: 1,
		Patterns: []config.Pattern{
			{URI: "/", Action: config.Serve{Root: dirA}},
			{URI: "/", Action: config.Serve{Root: dirB}},
		},
	}
	svc, err := New(sc, "rxh-test:8080", proxy.New(&net.Dialer{}))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/file.txt", nil)
	svc.ServeHTTP(w, r)

	require.Equal(t, "A", w.Body.String())
}
