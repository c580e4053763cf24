// Command rxh runs a reverse proxy, load balancer, and static file
// server configured by a TOML file (rxh.toml by default).
//
// Usage:
//
//	rxh serve [--config rxh.toml]
//
// rxh binds every configured listen address eagerly at startup; a
// misconfigured backend or a bad `rxh.toml` is caught before any socket
// is opened. It shuts down gracefully on SIGINT/SIGTERM: the listeners
// stop accepting new connections immediately, and the process exits once
// every in-flight request has finished.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rxh-proxy/rxh/internal/config"
	"github.com/rxh-proxy/rxh/internal/logging"
	"github.com/rxh-proxy/rxh/internal/master"
)

// Exit codes: 0 clean shutdown, 1 configuration/bind failure, 2 a
// running server's own error.
const (
	exitOK           = 0
	exitConfigError  = 1
	exitRuntimeError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	root := &cobra.Command{
		Use:   "rxh",
		Short: "A reverse proxy, load balancer, and static file server",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start rxh using the configuration at --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd(configPath)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to rxh.toml (default: $RXH_CONFIG or ./rxh.toml)")
	root.AddCommand(serve)

	exitCode := exitOK
	root.SilenceErrors = true
	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rxh:", err)
		exitCode = exitCodeFor(err)
	}
	return exitCode
}

func serveCmd(configPathFlag string) error {
	settings, err := config.LoadSettings("rxh-settings.toml")
	if err != nil {
		return &configError{err}
	}
	logging.Init(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat})

	path := settings.ConfigPath
	if configPathFlag != "" {
		path = configPathFlag
	} else if env := os.Getenv(config.ConfigPathEnvVar); env != "" {
		path = env
	}

	cfg, err := config.Load(path)
	if err != nil {
		return &configError{err}
	}

	m, err := master.Init(cfg)
	if err != nil {
		return &configError{err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	m.ShutdownOn(ctx)

	logging.Info().Strs("listen", m.Sockets()).Msg("rxh starting")
	if err := m.Run(); err != nil {
		return &runtimeError{err}
	}
	logging.Info().Msg("rxh shut down cleanly")
	return nil
}

// configError and runtimeError distinguish the two non-zero exit codes
// without main needing to know which package produced the error.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

type runtimeError struct{ err error }

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	switch err.(type) {
	case *configError:
		return exitConfigError
	case *runtimeError:
		return exitRuntimeError
	default:
		return exitConfigError
	}
}
