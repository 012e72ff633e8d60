// Command ldap-auth-server answers login requests from the web UI by
// verifying the submitted credentials against the configured directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/appleboy/graceful"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ldapauth "github.com/netresearch/simple-ldap-auth"
	"github.com/netresearch/simple-ldap-auth/internal/config"
	"github.com/netresearch/simple-ldap-auth/internal/metrics"
	"github.com/netresearch/simple-ldap-auth/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	envFile := flag.String("env-file", "", "read configuration from this file in addition to the environment (default .env when present)")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	recorder := metrics.Init(cfg.Metrics.Enabled)

	opts := append([]ldapauth.Option{
		ldapauth.WithLogger(logger),
		ldapauth.WithRecorder(recorder),
	}, cfg.VerifierOptions()...)

	verifier, err := ldapauth.NewVerifier(cfg.Endpoint(), opts...)
	if err != nil {
		logger.Error("verifier_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srvOpts := server.Options{
		Logger:      logger,
		Recorder:    recorder,
		SlowRequest: cfg.LDAP.OperationTimeout,
	}
	if cfg.Metrics.Enabled {
		srvOpts.MetricsHandler = promhttp.Handler()
	}
	srv := server.New(cfg.HTTP, verifier, srvOpts)

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http_server_failed", slog.String("addr", srv.Addr()), slog.String("error", err.Error()))
				os.Exit(1)
			}
		}()
		<-ctx.Done()
		return nil
	})

	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http_forced_shutdown", slog.String("error", err.Error()))
			return err
		}
		logger.Info("http_server_exited")
		return nil
	})

	<-m.Done()
}
