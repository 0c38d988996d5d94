// Command voxdial runs the voice-driven action resolution engine: it
// consumes finalized utterances from the transcription front-end, resolves
// them against the account's candidate registry behind the biometric and
// subscription gates, and tracks dispatched actions through their lifecycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxdial/voxdial/internal/biometric"
	"github.com/voxdial/voxdial/internal/config"
	"github.com/voxdial/voxdial/internal/health"
	"github.com/voxdial/voxdial/internal/lifecycle"
	"github.com/voxdial/voxdial/internal/observe"
	"github.com/voxdial/voxdial/internal/resolve"
	"github.com/voxdial/voxdial/pkg/platform"
	"github.com/voxdial/voxdial/pkg/transcriber"
)

const (
	defaultListenAddr      = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxdial: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxdial: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	slog.Info("voxdial starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	st, err := buildStores(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to build storage", "err", err)
		return 1
	}
	defer st.Close()
	if st.Pool != nil {
		slog.Info("postgres storage ready")
	} else {
		slog.Info("in-memory storage ready")
	}

	// Engine wiring. No telephony gateway is built in; the logging
	// dispatcher stands in so resolved actions still run their lifecycle.
	gate := biometric.NewGate(st.Profiles)
	tracker := lifecycle.NewTracker(st.Records, lifecycle.WithLogger(logger))
	resolver := resolve.NewResolver(gate, st.Subscriptions, st.Candidates, tracker,
		resolve.WithLogger(logger),
		resolve.WithDispatcher(platform.NewLogDispatcher(logger)))

	// HTTP surface: health probes and the Prometheus scrape endpoint.
	var checkers []health.Checker
	if st.Pool != nil {
		checkers = append(checkers, health.Database(st.Pool), health.Breaker(st.Breaker))
	}
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Transcriber.URL != "" {
		feed, err := transcriber.New(cfg.Transcriber.URL,
			transcriber.WithLogger(logger),
			transcriber.WithBackoff(cfg.Transcriber.ReconnectBackoff),
		)
		if err != nil {
			slog.Error("failed to create utterance feed client", "err", err)
			return 1
		}
		g.Go(func() error {
			err := feed.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			resolveFeed(gctx, resolver, feed.Utterances())
			return nil
		})
		slog.Info("utterance feed enabled", "url", cfg.Transcriber.URL)
	}

	slog.Info("voxdial ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// resolveFeed pushes every feed utterance through the resolution pipeline
// and hands successful resolutions to the platform dispatcher. Denials are
// already logged and counted by the resolver; nothing here can act on them,
// so they are not treated as run errors.
func resolveFeed(ctx context.Context, resolver *resolve.Resolver, utterances <-chan transcriber.Utterance) {
	for u := range utterances {
		res, err := resolver.Resolve(ctx, resolve.Request{
			AccountID:          u.AccountID,
			SpeakerClaim:       u.SpeakerClaim,
			ConfidenceObserved: u.Confidence,
			Utterance:          u.Text,
		})
		if err != nil {
			if resolve.KindOf(err) == resolve.KindStorageUnavailable {
				slog.Warn("resolution hit storage failure; utterance dropped",
					"account_id", u.AccountID,
					"err", err,
				)
			}
			continue
		}
		if _, err := resolver.Dispatch(ctx, res); err != nil {
			slog.Warn("dispatch failed",
				"account_id", u.AccountID,
				"record_id", res.RecordID,
				"err", err,
			)
		}
	}
}
