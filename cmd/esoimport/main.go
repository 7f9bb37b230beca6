package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/esoimport/pkg/eso"
	"github.com/raterudder/esoimport/pkg/importer"
	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/metrics"
	"github.com/raterudder/esoimport/pkg/server"
	"github.com/raterudder/esoimport/pkg/storage"
	"github.com/raterudder/esoimport/pkg/utility"
)

func main() {
	// init packages
	c := eso.Configured()
	s := storage.Configured()
	m := metrics.New(prometheus.DefaultRegisterer)
	imp := importer.Configured(c, s, m)
	imp.SetPriceSyncer(utility.Configured(s))

	// init server
	srv := server.Configured(imp, prometheus.DefaultGatherer)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	log.SetDefaultLogLevel(level)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	// both block until the context is canceled
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return imp.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "esoimport failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "esoimport exited cleanly")
}
