package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/live-canvas/internal/canvas"
	"github.com/weiawesome/live-canvas/internal/config"
	"github.com/weiawesome/live-canvas/internal/discovery"
	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/export"
	"github.com/weiawesome/live-canvas/internal/participant"
	pkglog "github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/storage"
)

// canvas-mirror joins a relay as a silent participant, rebuilds the board
// from the event stream and stores snapshots of it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "canvas-mirror",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	url := cfg.Client.RelayURL
	if url == "" && cfg.Discovery.MDNSEnabled {
		url, err = discovery.Browse(cfg.Discovery)
		if err != nil {
			logger.Warn().Err(err).Msg("mdns browse found no relay")
		}
	}
	if url == "" {
		url = fmt.Sprintf("ws://localhost:%d/ws", cfg.Server.Port)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize snapshot storage")
	}

	renderer, err := canvas.NewRenderer(canvas.Options{
		Width:      cfg.Canvas.Width,
		Height:     cfg.Canvas.Height,
		LineWidth:  cfg.Canvas.LineWidth,
		Background: domain.Color(cfg.Canvas.Background),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create surface")
	}
	defer renderer.Close()

	conn, err := participant.Dial(ctx, url)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to join relay")
	}
	defer conn.Close()
	logger.Info().Str("relay", url).Msg("canvas-mirror joined relay")

	snap := export.NewSnapshotter(store, renderer, cfg.Bus.Board, cfg.Client.SnapshotPDF, cfg.Client.URLExpiry).
		WithThumbnail(export.Thumbnail{
			Width:   cfg.Client.Thumbnail.Width,
			Height:  cfg.Client.Thumbnail.Height,
			Quality: cfg.Client.Thumbnail.Quality,
		})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := conn.Run(gctx, renderer)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil {
			err = errors.New("relay closed the connection")
		}
		return err
	})
	if cfg.Client.SnapshotTick > 0 {
		g.Go(func() error {
			snap.Run(gctx, cfg.Client.SnapshotTick)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("relay connection ended")
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := snap.Save(pkglog.WithLogger(saveCtx, logger), time.Now()); err != nil {
		logger.Error().Err(err).Msg("failed to store final snapshot")
		return
	}
	logger.Info().Msg("canvas-mirror stopped")
}
