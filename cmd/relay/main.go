package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/live-canvas/internal/bus"
	"github.com/weiawesome/live-canvas/internal/config"
	"github.com/weiawesome/live-canvas/internal/discovery"
	"github.com/weiawesome/live-canvas/internal/handler"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/internal/registry"
	"github.com/weiawesome/live-canvas/internal/service"
	pkglog "github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "canvas-relay",
	})
	logger := pkglog.L()

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	logger = logger.With().Str(pkglog.FieldInstanceID, instanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = pkglog.WithLogger(ctx, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Initialize Hub
	wsHub := hub.NewHub()
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	// Optional cluster bus
	var (
		ps  pubsub.PubSub
		pub pubsub.Publisher
		reg registry.Registry
	)
	if cfg.Bus.Enabled() {
		ps, err = pubsub.NewPubSub(cfg.Bus.Config)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Bus.Driver).Msg("failed to connect to relay bus")
		}
		defer ps.Close()
		pub = ps
		logger.Info().Str("driver", cfg.Bus.Driver).Str(pkglog.FieldBoard, cfg.Bus.Board).Msg("relay bus connected")
	}

	relaySvc := service.NewRelayService(wsHub, pub, cfg.Bus.Board, instanceID)

	if ps != nil {
		sub := bus.NewSubscriber(ps, relaySvc)
		g.Go(func() error {
			sub.Run(gctx)
			return nil
		})
	}

	// Instance registry shares the bus's Redis connection
	if redisPS, ok := ps.(*pubsub.RedisPubSub); ok && cfg.Registry.Enabled {
		redisReg := registry.NewRedisRegistry(redisPS.GetClient(), cfg.Registry, instanceID, cfg.Server.AdvertiseAddress)
		if err := redisReg.Register(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to register relay instance")
		}
		if err := redisReg.StartHeartbeat(gctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start registry heartbeat")
		}
		defer func() {
			deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := redisReg.Deregister(deregCtx); err != nil {
				logger.Warn().Err(err).Msg("failed to deregister relay instance")
			}
			redisReg.Close()
		}()
		reg = redisReg
	}

	// LAN discovery
	if cfg.Discovery.MDNSEnabled {
		adv, err := discovery.Advertise(cfg.Discovery, cfg.Server.Port, instanceID)
		if err != nil {
			logger.Warn().Err(err).Msg("mdns advertise failed, continuing without discovery")
		} else {
			defer adv.Shutdown()
			logger.Info().Str("service", cfg.Discovery.Service).Msg("advertising relay via mdns")
		}
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	handler.NewWSHandler(relaySvc, reg, cfg.WebSocket).RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("canvas-relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down canvas-relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("canvas-relay stopped with error")
		return
	}
	logger.Info().Msg("canvas-relay stopped")
}
