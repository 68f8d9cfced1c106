package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-studio/internal/api"
	"github.com/heimdex/heimdex-studio/internal/cloud"
	"github.com/heimdex/heimdex-studio/internal/config"
	"github.com/heimdex/heimdex-studio/internal/logging"
	"github.com/heimdex/heimdex-studio/internal/media"
	"github.com/heimdex/heimdex-studio/internal/persist"
	"github.com/heimdex/heimdex-studio/internal/playback"
	"github.com/heimdex/heimdex-studio/internal/studio"
	"github.com/heimdex/heimdex-studio/internal/ui"
	"github.com/heimdex/heimdex-studio/internal/watcher"
)

func runServe(ctx context.Context) error {
	startTime := time.Now()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	editor := cfg.Editor()
	logger.Info("starting heimdex studio", "version", config.Version, "data_dir", cfg.DataDir(), "media_dir", cfg.MediaDir())

	deviceID, err := ensureDeviceID(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureAuthToken(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  HEIMDEX STUDIO %-57s ║\n", "v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-43d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-60s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-60s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	prober := newProber(logging.WithComponent(logger, "media"))
	opener := playback.NewProbingOpener(prober, 5*time.Second)
	svc := studio.NewService(a.repo, opener, studioOptions(editor), logger)

	var remote persist.Store
	if cfg.CloudEnabled() {
		client := cloud.NewHTTPClient(cfg.CloudURL(), cfg.CloudToken(), cfg.CloudOrg(), logger)
		client.SetDeviceID(deviceID)
		remote = client
		logger.Info("remote timeline sync enabled", "base_url", cfg.CloudURL(), "org", cfg.CloudOrg())
	} else {
		remote = cloud.NewStubClient(logger)
	}

	writer := persist.NewWriter(
		persist.Fanout{a.repo, remote},
		svc,
		persist.WriterOptions{WritesPerSecond: editor.WritesPerSecond},
		logging.WithComponent(logger, "persist"),
	)
	svc.SetPersister(writer)

	driver := studio.NewDriver(svc, editor.FrameRate, logging.WithComponent(logger, "driver"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Studio:     svc,
		Repository: a.repo,
		Writer:     writer,
		Driver:     driver,
		Files:      media.NewFileServer(logger),
		Prober:     prober,
		MediaDir:   cfg.MediaDir(),
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    config.Version,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(apiServer.Start)
	g.Go(func() error {
		writer.Start(gctx)
		return nil
	})
	g.Go(func() error {
		driver.Start(gctx)
		return nil
	})
	g.Go(func() error {
		mw := watcher.New(watcher.DefaultDebounce, logging.WithComponent(logger, "watcher"))
		mw.OnChange(func(path string, _ watcher.EventType) {
			prober.InvalidatePath(path)
		})
		if err := mw.Watch(gctx, cfg.MediaDir()); err != nil {
			logger.Warn("media watcher unavailable", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		svc.Close()
		return nil
	})

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Studio: svc,
			Driver: driver,
			Logger: logger,
			OnQuit: stop,
		})
		go tray.Run(gctx)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
