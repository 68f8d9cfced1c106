package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/heimdex/heimdex-studio/internal/config"
	"github.com/heimdex/heimdex-studio/internal/db"
	"github.com/heimdex/heimdex-studio/internal/logging"
	"github.com/heimdex/heimdex-studio/internal/media"
	"github.com/heimdex/heimdex-studio/internal/playback"
	"github.com/heimdex/heimdex-studio/internal/store"
	"github.com/heimdex/heimdex-studio/internal/studio"
)

// app holds what every subcommand needs: configuration, logging and the
// project store.
type app struct {
	cfg      *config.EnvConfig
	logger   *slog.Logger
	database *db.DB
	repo     *store.SQLiteRepository
}

func openApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     store.NewRepository(database.Conn()),
	}, nil
}

func (a *app) Close() error {
	return a.database.Close()
}

// newProber checks http(s) media with HEAD requests and local media on disk
// through ffprobe when installed, caching successful answers.
func newProber(logger *slog.Logger) *media.CachedProber {
	scheme := &media.SchemeProber{
		HTTP: media.NewHTTPProber(10*time.Second, logger),
		File: media.NewFFProbe(logger),
	}
	return media.NewCachedProber(scheme, 0, logger)
}

func studioOptions(ed config.EditorSettings) studio.Options {
	opts := studio.DefaultOptions()
	opts.Interaction.SnapTolerance = ed.SnapTolerance
	opts.Interaction.MinDuration = ed.MinClipDuration
	opts.Interaction.TrackAreaWidthPx = ed.TrackAreaWidth
	opts.Playback.Tolerance = ed.SyncTolerance
	opts.Playback.DuckingLevel = ed.DuckingLevel

	luts := maps.Clone(playback.DefaultLUTs)
	maps.Copy(luts, ed.LUTs)
	opts.Playback.LUTs = luts

	opts.Loop = ed.Loop
	opts.SceneDuration = ed.SceneDuration
	opts.NoticeLimit = ed.NoticeLimit
	return opts
}

func ensureDeviceID(ctx context.Context, repo store.Repository) (string, error) {
	return ensureSecret(ctx, repo, "device_id", 16)
}

func ensureAuthToken(ctx context.Context, repo store.Repository) (string, error) {
	return ensureSecret(ctx, repo, "auth_token", 32)
}

// ensureSecret returns the stored value for key, generating and storing n
// random bytes as hex the first time.
func ensureSecret(ctx context.Context, repo store.Repository, key string, n int) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
