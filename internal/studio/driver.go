package studio

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const DefaultFrameRate = 30

// Driver ticks every open session once per frame.
type Driver struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	running  atomic.Bool
	paused   atomic.Bool
}

func NewDriver(service *Service, frameRate int, logger *slog.Logger) *Driver {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Driver{
		service:  service,
		interval: time.Second / time.Duration(frameRate),
		logger:   logger,
	}
}

func (d *Driver) Start(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}

	d.logger.Info("session driver started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("session driver stopping")
			d.running.Store(false)
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if !d.paused.Load() {
				d.tickAll(ctx, dt)
			}
		}
	}
}

func (d *Driver) tickAll(ctx context.Context, dt float64) {
	for _, sess := range d.service.Sessions() {
		if err := d.tick(ctx, sess, dt); err != nil {
			d.logger.Error("session tick failed", "project_id", sess.ID(), "error", err)
		}
	}
}

// tick keeps a panicking session from stopping the others.
func (d *Driver) tick(ctx context.Context, sess *Session, dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	sess.Tick(ctx, dt)
	return nil
}

func (d *Driver) Pause() {
	d.paused.Store(true)
	d.logger.Info("session driver paused")
}

func (d *Driver) Resume() {
	d.paused.Store(false)
	d.logger.Info("session driver resumed")
}

func (d *Driver) IsPaused() bool {
	return d.paused.Load()
}

func (d *Driver) IsRunning() bool {
	return d.running.Load()
}
