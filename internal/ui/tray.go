package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-studio/internal/studio"
)

const refreshInterval = 2 * time.Second

type Tray struct {
	studio *studio.Service
	driver *studio.Driver
	logger *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Studio *studio.Service
	Driver *studio.Driver
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		studio: cfg.Studio,
		driver: cfg.Driver,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
	}
}

// Run blocks until the tray exits. ctx stops the status refresher.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Studio")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Playback status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Open projects: 0", "Projects open in the editor")
	t.sessionsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause playback", "Pause every project and stop rendering frames")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Studio")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.driver == nil {
		return
	}

	if t.driver.IsPaused() {
		t.driver.Resume()
		t.pauseItem.SetTitle("Pause playback")
	} else {
		t.studio.PauseAll()
		t.driver.Pause()
		t.pauseItem.SetTitle("Resume playback")
	}
	t.refreshLocked()
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshLocked()
}

func (t *Tray) refreshLocked() {
	paused := t.driver != nil && t.driver.IsPaused()
	st := t.studio.Status()
	t.statusItem.SetTitle(statusLine(st, paused))
	t.sessionsItem.SetTitle(fmt.Sprintf("Open projects: %d", st.OpenSessions))
}

func statusLine(st studio.Status, paused bool) string {
	switch {
	case paused:
		return "Status: Paused"
	case st.Playing == 1:
		return "Status: Playing"
	case st.Playing > 1:
		return fmt.Sprintf("Status: Playing (%d projects)", st.Playing)
	}
	return "Status: Idle"
}

func (t *Tray) Quit() {
	systray.Quit()
}
