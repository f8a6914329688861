// Package ui is the desktop surface: a system-tray menu with a status line,
// a mistake-review window and a settings window.
package ui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"

	"github.com/Alijeyrad/gorecite/internal/config"
)

type Tray struct {
	fyneApp    fyne.App
	menu       *fyne.Menu
	statusItem *fyne.MenuItem
	toggleItem *fyne.MenuItem

	settingsWin fyne.Window // non-nil while the settings window is open
	mistakesWin fyne.Window // non-nil while the review window is open

	cfgMu sync.RWMutex
	cfg   *config.Config

	// OnToggle starts or stops the listening session.
	OnToggle func()

	// OnSettingsSave persists and applies a new configuration.
	OnSettingsSave func(*config.Config)

	// Mistakes backs the review window.
	Mistakes MistakeActions
}

func (t *Tray) Run(cfg *config.Config, onQuit func()) {
	t.cfgMu.Lock()
	t.cfg = cfg
	t.cfgMu.Unlock()

	a := app.NewWithID("com.alijeyrad.GoRecite")
	t.fyneApp = a

	t.statusItem = fyne.NewMenuItem("Idle", nil)
	t.statusItem.Disabled = true
	t.toggleItem = fyne.NewMenuItem("Start Listening", func() {
		if t.OnToggle != nil {
			t.OnToggle()
		}
	})

	mistakesItem := fyne.NewMenuItem("Mistakes…", func() {
		if t.mistakesWin != nil {
			t.mistakesWin.Show()
			t.mistakesWin.RequestFocus()
			return
		}
		win := showMistakesWindow(t.fyneApp, t.Mistakes)
		t.mistakesWin = win
		win.SetOnClosed(func() { t.mistakesWin = nil })
	})

	settingsItem := fyne.NewMenuItem("Settings…", func() {
		if t.OnSettingsSave == nil {
			return
		}
		if t.settingsWin != nil {
			t.settingsWin.Show()
			t.settingsWin.RequestFocus()
			return
		}
		t.cfgMu.RLock()
		current := t.cfg
		t.cfgMu.RUnlock()
		win := showSettingsWindow(t.fyneApp, current, t.OnSettingsSave)
		t.settingsWin = win
		win.SetOnClosed(func() { t.settingsWin = nil })
	})

	t.menu = fyne.NewMenu("GoRecite",
		t.statusItem,
		fyne.NewMenuItemSeparator(),
		t.toggleItem,
		mistakesItem,
		settingsItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			onQuit()
			a.Quit()
		}),
	)

	if desk, ok := a.(desktop.App); ok {
		desk.SetSystemTrayMenu(t.menu)
		desk.SetSystemTrayIcon(theme.MediaRecordIcon())
	}

	a.Run()
}

// UpdateConfig swaps the baseline shown when the settings window opens next.
func (t *Tray) UpdateConfig(cfg *config.Config) {
	t.cfgMu.Lock()
	t.cfg = cfg
	t.cfgMu.Unlock()
}

// SetStatus replaces the status line. Safe to call from any goroutine.
func (t *Tray) SetStatus(msg string) {
	if t.statusItem == nil {
		return
	}
	fyne.Do(func() {
		t.statusItem.Label = msg
		t.menu.Refresh()
	})
}

// SetListening flips the toggle entry between start and stop.
func (t *Tray) SetListening(listening bool) {
	if t.toggleItem == nil {
		return
	}
	fyne.Do(func() {
		if listening {
			t.toggleItem.Label = "Stop Listening"
		} else {
			t.toggleItem.Label = "Start Listening"
		}
		t.menu.Refresh()
	})
}
