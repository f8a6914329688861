package main

import (
	"context"
	"log"
	"sync"

	"github.com/Alijeyrad/gorecite/internal/audio"
	"github.com/Alijeyrad/gorecite/internal/config"
	"github.com/Alijeyrad/gorecite/internal/hotkey"
	"github.com/Alijeyrad/gorecite/internal/mistakes"
	"github.com/Alijeyrad/gorecite/internal/session"
	"github.com/Alijeyrad/gorecite/internal/store"
	"github.com/Alijeyrad/gorecite/internal/ui"
	"github.com/Alijeyrad/gorecite/internal/upload"
)

type app struct {
	cfgMu  sync.RWMutex
	cfg    *config.Config
	userID string

	engine  *session.Engine
	queue   *mistakes.Queue
	syncer  *mistakes.Syncer
	uploads *upload.Log
	guard   *audio.Guard
	tray    *ui.Tray

	hkmMu sync.Mutex
	hkm   *hotkey.Manager
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	st, err := store.Open(config.Dir())
	if err != nil {
		log.Fatalf("opening durable store: %v", err)
	}
	userID, err := store.UserID(st)
	if err != nil {
		log.Fatalf("loading user id: %v", err)
	}
	queue, err := mistakes.Load(st)
	if err != nil {
		log.Fatalf("loading mistake queue: %v", err)
	}
	uploads, err := upload.LoadLog(st)
	if err != nil {
		log.Fatalf("loading upload log: %v", err)
	}

	a := &app{
		cfg:     cfg,
		userID:  userID,
		queue:   queue,
		uploads: uploads,
		guard:   &audio.Guard{},
		tray:    &ui.Tray{},
	}

	a.engine = &session.Engine{
		Queue:  queue,
		Player: &audio.Player{},
		Guard:  a.guard,
		OnStatus: func(msg string) {
			a.tray.SetStatus(msg)
		},
		OnChange: func(snap session.Snapshot) {
			a.tray.SetListening(snap.State == session.StateConnecting ||
				snap.State == session.StateActive)
		},
	}
	a.engine.Player.OnError = func(err error) {
		a.tray.SetStatus("Playback error: " + err.Error())
	}
	a.engine.SetFeedbackMode(cfg.FeedbackMode) //nolint:errcheck

	a.syncer = &mistakes.Syncer{
		Queue:    queue,
		Endpoint: a.syncURL(),
		OnStatus: func(msg string) { a.tray.SetStatus(msg) },
	}
	a.syncer.Start()

	var startupErr error
	hkm, err := hotkey.Listen(cfg.Hotkey, a.toggleListening)
	if err != nil {
		startupErr = err
	} else {
		a.hkmMu.Lock()
		a.hkm = hkm
		a.hkmMu.Unlock()
	}

	a.tray.OnToggle = a.toggleListening
	a.tray.OnSettingsSave = a.applySettings
	a.tray.Mistakes = ui.MistakeActions{
		Records:          queue.Records,
		Verify:           queue.Verify,
		NewSampleSession: a.newSampleSession,
	}

	if startupErr != nil {
		go a.tray.SetStatus("Hotkey unavailable — check Settings")
	}

	a.tray.Run(cfg, func() {
		a.engine.Stop()
		a.syncer.Stop()
		a.hkmMu.Lock()
		if a.hkm != nil {
			a.hkm.Stop()
		}
		a.hkmMu.Unlock()
	})
}

func (a *app) syncURL() string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg.APIBaseURL + "/api/mistakes/sync?user_id=" + a.userID
}

func (a *app) socketURL() string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg.SocketURL + "?user_id=" + a.userID
}

func (a *app) newSampleSession(rec mistakes.Record) *upload.SampleSession {
	a.cfgMu.RLock()
	base := a.cfg.APIBaseURL
	a.cfgMu.RUnlock()
	return &upload.SampleSession{
		Client:        &upload.Client{BaseURL: base},
		Log:           a.uploads,
		Guard:         a.guard,
		MistakeID:     rec.ID,
		ReferenceText: rec.ReferenceSegment,
	}
}

func (a *app) toggleListening() {
	switch a.engine.Snapshot().State {
	case session.StateConnecting, session.StateActive:
		a.engine.Stop()
	default:
		go func() {
			a.engine.URL = a.socketURL()
			a.engine.Start(context.Background()) //nolint:errcheck
		}()
	}
}

func (a *app) applySettings(newCfg *config.Config) {
	newCfg.Save() //nolint:errcheck

	a.cfgMu.RLock()
	oldHotkey := a.cfg.Hotkey
	a.cfgMu.RUnlock()

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.cfgMu.Unlock()
	a.tray.UpdateConfig(newCfg)

	// Pushed to the server immediately when a session is active; otherwise
	// it applies on the next start.
	if err := a.engine.SetFeedbackMode(newCfg.FeedbackMode); err != nil {
		a.tray.SetStatus("Feedback mode not applied: " + err.Error())
	}
	a.syncer.Endpoint = a.syncURL()

	if newCfg.Hotkey != oldHotkey {
		a.rebindHotkey(newCfg.Hotkey)
	}
}

func (a *app) rebindHotkey(newHotkey string) {
	a.hkmMu.Lock()
	defer a.hkmMu.Unlock()

	if a.hkm != nil {
		if err := a.hkm.Rebind(newHotkey); err != nil {
			a.tray.SetStatus("Hotkey invalid: " + newHotkey)
		}
		return
	}
	hkm, err := hotkey.Listen(newHotkey, a.toggleListening)
	if err != nil {
		a.tray.SetStatus("Hotkey invalid: " + newHotkey)
		return
	}
	a.hkm = hkm
}
