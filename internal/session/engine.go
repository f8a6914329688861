// Package session runs one live recitation-feedback session: it streams
// microphone audio to the analysis service over a websocket, interprets the
// server's events into verse/highlight state, records detected mistakes,
// and plays correction audio with voice-activity interruption.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alijeyrad/gorecite/internal/audio"
	"github.com/Alijeyrad/gorecite/internal/mistakes"
	"github.com/Alijeyrad/gorecite/internal/protocol"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosed     State = "closed"
	StateError      State = "error"
)

const (
	// flushInterval is the cadence at which buffered capture audio is sent
	// as one binary frame.
	flushInterval = 500 * time.Millisecond

	// activityPollInterval approximates one display frame. Each poll checks
	// the input signal energy for playback interruption.
	activityPollInterval = 16 * time.Millisecond

	dialTimeout = 10 * time.Second
)

// VerseContext is the verse currently being recited. Replaced wholesale on
// each verse_identified event, never mutated in place.
type VerseContext struct {
	SuraName   string
	AyahNumber int
	Words      []string
}

// Snapshot is the engine's observable state at one instant.
type Snapshot struct {
	State      State
	Verse      *VerseContext
	Highlights map[int]bool
	Mode       protocol.FeedbackMode
}

// CaptureSource provides microphone audio as raw S16LE chunks. Satisfied by
// audio.Recorder; tests inject fakes.
type CaptureSource interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop()
}

// Engine owns the session lifecycle. Zero value is not usable; populate the
// exported fields before Start.
type Engine struct {
	// Queue receives a record for every mistake_event. Required.
	Queue *mistakes.Queue

	// Player plays correction clips and feedback tones. Required.
	Player *audio.Player

	// Guard enforces exclusive microphone ownership against the
	// correct-sample workflow. Required.
	Guard *audio.Guard

	// URL is the websocket endpoint, e.g. "ws://localhost:8765/session".
	URL string

	// Dialer defaults to a websocket dialer with a 10 s handshake timeout.
	Dialer *websocket.Dialer

	// NewCapture overrides the microphone source, mainly for tests.
	NewCapture func() CaptureSource

	// OnChange receives a fresh snapshot after every observable mutation.
	OnChange func(Snapshot)

	// OnStatus receives human-readable status lines.
	OnStatus func(string)

	mu         sync.Mutex
	state      State
	mode       protocol.FeedbackMode
	verse      *VerseContext
	highlights map[int]bool
	running    bool
	capture    CaptureSource
	conn       *websocket.Conn
	cancel     context.CancelFunc
	release    func()
	readDone   chan struct{}
	wg         *sync.WaitGroup

	writeMu sync.Mutex

	bufMu     sync.Mutex
	buf       []byte
	lastChunk []byte
}

func (e *Engine) newCapture() CaptureSource {
	if e.NewCapture != nil {
		return e.NewCapture()
	}
	return &audio.Recorder{StreamName: "gorecite-session"}
}

func (e *Engine) dialer() *websocket.Dialer {
	if e.Dialer != nil {
		return e.Dialer
	}
	return &websocket.Dialer{HandshakeTimeout: dialTimeout}
}

// SetFeedbackMode changes how mistakes are surfaced. While the session is
// active the new mode is pushed to the server immediately; otherwise it
// takes effect on the next Start (mode changes are not queued).
func (e *Engine) SetFeedbackMode(mode protocol.FeedbackMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown feedback mode %q", mode)
	}
	e.mu.Lock()
	e.mode = mode
	conn := e.conn
	active := e.state == StateActive
	e.mu.Unlock()

	e.notify()
	if active && conn != nil {
		return e.sendConfig(conn, mode)
	}
	return nil
}

// Mode returns the configured feedback mode, defaulting to highlight.
func (e *Engine) Mode() protocol.FeedbackMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modeLocked()
}

func (e *Engine) modeLocked() protocol.FeedbackMode {
	if e.mode.Valid() {
		return e.mode
	}
	return protocol.ModeHighlight
}

// Start acquires the microphone, opens the channel, sends the config frame
// and begins streaming. The session does not reach active unless both the
// device and the channel open successfully.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("session already running")
	}
	e.state = StateConnecting
	e.mu.Unlock()
	e.notify()
	e.status("Connecting…")

	release, err := e.Guard.Acquire("live session")
	if err != nil {
		e.fail(StateIdle, err)
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	capture := e.newCapture()
	chunks, err := capture.Start(sctx)
	if err != nil {
		cancel()
		release()
		err = fmt.Errorf("opening microphone: %w", err)
		e.fail(StateIdle, err)
		return err
	}

	conn, _, err := e.dialer().DialContext(sctx, e.URL, nil)
	if err != nil {
		cancel()
		capture.Stop()
		drain(chunks)
		release()
		err = fmt.Errorf("opening session channel: %w", err)
		e.fail(StateError, err)
		return err
	}

	if err := e.sendConfig(conn, e.Mode()); err != nil {
		cancel()
		capture.Stop()
		drain(chunks)
		conn.Close() //nolint:errcheck
		release()
		e.fail(StateError, err)
		return err
	}

	wg := &sync.WaitGroup{}
	readDone := make(chan struct{})

	e.mu.Lock()
	e.running = true
	e.state = StateActive
	e.capture = capture
	e.conn = conn
	e.cancel = cancel
	e.release = release
	e.readDone = readDone
	e.wg = wg
	e.verse = nil
	e.highlights = nil
	e.bufMu.Lock()
	e.buf = nil
	e.lastChunk = nil
	e.bufMu.Unlock()
	e.mu.Unlock()
	e.notify()
	e.status("Listening…")

	wg.Add(3)
	go e.collectLoop(wg, chunks)
	go e.flushLoop(sctx, wg, conn)
	go e.activityLoop(sctx, wg)
	go e.readLoop(conn, readDone)
	return nil
}

// Stop tears the session down to idle. Idempotent; also normalizes a
// closed or errored session back to idle.
func (e *Engine) Stop() {
	if e.teardown(StateIdle, nil) {
		return
	}
	e.mu.Lock()
	reset := e.state == StateClosed || e.state == StateError
	if reset {
		e.state = StateIdle
	}
	e.mu.Unlock()
	if reset {
		e.notify()
	}
}

// Snapshot returns a copy of the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{State: e.state, Mode: e.modeLocked()}
	if e.state == "" {
		snap.State = StateIdle
	}
	if e.verse != nil {
		v := *e.verse
		v.Words = append([]string(nil), e.verse.Words...)
		snap.Verse = &v
	}
	if e.highlights != nil {
		snap.Highlights = make(map[int]bool, len(e.highlights))
		for k := range e.highlights {
			snap.Highlights[k] = true
		}
	}
	return snap
}

// teardown releases everything the session holds, in bounded steps: halt
// capture, flush the residual buffer, close the channel, cancel the poll
// loops, stop playback, release the device. Returns false when no session
// was running. cause, when non-nil, selects StateError over final.
func (e *Engine) teardown(final State, cause error) bool {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return false
	}
	e.running = false
	capture, conn := e.capture, e.conn
	cancel, release := e.cancel, e.release
	readDone, wg := e.readDone, e.wg
	e.capture, e.conn, e.cancel, e.release = nil, nil, nil, nil
	e.readDone, e.wg = nil, nil
	e.mu.Unlock()

	cancel()
	capture.Stop()
	wg.Wait()

	// Final flush of any residual audio before the channel goes away.
	e.flush(conn)

	e.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	e.writeMu.Unlock()
	conn.Close() //nolint:errcheck
	<-readDone

	e.Player.Stop()
	release()

	if cause != nil {
		final = StateError
	}
	e.mu.Lock()
	e.verse = nil
	e.highlights = nil
	e.state = final
	e.mu.Unlock()
	e.notify()

	switch {
	case cause != nil:
		e.status(fmt.Sprintf("Session lost: %v", cause))
	case final == StateClosed:
		e.status("Session closed by server")
	default:
		e.status("Stopped")
	}
	return true
}

// collectLoop drains capture chunks into the frame buffer and keeps the
// most recent chunk for the activity monitor.
func (e *Engine) collectLoop(wg *sync.WaitGroup, chunks <-chan []byte) {
	defer wg.Done()
	for chunk := range chunks {
		e.bufMu.Lock()
		e.buf = append(e.buf, chunk...)
		e.lastChunk = chunk
		e.bufMu.Unlock()
	}
}

// flushLoop sends the buffered audio every flushInterval.
func (e *Engine) flushLoop(ctx context.Context, wg *sync.WaitGroup, conn *websocket.Conn) {
	defer wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.flush(conn)
		case <-ctx.Done():
			return
		}
	}
}

// flush sends everything buffered as one WAV-wrapped binary frame. The
// buffer is cleared whether or not the write succeeds: the stream is
// continuous and redundant, so dropped frames are never retried.
func (e *Engine) flush(conn *websocket.Conn) {
	e.bufMu.Lock()
	pcm := e.buf
	e.buf = nil
	e.bufMu.Unlock()
	if len(pcm) == 0 {
		return
	}

	frame := audio.EncodeWAV(pcm, audio.SampleRate)
	e.writeMu.Lock()
	conn.WriteMessage(websocket.BinaryMessage, frame) //nolint:errcheck
	e.writeMu.Unlock()
}

// activityLoop interrupts correction playback when the user speaks over it.
// Best-effort: ambient noise may trip it, quiet speech may not.
func (e *Engine) activityLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(activityPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.bufMu.Lock()
			chunk := e.lastChunk
			e.bufMu.Unlock()
			if len(chunk) == 0 || !e.Player.Playing() {
				continue
			}
			if audio.MeanMagnitude(chunk) > audio.ActivityThreshold {
				e.Player.Stop()
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop processes server events in delivery order until the channel
// drops, then drives teardown with the appropriate final state.
func (e *Engine) readLoop(conn *websocket.Conn, done chan struct{}) {
	var cause error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cause = err
			}
			break
		}
		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			// Unknown and malformed events are tolerated, not fatal.
			continue
		}
		e.handleEvent(ev)
	}
	close(done)

	// Teardown waits on done, so a locally initiated close reaches this
	// point with running already false and teardown a no-op.
	go e.teardown(StateClosed, cause)
}

func (e *Engine) handleEvent(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.VerseIdentified:
		e.mu.Lock()
		e.verse = &VerseContext{
			SuraName:   ev.SuraName,
			AyahNumber: ev.AyahNumber,
			Words:      protocol.SplitWords(ev.AyahText),
		}
		e.highlights = nil
		e.mu.Unlock()
		e.notify()
		e.status(fmt.Sprintf("Reciting %s, ayah %d", ev.SuraName, ev.AyahNumber))

	case protocol.DiffUpdate:
		e.mu.Lock()
		e.highlights = protocol.Highlights(ev.Diff)
		e.mu.Unlock()
		e.notify()

	case protocol.MistakeEvent:
		e.recordMistake(ev)
		e.playFeedback(ev)
	}
}

func (e *Engine) recordMistake(ev protocol.MistakeEvent) {
	var sura, aya string
	e.mu.Lock()
	if e.verse != nil {
		sura = e.verse.SuraName
		aya = strconv.Itoa(e.verse.AyahNumber)
	}
	e.mu.Unlock()

	_, err := e.Queue.Add(mistakes.NewRecord{
		Sura:               sura,
		Aya:                aya,
		MistakeType:        ev.MistakeType,
		TranscribedSegment: ev.TranscribedSegment,
		ReferenceSegment:   ev.ReferenceSegment,
	})
	if err != nil {
		e.status(fmt.Sprintf("Could not save mistake: %v", err))
	}
}

func (e *Engine) playFeedback(ev protocol.MistakeEvent) {
	switch e.Mode() {
	case protocol.ModeBeep:
		e.Player.PlayPCM(audio.BeepTone(), audio.SampleRate)
	case protocol.ModeSpoken:
		if ev.CorrectionAudioB64 == "" {
			return
		}
		clip, err := base64.StdEncoding.DecodeString(ev.CorrectionAudioB64)
		if err != nil {
			e.status("Correction audio is corrupt")
			return
		}
		if err := e.Player.Play(clip); err != nil {
			e.status(fmt.Sprintf("Could not play correction: %v", err))
		}
	}
}

func (e *Engine) sendConfig(conn *websocket.Conn, mode protocol.FeedbackMode) error {
	data, err := json.Marshal(protocol.NewClientConfig(mode))
	if err != nil {
		return fmt.Errorf("encoding config frame: %w", err)
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending config frame: %w", err)
	}
	return nil
}

// fail publishes an aborted startup.
func (e *Engine) fail(final State, err error) {
	e.mu.Lock()
	e.state = final
	e.mu.Unlock()
	e.notify()
	e.status(fmt.Sprintf("Could not start session: %v", err))
}

func (e *Engine) notify() {
	if e.OnChange == nil {
		return
	}
	e.mu.Lock()
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.OnChange(snap)
}

func (e *Engine) status(msg string) {
	if e.OnStatus != nil {
		e.OnStatus(msg)
	}
}

func drain(ch <-chan []byte) {
	for range ch {
	}
}
