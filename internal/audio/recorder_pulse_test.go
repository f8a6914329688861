//go:build pulsetest

package audio_test

import (
	"context"
	"testing"
	"time"

	"github.com/Alijeyrad/gorecite/internal/audio"
)

// These tests need a running PulseAudio daemon (a null sink is fine).

func TestRecorderStartStop(t *testing.T) {
	r := &audio.Recorder{}
	ch, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	count := 0
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
loop:
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				break loop
			}
			count++
			if count >= 3 {
				break loop
			}
		case <-timer.C:
			break loop
		}
	}

	r.Stop()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("channel did not close within 500ms after Stop()")
	}
}

func TestRecorderStopIdempotent(t *testing.T) {
	r := &audio.Recorder{}
	r.Stop() // never started
	ch, err := r.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	r.Stop()
	r.Stop()
	for range ch {
	}
}

func TestRecorderChunkFormat(t *testing.T) {
	r := &audio.Recorder{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := r.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer r.Stop()

	select {
	case chunk, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before any chunk received")
		}
		if len(chunk)%2 != 0 {
			t.Errorf("chunk length %d is not a multiple of 2 (expected S16LE pairs)", len(chunk))
		}
	case <-time.After(2 * time.Second):
		t.Skip("no audio chunk received within timeout (no audio device?)")
	}
}
