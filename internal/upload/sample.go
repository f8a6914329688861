package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Alijeyrad/gorecite/internal/audio"
)

// Recorder captures microphone audio as raw S16LE chunks. Satisfied by
// audio.Recorder; tests inject a fake.
type Recorder interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop()
}

// SampleSession records one correct-pronunciation sample for a single
// mistake and uploads it. The session owns its microphone stream through
// the shared device guard: starting one while the live session holds the
// device fails rather than sharing the stream. The device is released on
// every exit path, whether or not the upload succeeds.
type SampleSession struct {
	Client *Client
	Log    *Log
	Guard  *audio.Guard

	// MistakeID and ReferenceText identify the segment being re-recorded.
	MistakeID     string
	ReferenceText string

	// NewRecorder overrides the capture source, mainly for tests.
	NewRecorder func() Recorder

	mu       sync.Mutex
	recorder Recorder
	cancel   context.CancelFunc
	release  func()
	done     chan struct{}
	pcm      []byte
	started  bool
}

func (s *SampleSession) newRecorder() Recorder {
	if s.NewRecorder != nil {
		return s.NewRecorder()
	}
	return &audio.Recorder{StreamName: "gorecite-sample"}
}

// Start acquires the microphone and begins buffering audio.
func (s *SampleSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("sample recording already in progress")
	}

	release, err := s.Guard.Acquire("correction sample")
	if err != nil {
		return err
	}
	rec := s.newRecorder()
	cctx, cancel := context.WithCancel(ctx)
	ch, err := rec.Start(cctx)
	if err != nil {
		cancel()
		release()
		return fmt.Errorf("starting sample recorder: %w", err)
	}

	s.recorder = rec
	s.cancel = cancel
	s.release = release
	s.done = make(chan struct{})
	s.pcm = nil
	s.started = true

	done := s.done
	go func() {
		for chunk := range ch {
			s.mu.Lock()
			s.pcm = append(s.pcm, chunk...)
			s.mu.Unlock()
		}
		close(done)
	}()
	return nil
}

// finish stops capture, waits for the collector to drain, releases the
// device, and returns the buffered audio. Safe to call when capture has
// already stopped.
func (s *SampleSession) finish() []byte {
	s.mu.Lock()
	if !s.started {
		pcm := s.pcm
		s.mu.Unlock()
		return pcm
	}
	rec, cancel, release, done := s.recorder, s.cancel, s.release, s.done
	s.recorder, s.cancel, s.release, s.done = nil, nil, nil, nil
	s.started = false
	s.mu.Unlock()

	cancel()
	rec.Stop()
	<-done
	release()

	s.mu.Lock()
	pcm := s.pcm
	s.mu.Unlock()
	return pcm
}

// Stop ends the recording and uploads it as a correct-recitation sample.
// The device is released before the upload is attempted; on upload failure
// the buffered audio is retained so Stop can be called again to retry.
func (s *SampleSession) Stop(ctx context.Context) (TrainingUploadRecord, error) {
	pcm := s.finish()
	if len(pcm) == 0 {
		return TrainingUploadRecord{}, errors.New("no audio captured")
	}

	req := Request{
		Kind:          KindCorrectSample,
		Filename:      fmt.Sprintf("correct_sample_%s.wav", s.MistakeID),
		MediaType:     "audio/wav",
		Data:          audio.EncodeWAV(pcm, audio.SampleRate),
		ReferenceText: s.ReferenceText,
		MistakeID:     s.MistakeID,
	}
	if _, err := s.Client.Upload(ctx, req); err != nil {
		return TrainingUploadRecord{}, err
	}
	logged, err := s.Log.Append(req)
	if err != nil {
		return TrainingUploadRecord{}, err
	}
	s.mu.Lock()
	s.pcm = nil
	s.mu.Unlock()
	return logged, nil
}

// Cancel ends the recording and discards it without uploading.
func (s *SampleSession) Cancel() {
	s.finish()
	s.mu.Lock()
	s.pcm = nil
	s.mu.Unlock()
}

// Recording reports whether the microphone is currently held.
func (s *SampleSession) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
