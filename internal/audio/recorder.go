package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Recorder captures S16LE mono PCM from the default PulseAudio source and
// delivers it as chunks on a channel.
type Recorder struct {
	// StreamName labels the stream in the PulseAudio mixer. Defaults to
	// "GoRecite".
	StreamName string

	client *pulse.Client
	stream *pulse.RecordStream
	cancel context.CancelFunc
}

// chunkWriter implements pulse.Writer, copying raw S16LE bytes onto a channel.
type chunkWriter struct {
	ch  chan<- []byte
	ctx context.Context
}

func (w *chunkWriter) Write(buf []byte) (int, error) {
	chunk := make([]byte, len(buf))
	copy(chunk, buf)
	select {
	case w.ch <- chunk:
		return len(buf), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}

func (w *chunkWriter) Format() byte { return proto.FormatInt16LE }

func (r *Recorder) name() string {
	if r.StreamName != "" {
		return r.StreamName
	}
	return "GoRecite"
}

// Start acquires the microphone and begins capture. The returned channel
// closes once capture fully stops and the device is released.
func (r *Recorder) Start(ctx context.Context) (<-chan []byte, error) {
	r.Stop()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	client, err := pulse.NewClient(
		pulse.ClientApplicationName(r.name()),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to PulseAudio: %w", err)
	}

	ch := make(chan []byte, 16)
	w := &chunkWriter{ch: ch, ctx: ctx}

	stream, err := client.NewRecord(w,
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordMediaName(r.name()),
	)
	if err != nil {
		client.Close()
		cancel()
		return nil, fmt.Errorf("creating record stream: %w", err)
	}

	stream.Start()
	r.client = client
	r.stream = stream

	go func() {
		defer close(ch)
		<-ctx.Done()
		stream.Stop()
		stream.Close()
		client.Close()
	}()

	return ch, nil
}

// Stop halts capture and releases the device. Safe to call when idle.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
