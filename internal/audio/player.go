package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Sink plays one decoded PCM clip, returning on completion or when ctx is
// cancelled. The production sink is PulseAudio; tests inject fakes.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Player runs at most one correction clip at a time. Starting a new clip
// replaces the active one as a single operation: the previous source is
// stopped and fully released before the new one starts. Natural completion
// and interruption share the same teardown.
type Player struct {
	// Sink is the playback output. Defaults to PulseSink.
	Sink Sink

	// OnError is called with asynchronous playback failures, if set.
	OnError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Player) sink() Sink {
	if p.Sink != nil {
		return p.Sink
	}
	return PulseSink{}
}

// Play decodes a WAV clip and starts it, replacing any active clip.
// A decode failure leaves the player state untouched.
func (p *Player) Play(clip []byte) error {
	pcm, rate, err := DecodeWAV(clip)
	if err != nil {
		return err
	}
	p.PlayPCM(pcm, rate)
	return nil
}

// PlayPCM starts raw PCM, replacing any active clip.
func (p *Player) PlayPCM(pcm []byte, sampleRate int) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone // previous source fully released before the new one starts
	}

	go func() {
		defer close(done)
		err := p.sink().Play(ctx, pcm, sampleRate)

		p.mu.Lock()
		if p.done == done {
			p.cancel = nil
			p.done = nil
		}
		p.mu.Unlock()

		if err != nil && ctx.Err() == nil && p.OnError != nil {
			p.OnError(err)
		}
	}()
}

// Stop interrupts the active clip, if any, and waits for its release.
// Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Playing reports whether a clip is currently active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// PulseSink plays clips through the default PulseAudio sink.
type PulseSink struct{}

func (PulseSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("GoRecite"),
	)
	if err != nil {
		return fmt.Errorf("connecting to PulseAudio: %w", err)
	}
	defer client.Close()

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}

	pos := 0
	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		if ctx.Err() != nil || pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(out, samples[pos:])
		pos += n
		return n, nil
	})

	stream, err := client.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackMediaName("GoRecite correction"),
	)
	if err != nil {
		return fmt.Errorf("creating playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
