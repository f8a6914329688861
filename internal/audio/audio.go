// Package audio owns everything that touches the sound device: microphone
// capture, correction-clip playback, the WAV container codec, signal-energy
// measurement and the exclusive-device guard.
package audio

import "errors"

const (
	// SampleRate is the capture and playback rate in Hz. S16LE mono throughout.
	SampleRate = 16000

	// ActivityThreshold is the mean |sample| magnitude above which the input
	// signal counts as user speech for playback interruption.
	ActivityThreshold = 1200.0
)

var (
	// ErrDeviceBusy is returned when the microphone is already held by
	// another capture session.
	ErrDeviceBusy = errors.New("microphone already in use")

	// ErrDecode marks correction audio that cannot be decoded. Non-fatal:
	// playback state is left cleared.
	ErrDecode = errors.New("undecodable audio")
)
