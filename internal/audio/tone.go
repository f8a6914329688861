package audio

import (
	"math"
	"time"
)

const (
	beepFrequencyHz = 880
	beepDuration    = 180 * time.Millisecond
	beepAmplitude   = 0.25
)

// BeepTone synthesizes the short S16LE sine tone played in "beep" feedback
// mode.
func BeepTone() []byte {
	return sinePCM(beepFrequencyHz, SampleRate, beepDuration, beepAmplitude)
}

func sinePCM(freqHz, sampleRate int, d time.Duration, amp float64) []byte {
	samples := int(float64(sampleRate) * d.Seconds())
	if samples <= 0 {
		return nil
	}
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(sampleRate)
		v := amp * math.Sin(2*math.Pi*float64(freqHz)*t)
		s := int16(v * 32767.0)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
