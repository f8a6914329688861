package audio

import "encoding/binary"

// MeanMagnitude computes the mean absolute amplitude of 16-bit little-endian
// PCM. A time-domain stand-in for spectral mean energy: good enough to tell
// "someone is speaking" from room tone, which is all the activity monitor
// needs.
func MeanMagnitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return sum / float64(n)
}
