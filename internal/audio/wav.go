package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps raw 16-bit mono PCM in a WAV container at the given rate.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	size := uint32(len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, size+36) //nolint:errcheck
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))             //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(1))              //nolint:errcheck // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))              //nolint:errcheck // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))     //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))   //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(2))              //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(16))             //nolint:errcheck
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, size) //nolint:errcheck
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV extracts 16-bit mono PCM and its sample rate from a WAV
// container. Anything that is not plain 16-bit PCM returns ErrDecode.
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE container", ErrDecode)
	}

	var (
		format        uint16
		channels      uint16
		bitsPerSample uint16
		rate          uint32
		sawFmt        bool
	)

	// Walk the chunk list; tolerate chunks we do not know.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated %q chunk", ErrDecode, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrDecode)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			rate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			sawFmt = true
		case "data":
			if !sawFmt {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt", ErrDecode)
			}
			if format != 1 || channels != 1 || bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("%w: want 16-bit mono PCM, got format=%d channels=%d bits=%d",
					ErrDecode, format, channels, bitsPerSample)
			}
			if rate == 0 {
				return nil, 0, fmt.Errorf("%w: zero sample rate", ErrDecode)
			}
			return data[body : body+size], int(rate), nil
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	return nil, 0, fmt.Errorf("%w: no data chunk", ErrDecode)
}
