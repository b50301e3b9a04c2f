package tts

import (
	"encoding/binary"
	"errors"
	"time"
)

var ErrNotWAV = errors.New("not a WAV")

// Format is what the RIFF header says about a WAV payload.
type Format struct {
	Channels   int
	SampleRate int
	Bits       int
	DataLen    int
}

func (f Format) Duration() time.Duration {
	bytesPerSec := f.SampleRate * f.Channels * f.Bits / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(f.DataLen) * time.Second / time.Duration(bytesPerSec)
}

// parseWAV walks the RIFF chunks up to the data chunk. Streamed WAVs often
// carry a placeholder data size, so the length is clamped to what is
// actually present.
func parseWAV(b []byte) (Format, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Format{}, ErrNotWAV
	}
	var f Format
	seenFmt := false
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		switch id {
		case "fmt ":
			if size < 16 || off+16 > len(b) {
				return Format{}, ErrNotWAV
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[off+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[off+4:]))
			f.Bits = int(binary.LittleEndian.Uint16(b[off+14:]))
			seenFmt = true
		case "data":
			if !seenFmt {
				return Format{}, ErrNotWAV
			}
			if size < 0 || off+size > len(b) {
				size = len(b) - off
			}
			f.DataLen = size
			return f, nil
		}
		off += size + size%2
	}
	return Format{}, ErrNotWAV
}
