package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	wavHeaderSize  = 44
	bitsPerSample  = 16
	channels       = 1
	pcmFormat      = 1
	fmtChunkLength = 16

	// PlaceholderSampleRate matches the common TTS output rate.
	PlaceholderSampleRate = 24000
	PlaceholderDuration   = 500 * time.Millisecond
)

var ErrInvalidWAV = errors.New("invalid wav container")

// EncodeWAV wraps mono 16-bit little-endian PCM in a 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	dataLen := len(pcm)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	header := make([]byte, wavHeaderSize, wavHeaderSize+dataLen)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkLength)
	binary.LittleEndian.PutUint16(header[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// WAVInfo describes a decoded container.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DecodeWAV parses the fixed 44-byte layout written by EncodeWAV and returns
// the PCM payload.
func DecodeWAV(data []byte) (WAVInfo, []byte, error) {
	if len(data) < wavHeaderSize {
		return WAVInfo{}, nil, fmt.Errorf("%w: %d bytes", ErrInvalidWAV, len(data))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing RIFF/WAVE tag", ErrInvalidWAV)
	}
	if !bytes.Equal(data[12:16], []byte("fmt ")) || binary.LittleEndian.Uint32(data[16:20]) != fmtChunkLength {
		return WAVInfo{}, nil, fmt.Errorf("%w: unexpected fmt chunk", ErrInvalidWAV)
	}
	if binary.LittleEndian.Uint16(data[20:22]) != pcmFormat {
		return WAVInfo{}, nil, fmt.Errorf("%w: not PCM", ErrInvalidWAV)
	}
	if !bytes.Equal(data[36:40], []byte("data")) {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}

	info := WAVInfo{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
	}
	size := int(binary.LittleEndian.Uint32(data[40:44]))
	if size > len(data)-wavHeaderSize {
		return WAVInfo{}, nil, fmt.Errorf("%w: data chunk truncated", ErrInvalidWAV)
	}
	return info, data[wavHeaderSize : wavHeaderSize+size], nil
}

// Silence returns a WAV holding d of silence.
func Silence(sampleRate int, d time.Duration) []byte {
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return EncodeWAV(make([]byte, samples*channels*bitsPerSample/8), sampleRate)
}
