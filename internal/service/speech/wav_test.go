package speech

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestEncodeWAVHeaderLayout(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	wav := EncodeWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"riff", string(wav[0:4]), "RIFF"},
		{"size", binary.LittleEndian.Uint32(wav[4:8]), uint32(36 + len(pcm))},
		{"wave", string(wav[8:12]), "WAVE"},
		{"fmt", string(wav[12:16]), "fmt "},
		{"fmt size", binary.LittleEndian.Uint32(wav[16:20]), uint32(16)},
		{"format", binary.LittleEndian.Uint16(wav[20:22]), uint16(1)},
		{"channels", binary.LittleEndian.Uint16(wav[22:24]), uint16(1)},
		{"rate", binary.LittleEndian.Uint32(wav[24:28]), uint32(16000)},
		{"byte rate", binary.LittleEndian.Uint32(wav[28:32]), uint32(32000)},
		{"block align", binary.LittleEndian.Uint16(wav[32:34]), uint16(2)},
		{"bits", binary.LittleEndian.Uint16(wav[34:36]), uint16(16)},
		{"data", string(wav[36:40]), "data"},
		{"data size", binary.LittleEndian.Uint32(wav[40:44]), uint32(len(pcm))},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 1024)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	info, got, err := DecodeWAV(EncodeWAV(pcm, 24000))
	if err != nil {
		t.Fatalf("DecodeWAV err: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if string(got) != string(pcm) {
		t.Fatal("pcm payload changed after round trip")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"short":     make([]byte, 10),
		"no riff":   make([]byte, 64),
		"truncated": EncodeWAV(make([]byte, 100), 8000)[:80],
	}
	for name, data := range cases {
		if _, _, err := DecodeWAV(data); !errors.Is(err, ErrInvalidWAV) {
			t.Errorf("%s: err = %v, want ErrInvalidWAV", name, err)
		}
	}
}

func TestSilenceDuration(t *testing.T) {
	wav := Silence(8000, 250*time.Millisecond)
	_, pcm, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV err: %v", err)
	}
	if len(pcm) != 8000/4*2 {
		t.Fatalf("pcm len = %d, want %d", len(pcm), 4000)
	}
	for _, b := range pcm {
		if b != 0 {
			t.Fatal("silence contains non-zero sample")
		}
	}
}
