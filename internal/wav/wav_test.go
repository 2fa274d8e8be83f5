package wav

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestEncodeHeader(t *testing.T) {
	blocks := [][]float32{
		make([]float32, 4096),
		make([]float32, 4096),
		make([]float32, 123),
	}
	const rate = 48000
	n := 4096 + 4096 + 123

	b := Encode(blocks, rate)

	if len(b) != HeaderSize+2*n {
		t.Fatalf("len = %d, want %d", len(b), HeaderSize+2*n)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", b[0:4], b[8:12])
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != uint32(36+2*n) {
		t.Errorf("riff chunk size = %d, want %d", got, 36+2*n)
	}
	if string(b[12:16]) != "fmt " {
		t.Fatalf("bad fmt magic: %q", b[12:16])
	}
	if got := binary.LittleEndian.Uint32(b[16:20]); got != 16 {
		t.Errorf("fmt size = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(b[20:22]); got != 1 {
		t.Errorf("format code = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != rate {
		t.Errorf("sample rate = %d, want %d", got, rate)
	}
	if got := binary.LittleEndian.Uint32(b[28:32]); got != rate*2 {
		t.Errorf("byte rate = %d, want %d", got, rate*2)
	}
	if got := binary.LittleEndian.Uint16(b[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(b[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if string(b[36:40]) != "data" {
		t.Fatalf("bad data magic: %q", b[36:40])
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != uint32(2*n) {
		t.Errorf("data size = %d, want %d", got, 2*n)
	}
}

func TestEncodeSampleConversion(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"negative full scale", -1.0, -32768},
		{"zero", 0.0, 0},
		{"positive full scale", 1.0, 32767},
		{"clamped below", -1.5, -32768},
		{"clamped above", 1.5, 32767},
		{"half scale positive", 0.5, 16383},
		{"half scale negative", -0.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Encode([][]float32{{tt.sample}}, 44100)
			got := int16(binary.LittleEndian.Uint16(b[HeaderSize:]))
			if got != tt.want {
				t.Errorf("pcm16(%v) = %d, want %d", tt.sample, got, tt.want)
			}
		})
	}
}

func TestEncodeBlockOrder(t *testing.T) {
	// Blocks concatenate in push order.
	b := Encode([][]float32{{0.25}, {-0.25}, {1.0}}, 8000)
	want := []int16{8191, -8192, 32767}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(b[HeaderSize+2*i:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	b := Encode(nil, 44100)
	if len(b) != HeaderSize {
		t.Fatalf("len = %d, want bare header %d", len(b), HeaderSize)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 0 {
		t.Errorf("data size = %d, want 0", got)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(44100, 44100); got != time.Second {
		t.Errorf("Duration(44100, 44100) = %v, want 1s", got)
	}
	if got := Duration(22050, 44100); got != 500*time.Millisecond {
		t.Errorf("Duration(22050, 44100) = %v, want 500ms", got)
	}
	if got := Duration(100, 0); got != 0 {
		t.Errorf("Duration with zero rate = %v, want 0", got)
	}
}
