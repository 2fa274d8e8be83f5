package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/dgnsrekt/duet/internal/audio"
)

func TestEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := map[string]any{"text": "hello", "voice": map[string]any{"name": "en_US-lessac-medium"}}
	if err := writeEvent(&buf, "synthesize", data, payload); err != nil {
		t.Fatalf("writeEvent() error: %v", err)
	}

	evt, gotPayload, err := readEvent(&buf)
	if err != nil {
		t.Fatalf("readEvent() error: %v", err)
	}
	if evt.Type != "synthesize" {
		t.Errorf("Type = %q, want %q", evt.Type, "synthesize")
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %v, want %v", gotPayload, payload)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(evt.Data, &decoded); err != nil {
		t.Fatalf("unmarshalling data: %v", err)
	}
	if decoded.Text != "hello" {
		t.Errorf("data.text = %q, want %q", decoded.Text, "hello")
	}
}

func TestReadEventRejectsBadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "42\n"},
		{"non-numeric json length", "x 0\n"},
		{"non-numeric payload length", "2 y\n{}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := readEvent(bytes.NewBufferString(tt.input)); err == nil {
				t.Error("readEvent() accepted a malformed header")
			}
		})
	}
}

// fakeWyomingServer accepts one connection and serves scripted events.
func fakeWyomingServer(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return ln.Addr().String()
}

func TestWyomingSynthesize(t *testing.T) {
	chunk1 := []byte{1, 2, 3, 4}
	chunk2 := []byte{5, 6}

	addr := fakeWyomingServer(t, func(conn net.Conn) {
		evt, _, err := readEvent(conn)
		if err != nil || evt.Type != "synthesize" {
			return
		}
		writeEvent(conn, "audio-start", map[string]any{"rate": 22050, "width": 2, "channels": 1}, nil)
		writeEvent(conn, "audio-chunk", nil, chunk1)
		writeEvent(conn, "audio-chunk", nil, chunk2)
		writeEvent(conn, "audio-stop", nil, nil)
	})

	w := NewWyoming(addr, audio.NewPlayer(), nil)
	pcm, rate, err := w.synthesize(context.Background(), "en_US-lessac-medium", "Hello.")
	if err != nil {
		t.Fatalf("synthesize() error: %v", err)
	}
	if rate != 22050 {
		t.Errorf("rate = %d, want 22050", rate)
	}
	want := append(append([]byte{}, chunk1...), chunk2...)
	if !bytes.Equal(pcm, want) {
		t.Errorf("pcm = %v, want %v", pcm, want)
	}
}

func TestWyomingSynthesizeServerError(t *testing.T) {
	addr := fakeWyomingServer(t, func(conn net.Conn) {
		if _, _, err := readEvent(conn); err != nil {
			return
		}
		writeEvent(conn, "error", map[string]any{"text": "no such voice"}, nil)
	})

	w := NewWyoming(addr, audio.NewPlayer(), nil)
	if _, _, err := w.synthesize(context.Background(), "bogus", "Hello."); err == nil {
		t.Fatal("synthesize() succeeded against an erroring server")
	}
}

func TestWyomingVoices(t *testing.T) {
	addr := fakeWyomingServer(t, func(conn net.Conn) {
		evt, _, err := readEvent(conn)
		if err != nil || evt.Type != "describe" {
			return
		}
		info := map[string]any{
			"tts": []map[string]any{{
				"voices": []map[string]any{
					{"name": "en_US-lessac-medium", "languages": []string{"en_US"}, "installed": true},
					{"name": "zh_CN-huayan-medium", "languages": []string{"zh_CN"}, "installed": true},
					{"name": "de_DE-thorsten-medium", "languages": []string{"de_DE"}, "installed": false},
				},
			}},
		}
		writeEvent(conn, "info", info, nil)
	})

	w := NewWyoming(addr, audio.NewPlayer(), nil)
	voices, err := w.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error: %v", err)
	}

	if len(voices) != 2 {
		t.Fatalf("Voices() returned %d voices, want 2 (installed only)", len(voices))
	}
	if voices[0].URI != "wyoming:en_US-lessac-medium" {
		t.Errorf("URI = %q, want wyoming scheme", voices[0].URI)
	}
	if voices[0].Lang != "en-US" {
		t.Errorf("Lang = %q, want %q (underscores normalized)", voices[0].Lang, "en-US")
	}
	if voices[1].Lang != "zh-CN" {
		t.Errorf("Lang = %q, want %q", voices[1].Lang, "zh-CN")
	}
}
