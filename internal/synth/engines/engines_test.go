package engines

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/synth"
)

func TestNew(t *testing.T) {
	player := audio.NewPlayer()

	tests := []struct {
		name    string
		engine  string
		opts    Options
		wantErr bool
	}{
		{"edge", "edge", Options{}, false},
		{"gtranslate", "gtranslate", Options{}, false},
		{"wyoming with endpoint", "wyoming", Options{WyomingEndpoint: "localhost:10200"}, false},
		{"wyoming without endpoint", "wyoming", Options{}, true},
		{"unknown", "espeak", Options{}, true},
		{"empty", "", Options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.engine, tt.opts, player, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%q) succeeded, want error", tt.engine)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.engine, err)
			}
			if s.Name() != tt.engine {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.engine)
			}
		})
	}
}

func TestGTranslateLookup(t *testing.T) {
	g := NewGTranslate(audio.NewPlayer(), nil)

	gv, err := g.lookup("gtranslate:zh-TW")
	if err != nil {
		t.Fatalf("lookup(zh-TW) error: %v", err)
	}
	if gv.lang != "zh-TW" {
		t.Errorf("lookup(zh-TW).lang = %q, want %q", gv.lang, "zh-TW")
	}

	if _, err := g.lookup("edge:en-US-EmmaMultilingualNeural"); !errors.Is(err, synth.ErrUnknownVoice) {
		t.Errorf("lookup(foreign URI) error = %v, want ErrUnknownVoice", err)
	}
}

func TestGTranslateVoiceList(t *testing.T) {
	g := NewGTranslate(audio.NewPlayer(), nil)

	voices, err := g.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error: %v", err)
	}
	if len(voices) == 0 {
		t.Fatal("Voices() returned an empty list")
	}

	for _, v := range voices {
		if !strings.HasPrefix(v.Name, "Google ") {
			t.Errorf("voice %q does not carry the Google name prefix", v.Name)
		}
		if !strings.HasPrefix(v.URI, "gtranslate:") {
			t.Errorf("voice URI %q does not carry the engine scheme", v.URI)
		}
		if v.Lang == "" {
			t.Errorf("voice %q has no language tag", v.Name)
		}
	}
}
