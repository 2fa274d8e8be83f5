package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/duet/internal/script"
	"github.com/dgnsrekt/duet/internal/session"
	"github.com/dgnsrekt/duet/internal/voice"
)

func TestDialogDocSpeakText(t *testing.T) {
	t.Run("markdown flattens to dialog lines", func(t *testing.T) {
		doc := dialogDoc{
			localPath: "/tmp/show.md",
			body:      "# Show\n\nSpeaker 1: Hello\nSpeaker 2: Hi\n\n```\nnot dialog\n```\n",
		}
		want := "Show\nSpeaker 1: Hello\nSpeaker 2: Hi"
		if got := doc.speakText(); got != want {
			t.Errorf("speakText() = %q, want %q", got, want)
		}
	})

	t.Run("plain text is spoken verbatim", func(t *testing.T) {
		doc := dialogDoc{
			localPath: "/tmp/show.txt",
			body:      "Speaker 1: Hello\n# not a heading\n",
		}
		if got := doc.speakText(); got != doc.body {
			t.Errorf("speakText() = %q, want body unchanged", got)
		}
	})
}

func TestLanguagePrefixes(t *testing.T) {
	voices := []voice.Voice{
		{URI: "a", Name: "Emma", Lang: "en-US"},
		{URI: "b", Name: "Liam", Lang: "en-GB"},
		{URI: "c", Name: "Mei", Lang: "zh-TW"},
		{URI: "d", Name: "Hana", Lang: "ja-JP"},
		{URI: "e", Name: "Yun", Lang: "ZH-CN"},
	}
	got := languagePrefixes(voices)
	want := []string{"en", "zh", "ja"}
	if len(got) != len(want) {
		t.Fatalf("languagePrefixes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prefix %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := languagePrefixes(nil); len(got) != 0 {
		t.Errorf("languagePrefixes(nil) = %v, want empty", got)
	}
}

func TestHighlightLine(t *testing.T) {
	lipgloss.SetColorProfile(termenv.TrueColor)
	const doc = "one\ntwo three\nfour"

	t.Run("marks the matching line", func(t *testing.T) {
		got := highlightLine(doc, "two three")
		if got == doc {
			t.Fatal("expected styling to change the output")
		}
		if !strings.HasPrefix(got, "one\n") || !strings.HasSuffix(got, "\nfour") {
			t.Errorf("surrounding text damaged: %q", got)
		}
		if !strings.Contains(got, "two three") {
			t.Errorf("line text missing from %q", got)
		}
	})

	t.Run("missing line leaves output untouched", func(t *testing.T) {
		if got := highlightLine(doc, "absent"); got != doc {
			t.Errorf("highlightLine() = %q, want input unchanged", got)
		}
	})

	t.Run("blank line is ignored", func(t *testing.T) {
		if got := highlightLine(doc, "   "); got != doc {
			t.Errorf("highlightLine() = %q, want input unchanged", got)
		}
	})
}

func TestSessionNote(t *testing.T) {
	two := 2
	tests := []struct {
		name   string
		status session.Status
		plan   int
		want   string
	}{
		{"idle", session.Status{State: session.StateIdle}, 0, ""},
		{"awaiting grant", session.Status{State: session.StateAwaitingGrant}, 0, "waiting for capture"},
		{"capturing", session.Status{State: session.StateCapturing}, 0, "capture armed"},
		{"dispatching", session.Status{State: session.StateDispatching, Line: &two}, 3, "speaking 2/3"},
		{"dispatching without line", session.Status{State: session.StateDispatching}, 3, "speaking"},
		{"finalizing", session.Status{State: session.StateFinalizing}, 0, "saving take"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := readerModel{
				common: &commonModel{},
				plan:   make([]script.Line, tc.plan),
				status: tc.status,
			}
			if got := m.sessionNote(); got != tc.want {
				t.Errorf("sessionNote() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStatusBarView(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	m := readerModel{
		common:   &commonModel{width: 60},
		viewport: viewport.New(60, 20),
		doc:      dialogDoc{note: "episode.md"},
	}

	var b strings.Builder
	m.statusBarView(&b)
	bar := b.String()
	if !strings.Contains(bar, "episode.md") {
		t.Errorf("status bar missing note: %q", bar)
	}
	if !strings.Contains(bar, "? Help") {
		t.Errorf("status bar missing help note: %q", bar)
	}

	m.statusMessage = "Copied contents"
	b.Reset()
	m.statusBarView(&b)
	if !strings.Contains(b.String(), "Copied contents") {
		t.Errorf("status message not shown: %q", b.String())
	}

	m.statusMessage = ""
	m.status = session.Status{State: session.StateError, Message: "no suitable voice"}
	b.Reset()
	m.statusBarView(&b)
	if !strings.Contains(b.String(), "no suitable voice") {
		t.Errorf("session error not shown: %q", b.String())
	}
}

func TestSameLine(t *testing.T) {
	one, alsoOne, two := 1, 1, 2
	tests := []struct {
		name string
		a, b *int
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil and set", nil, &one, false},
		{"equal values", &one, &alsoOne, true},
		{"different values", &one, &two, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sameLine(tc.a, tc.b); got != tc.want {
				t.Errorf("sameLine() = %v, want %v", got, tc.want)
			}
		})
	}
}
