package engines

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/cache"
	"github.com/dgnsrekt/duet/internal/synth"
	"github.com/dgnsrekt/duet/internal/voice"
)

// Wyoming synthesizes speech through a Wyoming protocol server such as
// Piper, one TCP connection per request.
//
// Wire format, per event:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type Wyoming struct {
	endpoint string
	player   *audio.Player
	clips    *cache.Clips
}

// NewWyoming returns an engine talking to the Wyoming server at endpoint
// (host:port). clips may be nil to disable caching.
func NewWyoming(endpoint string, player *audio.Player, clips *cache.Clips) *Wyoming {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	return &Wyoming{endpoint: endpoint, player: player, clips: clips}
}

func (w *Wyoming) Name() string {
	return "wyoming"
}

// Agent identifies the backend generically; Wyoming servers are neither
// Chrome nor Edge, so the catalog applies only its language filter.
func (w *Wyoming) Agent() string {
	return "duet/wyoming (" + w.endpoint + ")"
}

// Voices asks the server to describe itself and lists its installed TTS
// voices.
func (w *Wyoming) Voices(ctx context.Context) ([]voice.Voice, error) {
	conn, err := w.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	unblock := closeOnCancel(ctx, conn)
	defer unblock()

	if err := writeEvent(conn, "describe", nil, nil); err != nil {
		return nil, fmt.Errorf("sending describe: %w", err)
	}

	for {
		evt, _, err := readEvent(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("reading describe reply: %w", err)
		}
		if evt.Type != "info" {
			continue
		}

		var info struct {
			TTS []struct {
				Voices []struct {
					Name      string   `json:"name"`
					Languages []string `json:"languages"`
					Installed bool     `json:"installed"`
				} `json:"voices"`
			} `json:"tts"`
		}
		if err := json.Unmarshal(evt.Data, &info); err != nil {
			return nil, fmt.Errorf("decoding server info: %w", err)
		}

		var out []voice.Voice
		for _, prog := range info.TTS {
			for _, v := range prog.Voices {
				if !v.Installed {
					continue
				}
				lang := ""
				if len(v.Languages) > 0 {
					lang = strings.ReplaceAll(v.Languages[0], "_", "-")
				}
				out = append(out, voice.Voice{
					URI:  "wyoming:" + v.Name,
					Name: v.Name,
					Lang: lang,
				})
			}
		}
		return out, nil
	}
}

func (w *Wyoming) Speak(ctx context.Context, utt synth.Utterance) error {
	name, ok := strings.CutPrefix(utt.VoiceURI, "wyoming:")
	if !ok {
		return fmt.Errorf("%w: %q", synth.ErrUnknownVoice, utt.VoiceURI)
	}

	key := cache.Key(w.Name(), utt.VoiceURI, utt.Text)
	if w.clips != nil {
		if pcm, ok := w.clips.Get(key); ok {
			// Rate was fixed when the clip was cached.
			log.Debug("clip cache hit", "engine", w.Name(), "voice", name)
			return w.player.Play(ctx, pcm, audio.DefaultRate)
		}
	}

	pcm, rate, err := w.synthesize(ctx, name, utt.Text)
	if err != nil {
		return err
	}

	if w.clips != nil && rate == audio.DefaultRate {
		if err := w.clips.Put(key, pcm); err != nil {
			log.Debug("clip cache write failed", "err", err)
		}
	}

	return w.player.Play(ctx, pcm, rate)
}

func (w *Wyoming) synthesize(ctx context.Context, voiceName, text string) ([]byte, int, error) {
	conn, err := w.dial(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Close()

	unblock := closeOnCancel(ctx, conn)
	defer unblock()

	data := map[string]any{
		"text":  text,
		"voice": map[string]any{"name": voiceName},
	}
	if err := writeEvent(conn, "synthesize", data, nil); err != nil {
		return nil, 0, fmt.Errorf("sending synthesize: %w", err)
	}

	var (
		pcm  []byte
		rate = 22050
	)
	for {
		evt, payload, err := readEvent(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, fmt.Errorf("reading synthesis event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			var start struct {
				Rate int `json:"rate"`
			}
			if err := json.Unmarshal(evt.Data, &start); err == nil && start.Rate > 0 {
				rate = start.Rate
			}
		case "audio-chunk":
			pcm = append(pcm, payload...)
		case "audio-stop":
			return pcm, rate, nil
		case "error":
			var e struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(evt.Data, &e)
			if e.Text == "" {
				e.Text = "unknown error"
			}
			return nil, 0, fmt.Errorf("server error: %s", e.Text)
		}
	}
}

func (w *Wyoming) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", w.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", w.endpoint, err)
	}
	return conn, nil
}

// closeOnCancel closes conn when ctx is cancelled, unblocking reads. The
// returned func stops the watcher.
func closeOnCancel(ctx context.Context, conn net.Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type wyomingEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func writeEvent(w io.Writer, eventType string, data map[string]any, payload []byte) error {
	evt := wyomingEvent{Type: eventType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		evt.Data = raw
	}
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	header := fmt.Sprintf("%d %d\n", len(jsonBytes), len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(jsonBytes); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readEvent(r io.Reader) (*wyomingEvent, []byte, error) {
	header, err := readLine(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid event header: %q", header)
	}
	jsonLen, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json length: %w", err)
	}
	payloadLen, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload length: %w", err)
	}

	jsonBuf := make([]byte, jsonLen+1) // +1 for the trailing newline
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading event json: %w", err)
	}

	var evt wyomingEvent
	if err := json.Unmarshal(jsonBuf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}

func readLine(r io.Reader) (string, error) {
	buf := make([]byte, 0, 64)
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return "", err
		}
		if one[0] == '\n' {
			return string(buf), nil
		}
		buf = append(buf, one[0])
	}
}
