package engines

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/cache"
	"github.com/dgnsrekt/duet/internal/synth"
	"github.com/dgnsrekt/duet/internal/voice"
)

// Endpoints and token of the Edge read-aloud service. The token is baked
// into the browser and published in every client implementation.
const (
	edgeToken     = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeWSSURL    = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1?TrustedClientToken=" + edgeToken
	edgeVoicesURL = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/voices/list?trustedclienttoken=" + edgeToken

	edgeAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0"
	edgeOrigin = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"

	// raw 24 kHz mono matches audio.DefaultRate, so no resampling.
	edgeOutputFormat = "raw-24khz-16bit-mono-pcm"
)

// Edge synthesizes speech through the Microsoft Edge read-aloud service
// over a websocket, one connection per utterance.
type Edge struct {
	player *audio.Player
	clips  *cache.Clips
	http   *http.Client
	dialer *websocket.Dialer
}

// NewEdge returns an Edge read-aloud engine. clips may be nil to disable
// caching.
func NewEdge(player *audio.Player, clips *cache.Clips) *Edge {
	return &Edge{
		player: player,
		clips:  clips,
		http:   http.DefaultClient,
		dialer: websocket.DefaultDialer,
	}
}

func (e *Edge) Name() string {
	return "edge"
}

func (e *Edge) Agent() string {
	return edgeAgent
}

type edgeVoice struct {
	ShortName    string `json:"ShortName"`
	Locale       string `json:"Locale"`
	FriendlyName string `json:"FriendlyName"`
}

// Voices fetches the service's voice list.
func (e *Edge) Voices(ctx context.Context) ([]voice.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, edgeVoicesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", edgeAgent)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching voice list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice list request failed: %s: %s", resp.Status, body)
	}

	var raw []edgeVoice
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding voice list: %w", err)
	}

	out := make([]voice.Voice, 0, len(raw))
	for _, v := range raw {
		out = append(out, voice.Voice{
			URI:  "edge:" + v.ShortName,
			Name: v.FriendlyName,
			Lang: v.Locale,
		})
	}
	return out, nil
}

func (e *Edge) Speak(ctx context.Context, utt synth.Utterance) error {
	short, ok := strings.CutPrefix(utt.VoiceURI, "edge:")
	if !ok {
		return fmt.Errorf("%w: %q", synth.ErrUnknownVoice, utt.VoiceURI)
	}

	key := cache.Key(e.Name(), utt.VoiceURI, utt.Text)
	if e.clips != nil {
		if pcm, ok := e.clips.Get(key); ok {
			log.Debug("clip cache hit", "engine", e.Name(), "voice", short)
			return e.player.Play(ctx, pcm, audio.DefaultRate)
		}
	}

	pcm, err := e.synthesize(ctx, short, utt.Text)
	if err != nil {
		return err
	}

	if e.clips != nil {
		if err := e.clips.Put(key, pcm); err != nil {
			log.Debug("clip cache write failed", "err", err)
		}
	}

	return e.player.Play(ctx, pcm, audio.DefaultRate)
}

func (e *Edge) synthesize(ctx context.Context, shortName, text string) ([]byte, error) {
	connID := strings.ReplaceAll(uuid.NewString(), "-", "")

	header := http.Header{}
	header.Set("User-Agent", edgeAgent)
	header.Set("Origin", edgeOrigin)

	conn, resp, err := e.dialer.DialContext(ctx, edgeWSSURL+"&ConnectionId="+connID, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connecting to read-aloud service: %w (%s)", err, resp.Status)
		}
		return nil, fmt.Errorf("connecting to read-aloud service: %w", err)
	}
	defer conn.Close()

	// Gorilla reads do not take a context. Closing the connection is the
	// documented way to unblock them on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, speechConfigMessage()); err != nil {
		return nil, fmt.Errorf("sending speech config: %w", err)
	}
	reqID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.WriteMessage(websocket.TextMessage, ssmlMessage(reqID, shortName, text)); err != nil {
		return nil, fmt.Errorf("sending ssml: %w", err)
	}

	var pcm []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, fmt.Errorf("reading from read-aloud service: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if bytes.Contains(data, []byte("Path:turn.end")) {
				return pcm, nil
			}
		case websocket.BinaryMessage:
			payload, ok := audioPayload(data)
			if ok {
				pcm = append(pcm, payload...)
			}
		}
	}
	return pcm, nil
}

// audioPayload extracts the audio bytes from a binary service frame. The
// frame starts with a big-endian 16-bit header length, then the headers,
// then the payload.
func audioPayload(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	hlen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+hlen {
		return nil, false
	}
	if !bytes.Contains(frame[2:2+hlen], []byte("Path:audio")) {
		return nil, false
	}
	return frame[2+hlen:], true
}

// edgeTimestamp mimics the JavaScript Date string the browser sends.
func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

func speechConfigMessage() []byte {
	var b bytes.Buffer
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n\r\n")
	b.WriteString(`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + edgeOutputFormat + `"}}}}`)
	return b.Bytes()
}

func ssmlMessage(reqID, shortName, text string) []byte {
	locale := ssmlLocale(shortName)

	var b bytes.Buffer
	b.WriteString("X-RequestId:" + reqID + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	b.WriteString(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='` + locale + `'>`)
	b.WriteString(`<voice name='` + shortName + `'>`)
	b.WriteString(escapeSSML(text))
	b.WriteString(`</voice></speak>`)
	return b.Bytes()
}

// ssmlLocale derives the xml:lang attribute from a short voice name like
// "en-US-EmmaMultilingualNeural".
func ssmlLocale(shortName string) string {
	parts := strings.SplitN(shortName, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;", `"`, "&quot;")

func escapeSSML(s string) string {
	return ssmlEscaper.Replace(s)
}

var _ synth.Synthesizer = (*Edge)(nil)
