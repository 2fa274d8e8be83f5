// Package engines implements the speech backends duet can drive.
package engines

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/cache"
	"github.com/dgnsrekt/duet/internal/synth"
	"github.com/dgnsrekt/duet/internal/voice"
)

// Google Translate rejects longer inputs.
const gtranslateMaxText = 5000

const chromeAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

type gtranslateVoice struct {
	voice.Voice
	lang string // gtts-cli language code
	tld  string // accent-selecting top level domain
}

// The voices Google Translate exposes, named as Chrome presents them.
var gtranslateVoices = []gtranslateVoice{
	{voice.Voice{URI: "gtranslate:de-DE", Name: "Google Deutsch", Lang: "de-DE"}, "de", "de"},
	{voice.Voice{URI: "gtranslate:en-US", Name: "Google US English", Lang: "en-US"}, "en", "us"},
	{voice.Voice{URI: "gtranslate:en-GB", Name: "Google UK English Female", Lang: "en-GB"}, "en", "co.uk"},
	{voice.Voice{URI: "gtranslate:es-ES", Name: "Google español", Lang: "es-ES"}, "es", "es"},
	{voice.Voice{URI: "gtranslate:fr-FR", Name: "Google français", Lang: "fr-FR"}, "fr", "fr"},
	{voice.Voice{URI: "gtranslate:hi-IN", Name: "Google हिन्दी", Lang: "hi-IN"}, "hi", "co.in"},
	{voice.Voice{URI: "gtranslate:id-ID", Name: "Google Bahasa Indonesia", Lang: "id-ID"}, "id", "co.id"},
	{voice.Voice{URI: "gtranslate:it-IT", Name: "Google italiano", Lang: "it-IT"}, "it", "it"},
	{voice.Voice{URI: "gtranslate:ja-JP", Name: "Google 日本語", Lang: "ja-JP"}, "ja", "co.jp"},
	{voice.Voice{URI: "gtranslate:ko-KR", Name: "Google 한국의", Lang: "ko-KR"}, "ko", "com"},
	{voice.Voice{URI: "gtranslate:nl-NL", Name: "Google Nederlands", Lang: "nl-NL"}, "nl", "nl"},
	{voice.Voice{URI: "gtranslate:pl-PL", Name: "Google polski", Lang: "pl-PL"}, "pl", "pl"},
	{voice.Voice{URI: "gtranslate:pt-BR", Name: "Google português do Brasil", Lang: "pt-BR"}, "pt", "com.br"},
	{voice.Voice{URI: "gtranslate:ru-RU", Name: "Google русский", Lang: "ru-RU"}, "ru", "ru"},
	{voice.Voice{URI: "gtranslate:zh-CN", Name: "Google 普通话（中国大陆）", Lang: "zh-CN"}, "zh-CN", "com"},
	{voice.Voice{URI: "gtranslate:zh-HK", Name: "Google 粤語（香港）", Lang: "zh-HK"}, "yue", "com"},
	{voice.Voice{URI: "gtranslate:zh-TW", Name: "Google 國語（臺灣）", Lang: "zh-TW"}, "zh-TW", "com"},
}

// GTranslate synthesizes speech through Google Translate using gtts-cli,
// decoding its MP3 output to PCM with ffmpeg. Free, no API key, so requests
// are rate limited to stay under Google's abuse radar.
type GTranslate struct {
	player  *audio.Player
	clips   *cache.Clips
	limiter *rate.Limiter
	tempDir string

	probeOnce sync.Once
	probeErr  error
}

// NewGTranslate returns a Google Translate engine. clips may be nil to
// disable caching.
func NewGTranslate(player *audio.Player, clips *cache.Clips) *GTranslate {
	return &GTranslate{
		player:  player,
		clips:   clips,
		limiter: rate.NewLimiter(rate.Every(time.Minute/50), 1),
		tempDir: os.TempDir(),
	}
}

func (g *GTranslate) Name() string {
	return "gtranslate"
}

func (g *GTranslate) Agent() string {
	return chromeAgent
}

func (g *GTranslate) Voices(ctx context.Context) ([]voice.Voice, error) {
	out := make([]voice.Voice, len(gtranslateVoices))
	for i, v := range gtranslateVoices {
		out[i] = v.Voice
	}
	return out, nil
}

// probe checks, once, that the external tools the engine shells out to are
// on PATH. Listing voices needs neither, so the check waits for the first
// utterance.
func (g *GTranslate) probe() error {
	g.probeOnce.Do(func() {
		if _, err := exec.LookPath("gtts-cli"); err != nil {
			g.probeErr = fmt.Errorf("gtts-cli not found in PATH (pip install gTTS): %w", err)
			return
		}
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			g.probeErr = fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	})
	return g.probeErr
}

func (g *GTranslate) Speak(ctx context.Context, utt synth.Utterance) error {
	gv, err := g.lookup(utt.VoiceURI)
	if err != nil {
		return err
	}
	if err := g.probe(); err != nil {
		return err
	}
	if len(utt.Text) > gtranslateMaxText {
		return fmt.Errorf("utterance too long: %d bytes (max %d)", len(utt.Text), gtranslateMaxText)
	}

	key := cache.Key(g.Name(), utt.VoiceURI, utt.Text)
	if g.clips != nil {
		if pcm, ok := g.clips.Get(key); ok {
			log.Debug("clip cache hit", "engine", g.Name(), "voice", gv.Lang)
			return g.player.Play(ctx, pcm, audio.DefaultRate)
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	mp3, err := g.fetchMP3(ctx, utt.Text, gv)
	if err != nil {
		return err
	}
	pcm, err := g.decodeToPCM(ctx, mp3)
	if err != nil {
		return err
	}

	if g.clips != nil {
		if err := g.clips.Put(key, pcm); err != nil {
			log.Debug("clip cache write failed", "err", err)
		}
	}

	return g.player.Play(ctx, pcm, audio.DefaultRate)
}

func (g *GTranslate) lookup(uri string) (gtranslateVoice, error) {
	for _, v := range gtranslateVoices {
		if v.URI == uri {
			return v, nil
		}
	}
	return gtranslateVoice{}, fmt.Errorf("%w: %q", synth.ErrUnknownVoice, uri)
}

func (g *GTranslate) fetchMP3(ctx context.Context, text string, gv gtranslateVoice) ([]byte, error) {
	args := []string{text, "-l", gv.lang, "-t", gv.tld, "-o", "-"}

	cmd := exec.CommandContext(ctx, "gtts-cli", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("gtts-cli failed: %w: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("gtts-cli produced no output: %s", stderr.String())
	}
	return stdout.Bytes(), nil
}

func (g *GTranslate) decodeToPCM(ctx context.Context, mp3 []byte) ([]byte, error) {
	tmp, err := os.CreateTemp(g.tempDir, "duet-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(mp3); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	args := []string{
		"-i", tmp.Name(),
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.DefaultRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output: %s", stderr.String())
	}
	return stdout.Bytes(), nil
}

var _ synth.Synthesizer = (*GTranslate)(nil)
