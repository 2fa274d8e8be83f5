package engines

import (
	"fmt"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/cache"
	"github.com/dgnsrekt/duet/internal/synth"
)

// Names lists the engines New accepts, in display order.
var Names = []string{"edge", "gtranslate", "wyoming"}

// Options carries engine construction inputs that come from config.
type Options struct {
	// WyomingEndpoint is the host:port of a Wyoming protocol server.
	// Required by the wyoming engine, ignored by the rest.
	WyomingEndpoint string
}

// New builds the named engine. clips may be nil to disable clip caching.
func New(name string, opts Options, player *audio.Player, clips *cache.Clips) (synth.Synthesizer, error) {
	switch name {
	case "edge":
		return NewEdge(player, clips), nil
	case "gtranslate":
		return NewGTranslate(player, clips), nil
	case "wyoming":
		if opts.WyomingEndpoint == "" {
			return nil, fmt.Errorf("wyoming engine requires an endpoint")
		}
		return NewWyoming(opts.WyomingEndpoint, player, clips), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (have %v)", name, Names)
	}
}
