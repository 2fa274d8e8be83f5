package voice

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Catalog is the ordered, engine-scoped list of usable voices. It is
// single-writer: Populate and Rebuild are only ever called from the owning
// session's event boundaries, so reads need no locking.
type Catalog struct {
	vendor Vendor
	voices []Voice
	err    error
}

// Populate fills the catalog from src. It is idempotent: when the catalog
// is already non-empty it returns immediately without touching anything,
// which guards against the duplicate invocation that comes from probing
// once eagerly and once from the engine's voices-changed hook.
//
// An engine that reports zero voices leaves the catalog in the
// ErrUnsupported error state. Populate never panics.
func (c *Catalog) Populate(ctx context.Context, src Source) error {
	if len(c.voices) > 0 {
		return nil
	}

	raw, err := src.Voices(ctx)
	if err != nil {
		c.err = fmt.Errorf("listing voices: %w", err)
		return c.err
	}
	if len(raw) == 0 {
		c.err = ErrUnsupported
		return c.err
	}

	c.vendor = ClassifyAgent(src.Agent())
	c.voices = filterVoices(raw, c.vendor)
	c.err = nil

	log.Debug("voice catalog populated",
		"vendor", c.vendor, "raw", len(raw), "kept", len(c.voices))
	return nil
}

// Rebuild discards the current contents and repopulates. Used from the
// voices-changed hook, where the idempotence guard must not apply.
func (c *Catalog) Rebuild(ctx context.Context, src Source) error {
	c.voices = nil
	return c.Populate(ctx, src)
}

// Err reports the catalog's error state, nil when the last population
// attempt succeeded.
func (c *Catalog) Err() error { return c.err }

// Len returns the number of voices kept by the last population.
func (c *Catalog) Len() int { return len(c.voices) }

// Voices returns the backing slice. Callers must not modify it.
func (c *Catalog) Voices() []Voice { return c.voices }

// Vendor returns the classification applied at the last population.
func (c *Catalog) Vendor() Vendor { return c.vendor }

// At returns the i-th voice.
func (c *Catalog) At(i int) (Voice, bool) {
	if i < 0 || i >= len(c.voices) {
		return Voice{}, false
	}
	return c.voices[i], true
}

// Resolve looks up a voice by URI. An empty URI never resolves.
func (c *Catalog) Resolve(uri string) (Voice, bool) {
	if uri == "" {
		return Voice{}, false
	}
	for _, v := range c.voices {
		if v.URI == uri {
			return v, true
		}
	}
	return Voice{}, false
}

// FirstNameContains returns the first voice whose name contains needle,
// case-insensitively.
func (c *Catalog) FirstNameContains(needle string) (Voice, bool) {
	for _, v := range c.voices {
		if nameContains(v.Name, needle) {
			return v, true
		}
	}
	return Voice{}, false
}

// FirstLangExact returns the first voice whose language tag equals lang.
func (c *Catalog) FirstLangExact(lang string) (Voice, bool) {
	for _, v := range c.voices {
		if v.Lang == lang {
			return v, true
		}
	}
	return Voice{}, false
}

// FirstLangPrefix returns the first voice whose language tag starts with
// prefix.
func (c *Catalog) FirstLangPrefix(prefix string) (Voice, bool) {
	for _, v := range c.voices {
		if strings.HasPrefix(v.Lang, prefix) {
			return v, true
		}
	}
	return Voice{}, false
}

// LangPrefix returns all voices whose language tag starts with prefix, in
// catalog order.
func (c *Catalog) LangPrefix(prefix string) []Voice {
	var out []Voice
	for _, v := range c.voices {
		if strings.HasPrefix(v.Lang, prefix) {
			out = append(out, v)
		}
	}
	return out
}

// allowedLang is the language allow-list shared by all vendors: zh-prefixed
// tags except exactly zh-HK, ja-prefixed tags, and en-prefixed tags.
func allowedLang(lang string) bool {
	switch {
	case strings.HasPrefix(lang, "zh"):
		return lang != "zh-HK"
	case strings.HasPrefix(lang, "ja"), strings.HasPrefix(lang, "en"):
		return true
	}
	return false
}

// edgeEnglish is the fixed set of English tags the edge flavor keeps.
var edgeEnglish = map[string]bool{
	"en-US": true,
	"en-GB": true,
	"en-AU": true,
	"en-CA": true,
	"en-NZ": true,
}

func edgeAllowedLang(lang string) bool {
	switch {
	case strings.HasPrefix(lang, "zh"):
		return lang != "zh-HK"
	case strings.HasPrefix(lang, "ja"):
		return true
	}
	return edgeEnglish[lang]
}

// edgeRank orders the edge voice pack: Chinese first, then the named
// English regions, remaining English, Japanese, everything else.
func edgeRank(lang string) int {
	switch {
	case strings.HasPrefix(lang, "zh"):
		return 0
	case lang == "en-US":
		return 1
	case lang == "en-AU":
		return 2
	case lang == "en-CA":
		return 3
	case lang == "en-NZ":
		return 4
	case lang == "en-GB":
		return 5
	case strings.HasPrefix(lang, "en"):
		return 6
	case strings.HasPrefix(lang, "ja"):
		return 7
	}
	return 8
}

func filterVoices(raw []Voice, vendor Vendor) []Voice {
	var kept []Voice
	switch vendor {
	case VendorChrome:
		for _, v := range raw {
			if nameContains(v.Name, "google") && allowedLang(v.Lang) {
				kept = append(kept, v)
			}
		}
	case VendorEdge:
		for _, v := range raw {
			if nameContains(v.Name, "microsoft") && edgeAllowedLang(v.Lang) {
				kept = append(kept, v)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool {
			return edgeRank(kept[i].Lang) < edgeRank(kept[j].Lang)
		})
	default:
		for _, v := range raw {
			if allowedLang(v.Lang) {
				kept = append(kept, v)
			}
		}
	}
	return kept
}
