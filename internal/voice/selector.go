package voice

import "github.com/charmbracelet/log"

// Slot is one of the two speaker-voice selections that live for the whole
// session. A zero VoiceURI means nothing is selected.
type Slot struct {
	ID       int
	Language string
	VoiceURI string
}

// Selector owns the two speaker slots and keeps their selections valid
// against the catalog. Like the catalog it is single-writer; the owning
// session calls its methods only at event boundaries.
type Selector struct {
	catalog *Catalog
	slots   [2]Slot
}

// NewSelector returns a selector with the default language preferences:
// slot 1 English, slot 2 Chinese. Selections are empty until
// AssignDefaults runs after a successful catalog population.
func NewSelector(catalog *Catalog) *Selector {
	return &Selector{
		catalog: catalog,
		slots: [2]Slot{
			{ID: 1, Language: "en"},
			{ID: 2, Language: "zh"},
		},
	}
}

// Slot returns a copy of the slot with the given id (1 or 2).
func (s *Selector) Slot(id int) (Slot, bool) {
	if id < 1 || id > len(s.slots) {
		return Slot{}, false
	}
	return s.slots[id-1], true
}

// VoiceFor resolves the slot's current selection in the catalog.
func (s *Selector) VoiceFor(id int) (Voice, bool) {
	slot, ok := s.Slot(id)
	if !ok {
		return Voice{}, false
	}
	return s.catalog.Resolve(slot.VoiceURI)
}

// AssignDefaults picks each slot's default voice from the freshly built
// catalog. Slot 1 prefers an "emma" voice, then any English voice, then the
// catalog head. Slot 2 prefers zh-TW (or a "yaoyao" voice on the edge
// flavor), then any Chinese voice, then the catalog head.
func (s *Selector) AssignDefaults() {
	s.slots[0].VoiceURI = s.defaultEnglish()
	s.slots[1].VoiceURI = s.defaultChinese()
	log.Debug("speaker defaults assigned",
		"slot1", s.slots[0].VoiceURI, "slot2", s.slots[1].VoiceURI)
}

func (s *Selector) defaultEnglish() string {
	if v, ok := s.catalog.FirstNameContains("emma"); ok {
		return v.URI
	}
	if v, ok := s.catalog.FirstLangPrefix("en"); ok {
		return v.URI
	}
	if v, ok := s.catalog.At(0); ok {
		return v.URI
	}
	return ""
}

func (s *Selector) defaultChinese() string {
	if s.catalog.Vendor() == VendorEdge {
		if v, ok := s.catalog.FirstNameContains("yaoyao"); ok {
			return v.URI
		}
	} else {
		if v, ok := s.catalog.FirstLangExact("zh-TW"); ok {
			return v.URI
		}
	}
	if v, ok := s.catalog.FirstLangPrefix("zh"); ok {
		return v.URI
	}
	if v, ok := s.catalog.At(0); ok {
		return v.URI
	}
	return ""
}

// SetLanguage records a new language preference for a slot and re-selects
// its voice from the voices matching that preference. When nothing matches
// the current selection is kept; this is not an error. A preference of
// exactly "en" prefers an "emma" voice among the candidates.
func (s *Selector) SetLanguage(id int, pref string) {
	if id < 1 || id > len(s.slots) {
		return
	}
	slot := &s.slots[id-1]
	slot.Language = pref

	cands := s.catalog.LangPrefix(pref)
	if len(cands) == 0 {
		return
	}
	if pref == "en" {
		for _, v := range cands {
			if nameContains(v.Name, "emma") {
				slot.VoiceURI = v.URI
				return
			}
		}
	}
	slot.VoiceURI = cands[0].URI
}

// Rebind re-resolves both slots after a catalog rebuild. A slot whose
// selection no longer resolves falls back to the catalog head; slot 2
// prefers the second entry when one exists so the speakers stay distinct.
func (s *Selector) Rebind() {
	if _, ok := s.catalog.Resolve(s.slots[0].VoiceURI); !ok {
		if v, ok := s.catalog.At(0); ok {
			s.slots[0].VoiceURI = v.URI
		} else {
			s.slots[0].VoiceURI = ""
		}
	}
	if _, ok := s.catalog.Resolve(s.slots[1].VoiceURI); !ok {
		v, ok := s.catalog.At(1)
		if !ok {
			v, ok = s.catalog.At(0)
		}
		if ok {
			s.slots[1].VoiceURI = v.URI
		} else {
			s.slots[1].VoiceURI = ""
		}
	}
}
