package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/dgnsrekt/duet/internal/voice"
)

var voicesCmd = &cobra.Command{
	Use:     "voices [FILTER]",
	Short:   "List the voices the engine offers",
	Example: paragraph("duet voices\nduet voices zh\nduet -e gtranslate voices"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		sess, cleanup, err := buildSession()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := sess.Init(ctx); err != nil {
			return err
		}
		applyLanguagePrefs(sess)

		voices := sess.Voices()
		if len(args) == 1 {
			voices = filterVoices(voices, args[0])
		}

		slot1, _ := sess.VoiceFor(1)
		slot2, _ := sess.VoiceFor(2)

		for _, v := range voices {
			langName := display.English.Languages().Name(language.Make(v.Lang))

			var marks []string
			if v.URI == slot1.URI {
				marks = append(marks, "speaker 1")
			}
			if v.URI == slot2.URI {
				marks = append(marks, "speaker 2")
			}
			mark := ""
			if len(marks) > 0 {
				mark = "  " + keyword("("+strings.Join(marks, ", ")+")")
			}

			fmt.Printf("%-8s  %-28s  %s%s\n", v.Lang, langName, v.Name, mark)
		}
		return nil
	},
}

// filterVoices fuzzy-matches against name and language, best match first.
func filterVoices(voices []voice.Voice, query string) []voice.Voice {
	targets := make([]string, len(voices))
	for i, v := range voices {
		targets[i] = v.Name + " " + v.Lang
	}
	ranks := fuzzy.Find(query, targets)
	sort.Stable(ranks)

	out := make([]voice.Voice, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, voices[r.Index])
	}
	return out
}
