package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/duet/internal/script"
	"github.com/dgnsrekt/duet/utils"
)

var speakCmd = &cobra.Command{
	Use:   "speak [FILE]",
	Short: "Speak a dialog script without opening the reader",
	Long: paragraph(fmt.Sprintf("\n%s a script aloud and exit. With no FILE, or with \"-\", the script is read from stdin. Markdown files are flattened to plain dialog lines first.",
		keyword("Speak"))),
	Example: paragraph("duet speak episode.md\ncat episode.txt | duet speak"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		text, err := readScript(arg)
		if err != nil {
			return err
		}
		return speakText(text)
	},
}

// readScript loads dialog text from a file or stdin. Markdown sources are
// stripped of frontmatter and flattened so speaker tags line up.
func readScript(arg string) (string, error) {
	if arg == "" || arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("unable to read script: %w", err)
	}
	if utils.IsMarkdownFile(arg) {
		return script.Flatten(utils.RemoveFrontmatter(b)), nil
	}
	return string(b), nil
}

// speakText builds a session and speaks until the plan is exhausted or the
// user interrupts.
func speakText(text string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, cleanup, err := buildSession()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := sess.Init(ctx); err != nil {
		return err
	}
	applyLanguagePrefs(sess)

	if err := sess.Speak(ctx, text); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
