package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/duet/internal/session"
)

var outputFlag string

var recordCmd = &cobra.Command{
	Use:   "record [FILE]",
	Short: "Speak a dialog script and save the take as WAV",
	Long: paragraph(fmt.Sprintf("\n%s a script while capturing the audio, then write the take as a 16-bit mono WAV file. An interrupt stops the dispatch early but still saves what was captured.",
		keyword("Speak"))),
	Example: paragraph("duet record episode.md\nduet record -o take-02.wav episode.md"),
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

		if err := sess.Record(ctx, text); err != nil {
			// A cancelled take is still finalized and saved.
			if !errors.Is(err, context.Canceled) {
				return err
			}
		}
		fmt.Println("Wrote", sess.Output())
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&outputFlag, "output", "o", session.DefaultOutputName, "output WAV file")
	_ = viper.BindPFlag("output", recordCmd.Flags().Lookup("output"))
}
