// Package main provides the entry point for the Duet CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/duet/internal/audio"
	"github.com/dgnsrekt/duet/internal/cache"
	"github.com/dgnsrekt/duet/internal/capture"
	"github.com/dgnsrekt/duet/internal/session"
	"github.com/dgnsrekt/duet/internal/synth/engines"
	"github.com/dgnsrekt/duet/ui"
	"github.com/dgnsrekt/duet/utils"
)

const appName = "duet"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	style        string
	width        uint
	showAllFiles bool
	mouse        bool
	engineName   string

	rootCmd = &cobra.Command{
		Use:   "duet [FILE|DIR]",
		Short: "Read dialog scripts aloud, with two voices",
		Long: paragraph(
			fmt.Sprintf("\nRead dialog scripts aloud. Lines tagged %s and %s each get their own voice; a recording of the whole take can be saved as WAV.",
				keyword("Speaker 1:"), keyword("Speaker 2:")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = utils.ExpandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	showAllFiles = viper.GetBool("all")
	engineName = viper.GetString("engine")

	if !slices.Contains(engines.Names, engineName) {
		return fmt.Errorf("unknown engine %q (have %v)", engineName, engines.Names)
	}
	if engineName == "wyoming" && viper.GetString("wyoming.endpoint") == "" {
		return errors.New("the wyoming engine requires wyoming.endpoint to be set")
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(_ *cobra.Command, args []string) error {
	// if stdin is a pipe then speak the piped text directly. note that you
	// can also explicitly use `duet speak -` to read from stdin.
	if yes, err := stdinIsPipe(); err != nil {
		return err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("unable to read from stdin: %w", err)
		}
		return speakText(string(b))
	}

	switch len(args) {
	// TUI running on cwd
	case 0:
		return runTUI("")

	// TUI on a directory or a single script
	default:
		p, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("unable to open source: %w", err)
		}
		return runTUI(p)
	}
}

// buildSession wires the speech engine, the clip cache and the capture
// backend into a session. The caller runs Init and the returned cleanup.
func buildSession() (*session.Session, func(), error) {
	player := audio.NewPlayer()

	cacheDir := viper.GetString("cache.dir")
	if cacheDir == "" {
		scope := gap.NewScope(gap.User, appName)
		dir, err := scope.CacheDir()
		if err != nil {
			dir = filepath.Join(os.TempDir(), appName)
		}
		cacheDir = dir
	} else {
		cacheDir = utils.ExpandPath(cacheDir)
	}

	var clips *cache.Clips
	if capacity := viper.GetInt64("cache.max_size"); capacity > 0 {
		c, err := cache.New(cacheDir, capacity*humanize.MiByte)
		if err != nil {
			log.Warn("clip cache disabled", "dir", cacheDir, "err", err)
		} else {
			clips = c
		}
	}
	cleanup := func() {
		if clips != nil {
			_ = clips.Close()
		}
	}

	eng, err := engines.New(engineName, engines.Options{
		WyomingEndpoint: viper.GetString("wyoming.endpoint"),
	}, player, clips)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var src capture.Source
	switch backend := viper.GetString("capture"); backend {
	case "", "loopback":
		src = capture.NewLoopbackSource(player, audio.DefaultRate)
	case "pulse":
		src = capture.NewPulseSource(audio.DefaultRate)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown capture backend %q (have loopback, pulse)", backend)
	}

	sess := session.New(session.Config{
		Engine:     eng,
		Capture:    src,
		SampleRate: audio.DefaultRate,
		Output:     viper.GetString("output"),
	})
	return sess, cleanup, nil
}

// applyLanguagePrefs reselects speaker voices for configured languages. The
// built-in defaults already ran through default assignment, so only explicit
// overrides trigger a reselection.
func applyLanguagePrefs(sess *session.Session) {
	if l := viper.GetString("speaker1.language"); l != "" && l != "en" {
		sess.SetLanguage(1, l)
	}
	if l := viper.GetString("speaker2.language"); l != "" && l != "zh" {
		sess.SetLanguage(2, l)
	}
}

func runTUI(path string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or auto if unset
	if err := validateStyle(cfg.GlamourStyle); err != nil {
		cfg.GlamourStyle = style
	}

	cfg.Path = path
	cfg.ShowAllFiles = showAllFiles
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse

	sess, cleanup, err := buildSession()
	if err != nil {
		return err
	}
	defer cleanup()

	// A failed voice listing is not fatal here; the message stays visible
	// in the status bar.
	if err := sess.Init(context.Background()); err != nil {
		log.Warn("voice catalog unavailable", "err", err)
	}
	applyLanguagePrefs(sess)

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, sess).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	// A .env in the working directory may carry DUET_* variables.
	_ = godotenv.Load()

	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "e", "", "speech engine (edge, gtranslate, wyoming)")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "show system files and directories (TUI-mode only)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("all", false)
	viper.SetDefault("mouse", false)
	viper.SetDefault("engine", "edge")
	viper.SetDefault("wyoming.endpoint", "")
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_size", 100)
	viper.SetDefault("output", session.DefaultOutputName)
	viper.SetDefault("capture", "loopback")
	viper.SetDefault("speaker1.language", "en")
	viper.SetDefault("speaker2.language", "zh")

	rootCmd.AddCommand(configCmd, manCmd, speakCmd, recordCmd, voicesCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("DUET_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "duet.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
