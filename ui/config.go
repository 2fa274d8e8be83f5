package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles    bool
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool
	HomeDir         string `env:"HOME"`

	// Working directory or dialog file path.
	Path string

	// For debugging the UI.
	GlamourEnabled bool `env:"DUET_ENABLE_GLAMOUR" envDefault:"true"`
}
