package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// DefaultOutputName is the filename every take is saved under.
const DefaultOutputName = "tts-audio.wav"

// Saver persists a finished take. Save returns the final path for display.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// FileSaver writes takes beneath Dir, defaulting to the working directory.
// The write goes through a temp file so an interrupted save never leaves a
// truncated take behind.
type FileSaver struct {
	Dir string
}

func (f FileSaver) Save(name string, data []byte) (string, error) {
	dir := f.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating take directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing take: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing take: %w", err)
	}

	log.Info("take saved", "path", path, "size", humanize.Bytes(uint64(len(data))))
	return path, nil
}
