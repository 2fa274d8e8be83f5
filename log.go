package main

import (
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// setupLog sends logging to the file named by DUET_LOGFILE, or discards it.
// The returned closer must run after the command finishes.
func setupLog() (func() error, error) {
	if file := os.Getenv("DUET_LOGFILE"); file != "" {
		f, err := tea.LogToFile(file, appName)
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetTimeFormat(time.Kitchen)
		return f.Close, nil
	}
	log.SetOutput(io.Discard)
	return func() error { return nil }, nil
}
