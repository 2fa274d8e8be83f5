// Package ui implements the terminal interface: a file picker for finding
// dialog scripts and a reader that plays them through the speech session.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
	te "github.com/muesli/termenv"

	"github.com/dgnsrekt/duet/internal/session"
)

const (
	statusBarHeight      = 1
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

var (
	// Script files the picker lists.
	extensions = []string{"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown", "*.txt"}

	// Paths the picker skips unless --all is set.
	ignorePatterns = []string{"node_modules", ".*"}
)

type state int

const (
	stateShowPicker state = iota
	stateShowReader
)

// commonModel is shared between the picker and the reader.
type commonModel struct {
	cfg    Config
	sess   *session.Session
	width  int
	height int
}

type (
	statusMsg         session.Status
	errMsg            struct{ err error }
	initFileSearchMsg struct {
		cwd string
		ch  chan gitcha.SearchResult
	}
	foundFileMsg          gitcha.SearchResult
	fileSearchFinishedMsg struct{}
	docLoadedMsg          struct{ doc dialogDoc }
)

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	picker pickerModel
	reader readerModel

	// standalone means the program was opened directly on a file, so there
	// is no picker to fall back to.
	standalone bool

	// Receives files found while walking the start directory.
	fileFinder chan gitcha.SearchResult
}

// NewProgram builds the Bubble Tea program and routes session status updates
// into it. The session must be initialized before this is called; status
// callbacks only start firing once a speak or record begins.
func NewProgram(cfg Config, sess *session.Session) *tea.Program {
	log.Debug("starting duet ui", "path", cfg.Path)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(newModel(cfg, sess), opts...)
	sess.OnStatus(func(st session.Status) {
		p.Send(statusMsg(st))
	})
	return p
}

func newModel(cfg Config, sess *session.Session) tea.Model {
	if cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	common := &commonModel{
		cfg:  cfg,
		sess: sess,
	}

	m := model{
		common: common,
		state:  stateShowPicker,
		picker: newPickerModel(common),
		reader: newReaderModel(common),
	}
	if cfg.Path != "" {
		if info, err := os.Stat(cfg.Path); err == nil && !info.IsDir() {
			m.state = stateShowReader
			m.standalone = true
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	if m.standalone {
		return loadDocument(m.common.cfg.Path, "")
	}
	return tea.Batch(findDialogFiles(m), m.picker.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// While the filter input has focus "q" is just a letter.
			if msg.String() == "q" && m.state == stateShowPicker && m.picker.filtering() {
				break
			}
			m.common.sess.Stop()
			return m, tea.Quit

		case "esc":
			switch m.state {
			case stateShowReader:
				if m.standalone {
					m.common.sess.Stop()
					return m, tea.Quit
				}
				m.common.sess.Stop()
				m.reader.unload()
				m.state = stateShowPicker
				return m, nil
			case stateShowPicker:
				if m.picker.filtering() || m.picker.filterApplied() {
					break // the picker clears its own filter
				}
				m.common.sess.Stop()
				return m, tea.Quit
			}

		case "r":
			// Restart the file search from the picker.
			if m.state == stateShowPicker && !m.picker.filtering() {
				m.picker.reset()
				return m, tea.Batch(findDialogFiles(m), m.picker.spinner.Tick)
			}
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.picker.setSize(msg.Width, msg.Height)
		m.reader.setSize(msg.Width, msg.Height)

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case statusMsg:
		cmds = append(cmds, m.reader.handleStatus(session.Status(msg)))

	case initFileSearchMsg:
		m.fileFinder = msg.ch
		m.picker.cwd = msg.cwd
		cmds = append(cmds, findNextFile(m))

	case foundFileMsg:
		m.picker.addFile(fileFromSearch(m.picker.cwd, gitcha.SearchResult(msg)))
		cmds = append(cmds, findNextFile(m))

	case fileSearchFinishedMsg:
		m.picker.loaded = true

	case docLoadedMsg:
		m.state = stateShowReader
		cmds = append(cmds, m.reader.setDocument(msg.doc))
	}

	switch m.state {
	case stateShowPicker:
		picker, cmd := m.picker.update(msg)
		m.picker = picker
		cmds = append(cmds, cmd)
	case stateShowReader:
		reader, cmd := m.reader.update(msg)
		m.reader = reader
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	switch m.state {
	case stateShowReader:
		return m.reader.View()
	default:
		return m.picker.View()
	}
}

// findDialogFiles kicks off the directory walk for speakable scripts.
func findDialogFiles(m model) tea.Cmd {
	return func() tea.Msg {
		cwd := m.common.cfg.Path
		if cwd == "" {
			var err error
			cwd, err = os.Getwd()
			if err != nil {
				return errMsg{err}
			}
		}
		log.Debug("looking for scripts", "cwd", cwd)

		var (
			ch  chan gitcha.SearchResult
			err error
		)
		if m.common.cfg.ShowAllFiles {
			ch, err = gitcha.FindAllFilesExcept(cwd, extensions, nil)
		} else {
			ch, err = gitcha.FindFilesExcept(cwd, extensions, ignorePatterns)
		}
		if err != nil {
			return errMsg{err}
		}
		return initFileSearchMsg{cwd: cwd, ch: ch}
	}
}

// findNextFile receives one result from the file walk, to be re-issued until
// the channel closes.
func findNextFile(m model) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-m.fileFinder
		if ok {
			return foundFileMsg(res)
		}
		return fileSearchFinishedMsg{}
	}
}

func fileFromSearch(cwd string, res gitcha.SearchResult) dialogFile {
	return dialogFile{
		path:    res.Path,
		note:    strings.ReplaceAll(res.Path, cwd+string(os.PathSeparator), ""),
		modtime: res.Info.ModTime(),
	}
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
