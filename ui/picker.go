package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type filterState int

const (
	unfiltered filterState = iota
	filtering
	filterApplied
)

// dialogFile is a script the picker found on disk.
type dialogFile struct {
	path    string
	note    string
	modtime time.Time

	// The note lowercased and stripped of diacritics, for fuzzy matching.
	filterValue string
}

func (f *dialogFile) buildFilterValue() {
	note, err := normalize(f.note)
	if err != nil {
		f.filterValue = strings.ToLower(f.note)
		return
	}
	f.filterValue = note
}

// normalize drops diacritics so that "ö" matches "o" while filtering. Mn is
// the unicode key for nonspacing marks.
func normalize(in string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, strings.ToLower(in))
	return s, err
}

// filesSource adapts a file list to the fuzzy matcher.
type filesSource []dialogFile

func (s filesSource) String(i int) string { return s[i].filterValue }
func (s filesSource) Len() int            { return len(s) }

// filterFiles ranks files against the query, best match first. An empty
// query returns the list unchanged.
func filterFiles(files []dialogFile, query string) []dialogFile {
	if strings.TrimSpace(query) == "" {
		return files
	}
	q, err := normalize(query)
	if err != nil {
		q = strings.ToLower(query)
	}
	ranks := fuzzy.FindFrom(q, filesSource(files))
	sort.Stable(ranks)
	out := make([]dialogFile, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, files[r.Index])
	}
	return out
}

type pickerModel struct {
	common *commonModel

	files  []dialogFile
	cwd    string
	loaded bool

	cursor      int
	filterState filterState
	filterInput textinput.Model
	spinner     spinner.Model
}

func newPickerModel(common *commonModel) pickerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(statusBarNoteFg)

	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(fuchsia)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(fuchsia)

	return pickerModel{
		common:      common,
		spinner:     sp,
		filterInput: ti,
	}
}

func (m pickerModel) filtering() bool     { return m.filterState == filtering }
func (m pickerModel) filterApplied() bool { return m.filterState == filterApplied }

func (m *pickerModel) setSize(w, _ int) {
	m.filterInput.Width = max(0, w-10)
}

func (m *pickerModel) reset() {
	m.files = nil
	m.loaded = false
	m.cursor = 0
	m.filterState = unfiltered
	m.filterInput.Reset()
}

// addFile inserts a found script, keeping the list ordered newest first.
func (m *pickerModel) addFile(f dialogFile) {
	f.buildFilterValue()
	m.files = append(m.files, f)
	sort.SliceStable(m.files, func(i, j int) bool {
		return m.files[i].modtime.After(m.files[j].modtime)
	})
}

func (m pickerModel) visible() []dialogFile {
	if m.filterState == unfiltered {
		return m.files
	}
	return filterFiles(m.files, m.filterInput.Value())
}

func (m *pickerModel) moveCursor(delta int) {
	n := len(m.visible())
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(n-1, max(0, m.cursor+delta))
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filterState == filtering {
			switch msg.String() {
			case "esc":
				m.filterState = unfiltered
				m.filterInput.Reset()
				m.cursor = 0
				return m, nil
			case "enter", "tab":
				if m.filterInput.Value() == "" {
					m.filterState = unfiltered
				} else {
					m.filterState = filterApplied
				}
				m.filterInput.Blur()
				m.moveCursor(0)
				return m, nil
			case "up", "down":
				// fall through to cursor movement below
			default:
				ti, cmd := m.filterInput.Update(msg)
				m.filterInput = ti
				m.cursor = 0
				return m, cmd
			}
		}

		switch msg.String() {
		case "/":
			m.filterState = filtering
			m.filterInput.Focus()
			return m, textinput.Blink
		case "esc":
			if m.filterState != unfiltered {
				m.filterState = unfiltered
				m.filterInput.Reset()
				m.cursor = 0
			}
			return m, nil
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "enter":
			files := m.visible()
			if len(files) == 0 || m.cursor >= len(files) {
				return m, nil
			}
			f := files[m.cursor]
			return m, loadDocument(f.path, f.note)
		}

	case spinner.TickMsg:
		if !m.loaded {
			sp, cmd := m.spinner.Update(msg)
			m.spinner = sp
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m pickerModel) View() string {
	var b strings.Builder
	files := m.visible()

	fmt.Fprintf(&b, "\n  %s", duetLogoView())
	switch {
	case m.filterState != unfiltered:
		fmt.Fprintf(&b, "  %s", m.filterInput.View())
	case m.cwd != "":
		fmt.Fprintf(&b, "  %s", subtleStyle.Render(m.prettyPath(m.cwd)))
	}
	b.WriteString("\n\n")

	switch {
	case !m.loaded && len(m.files) == 0:
		fmt.Fprintf(&b, "  %s Looking for scripts%s\n", m.spinner.View(), ellipsis)
	case len(files) == 0:
		fmt.Fprintf(&b, "  %s\n", subtleStyle.Render("No scripts found."))
	default:
		start, end := m.window(len(files))
		for i := start; i < end; i++ {
			b.WriteString(m.itemView(files[i], i == m.cursor))
			b.WriteRune('\n')
		}
	}

	b.WriteString("\n" + m.helpLine() + "\n")
	return b.String()
}

func (m pickerModel) itemView(f dialogFile, selected bool) string {
	when := subtleStyle.Render(humanize.Time(f.modtime))
	line := "    " + pickerItemStyle.Render(f.note) + "  " + when
	if selected {
		line = "  " + pickerSelectedStyle.Render("> "+f.note) + "  " + when
	}
	if m.common.width > 0 {
		line = truncate.StringWithTail(line, uint(m.common.width), ellipsis) //nolint:gosec
	}
	return line
}

// window returns the slice of the list to draw so the cursor stays visible.
func (m pickerModel) window(n int) (start, end int) {
	rows := max(1, m.common.height-6)
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end = min(n, start+rows)
	return start, end
}

// prettyPath shortens the home directory to ~ for display.
func (m pickerModel) prettyPath(path string) string {
	home := m.common.cfg.HomeDir
	if home != "" && strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}

func (m pickerModel) helpLine() string {
	if m.filterState == filtering {
		return "  " + subtleStyle.Render("enter: apply filter • esc: cancel")
	}
	return "  " + subtleStyle.Render("enter: open • /: filter • r: refresh • q: quit")
}
