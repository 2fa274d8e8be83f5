package ui

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/duet/internal/script"
	"github.com/dgnsrekt/duet/internal/session"
	"github.com/dgnsrekt/duet/internal/voice"
	"github.com/dgnsrekt/duet/utils"
)

type (
	contentRenderedMsg      string
	reloadMsg               struct{ localPath string }
	editorFinishedMsg       struct{ err error }
	speakDoneMsg            struct{ err error }
	recordDoneMsg           struct{ err error }
	statusMessageTimeoutMsg struct{}
)

// dialogDoc is a script loaded into the reader.
type dialogDoc struct {
	localPath string
	note      string
	body      string
}

// speakText is what gets handed to the session: markdown flattens to plain
// dialog lines, everything else is spoken as written.
func (d dialogDoc) speakText() string {
	if utils.IsMarkdownFile(d.localPath) {
		return script.Flatten([]byte(d.body))
	}
	return d.body
}

func loadDocument(path, note string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errMsg{err}
		}
		if note == "" {
			note = filepath.Base(path)
		}
		if utils.IsMarkdownFile(path) {
			data = utils.RemoveFrontmatter(data)
		}
		return docLoadedMsg{dialogDoc{localPath: path, note: note, body: string(data)}}
	}
}

type readerModel struct {
	common   *commonModel
	viewport viewport.Model

	doc      dialogDoc
	plan     []script.Line
	rendered string

	status   session.Status
	showHelp bool

	// Scroll offset to restore after the next render, used by reloads.
	pendingOffset int

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newReaderModel(common *commonModel) readerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	return readerModel{
		common:   common,
		viewport: vp,
	}
}

func (m *readerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight
	if m.showHelp {
		m.viewport.Height -= statusBarHeight + strings.Count(m.helpView(), "\n")
	}
}

func (m *readerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

// setDocument loads a new script into the reader and kicks off rendering.
// The file watcher is only armed when the path actually changed; a reload of
// the current document reuses the watcher that announced it.
func (m *readerModel) setDocument(doc dialogDoc) tea.Cmd {
	watch := doc.localPath != "" && doc.localPath != m.doc.localPath
	offset := 0
	if !watch {
		offset = m.viewport.YOffset
	}
	m.unload()
	m.doc = doc
	m.plan = script.Parse(doc.speakText())
	m.pendingOffset = offset

	cmds := []tea.Cmd{renderWithGlamour(*m, doc.body)}
	if watch {
		cmds = append(cmds, watchFile(doc.localPath))
	}
	return tea.Batch(cmds...)
}

func (m *readerModel) unload() {
	if m.showHelp {
		m.toggleHelp()
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessage = ""
	m.doc = dialogDoc{}
	m.plan = nil
	m.rendered = ""
	m.viewport.SetContent("")
	m.viewport.YOffset = 0
}

// handleStatus records the latest session status. The viewport content only
// needs rebuilding when the spoken line moved.
func (m *readerModel) handleStatus(st session.Status) tea.Cmd {
	moved := !sameLine(m.status.Line, st.Line)
	m.status = st
	if moved {
		m.refreshContent()
	}
	return nil
}

func sameLine(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *readerModel) refreshContent() {
	content := m.rendered
	if m.status.State == session.StateDispatching && m.status.Line != nil {
		n := *m.status.Line
		if n >= 1 && n <= len(m.plan) {
			content = highlightLine(content, m.plan[n-1].Text)
		}
	}
	m.viewport.SetContent(content)
}

// highlightLine marks the dialog line currently being spoken. Glamour may
// have wrapped or restyled the text, so a line that cannot be found in the
// rendered output is simply left unmarked.
func highlightLine(rendered, text string) string {
	needle := strings.TrimSpace(text)
	if needle == "" {
		return rendered
	}
	i := strings.Index(rendered, needle)
	if i < 0 {
		return rendered
	}
	return rendered[:i] + speakingLineStyle.Render(needle) + rendered[i+len(needle):]
}

// showStatusMessage sets a note in the status bar for a few seconds.
func (m *readerModel) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func (m readerModel) update(msg tea.Msg) (readerModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		case "?":
			m.toggleHelp()
			return m, nil
		case " ":
			return m, m.speakCmd()
		case "R":
			return m, m.recordCmd()
		case "s":
			m.common.sess.Stop()
			return m, nil
		case "1":
			return m, m.cycleLanguage(1)
		case "2":
			return m, m.cycleLanguage(2)
		case "c":
			// Copy using OSC 52
			termenv.Copy(m.doc.body)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(m.doc.body)
			return m, m.showStatusMessage("Copied contents")
		case "e":
			if m.doc.localPath == "" {
				return m, nil
			}
			return m, openEditor(m.doc.localPath)
		case "r":
			if m.doc.localPath == "" {
				return m, nil
			}
			return m, loadDocument(m.doc.localPath, m.doc.note)
		}

	case contentRenderedMsg:
		m.rendered = string(msg)
		m.refreshContent()
		if m.pendingOffset > 0 {
			m.viewport.SetYOffset(m.pendingOffset)
			m.pendingOffset = 0
		}

	case reloadMsg:
		if msg.localPath == m.doc.localPath {
			cmds = append(cmds,
				loadDocument(m.doc.localPath, m.doc.note),
				watchFile(m.doc.localPath),
			)
		}

	case editorFinishedMsg:
		if msg.err != nil {
			log.Error("editor returned an error", "err", msg.err)
			return m, m.showStatusMessage("Editor failed")
		}
		cmds = append(cmds, loadDocument(m.doc.localPath, m.doc.note))

	case speakDoneMsg:
		if msg.err != nil {
			log.Debug("speak finished", "err", msg.err)
		}

	case recordDoneMsg:
		if msg.err == nil {
			cmds = append(cmds, m.showStatusMessage("Saved "+m.common.sess.Output()))
		} else {
			log.Debug("record finished", "err", msg.err)
		}

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
	}

	vp, cmd := m.viewport.Update(msg)
	m.viewport = vp
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// speakCmd runs the blocking dispatch on the command goroutine; progress
// arrives through the session status callback.
func (m readerModel) speakCmd() tea.Cmd {
	sess := m.common.sess
	text := m.doc.speakText()
	return func() tea.Msg {
		return speakDoneMsg{sess.Speak(context.Background(), text)}
	}
}

func (m readerModel) recordCmd() tea.Cmd {
	sess := m.common.sess
	text := m.doc.speakText()
	return func() tea.Msg {
		return recordDoneMsg{sess.Record(context.Background(), text)}
	}
}

// cycleLanguage advances a speaker slot to the next language present in the
// catalog and reports the voice that ended up bound.
func (m *readerModel) cycleLanguage(id int) tea.Cmd {
	prefixes := languagePrefixes(m.common.sess.Voices())
	if len(prefixes) == 0 {
		return m.showStatusMessage("No voices available")
	}
	cur := ""
	if slot, ok := m.common.sess.Slot(id); ok {
		cur = slot.Language
	}
	next := prefixes[0]
	for i, p := range prefixes {
		if p == cur {
			next = prefixes[(i+1)%len(prefixes)]
			break
		}
	}
	m.common.sess.SetLanguage(id, next)

	label := next
	if v, ok := m.common.sess.VoiceFor(id); ok {
		label = v.String()
	}
	return m.showStatusMessage(fmt.Sprintf("Speaker %d: %s", id, label))
}

// languagePrefixes lists the distinct primary language subtags of the
// catalog, in catalog order.
func languagePrefixes(voices []voice.Voice) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range voices {
		p, _, _ := strings.Cut(v.Lang, "-")
		p = strings.ToLower(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func openEditor(path string) tea.Cmd {
	cmd, err := editor.Cmd("Duet", path)
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{err}
	})
}

// watchFile blocks until the document changes on disk, then asks for a
// reload. Editors that save by rename replace the inode, so the watch is on
// the directory rather than the file itself.
func watchFile(path string) tea.Cmd {
	return func() tea.Msg {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Error("could not watch file", "path", path, "err", err)
			return nil
		}
		defer w.Close() //nolint:errcheck

		if err := w.Add(filepath.Dir(path)); err != nil {
			log.Error("could not watch file", "path", path, "err", err)
			return nil
		}

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if ev.Name == path && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					return reloadMsg{localPath: path}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				log.Error("file watch error", "path", path, "err", err)
			}
		}
	}
}

func renderWithGlamour(m readerModel, body string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(m, body)
		if err != nil {
			log.Error("error rendering with glamour", "err", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

func glamourRender(m readerModel, body string) (string, error) {
	if !m.common.cfg.GlamourEnabled {
		return body, nil
	}

	isCode := !utils.IsMarkdownFile(m.doc.localPath)
	width := max(0, min(int(m.common.cfg.GlamourMaxWidth), m.viewport.Width)) //nolint:gosec

	r, err := glamour.NewTermRenderer(
		utils.GlamourStyle(m.common.cfg.GlamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	if isCode {
		body = utils.WrapCodeBlock(body, filepath.Ext(m.doc.localPath))
	}
	out, err := r.Render(body)
	if err != nil {
		return "", err
	}

	// Trim trailing whitespace glamour leaves on each line so the speaking
	// highlight can span the full match.
	lines := strings.Split(out, "\n")
	var content strings.Builder
	for i, s := range lines {
		content.WriteString(strings.TrimRight(s, " "))
		if i+1 < len(lines) {
			content.WriteRune('\n')
		}
	}
	return content.String(), nil
}

func (m readerModel) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

// sessionNote describes what the session is doing right now, for the status
// bar. Empty when idle.
func (m readerModel) sessionNote() string {
	switch m.status.State {
	case session.StateAwaitingGrant:
		return "waiting for capture"
	case session.StateCapturing:
		return "capture armed"
	case session.StateDispatching:
		if m.status.Line != nil {
			return fmt.Sprintf("speaking %d/%d", *m.status.Line, len(m.plan))
		}
		return "speaking"
	case session.StateFinalizing:
		return "saving take"
	default:
		return ""
	}
}

func (m readerModel) statusBarView(b *strings.Builder) {
	const (
		minPercent               float64 = 0.0
		maxPercent               float64 = 1.0
		percentToStringMagnitude float64 = 100.0
	)

	showStatusMessage := m.statusMessage != ""
	// The session keeps a single mutable message; show it whenever set, the
	// machine may still be idle after a rejected dispatch.
	showError := m.status.Message != ""

	logo := duetLogoView()

	// Scroll percent
	percent := math.Max(minPercent, math.Min(maxPercent, m.viewport.ScrollPercent()))
	scrollPercent := statusBarScrollPosStyle(fmt.Sprintf(" %3.f%% ", percent*percentToStringMagnitude))

	// "Help" note
	helpNote := statusBarHelpStyle(" ? Help ")

	// Note
	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case showError:
		note = m.status.Message
	default:
		note = m.doc.note
		if note == "" {
			note = "(untitled)"
		}
		if info := m.sessionNote(); info != "" {
			note += " " + ellipsis + " " + info
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	switch {
	case showStatusMessage:
		note = statusBarMessageStyle(note)
	case showError:
		note = statusBarErrorStyle(note)
	default:
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	switch {
	case showStatusMessage:
		emptySpace = statusBarMessageStyle(emptySpace)
	case showError:
		emptySpace = statusBarErrorStyle(emptySpace)
	default:
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		scrollPercent,
		helpNote,
	)
}

func (m readerModel) helpView() (s string) {
	col1 := []string{
		"space   speak dialog",
		"R       record dialog to wav",
		"s       stop speaking",
		"1/2     cycle speaker language",
		"e       edit this document",
		"c       copy contents",
		"r       reload",
		"esc     back to files",
		"q       quit",
	}

	s += "\n"
	s += "k/↑      up                  " + col1[0] + "\n"
	s += "j/↓      down                " + col1[1] + "\n"
	s += "b/pgup   page up             " + col1[2] + "\n"
	s += "f/pgdn   page down           " + col1[3] + "\n"
	s += "u        ½ page up           " + col1[4] + "\n"
	s += "d        ½ page down         " + col1[5] + "\n"
	s += "g/home   go to top           " + col1[6] + "\n"
	s += "G/end    go to bottom        " + col1[7] + "\n"
	s += "?        close help          " + col1[8]

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			l := runewidth.StringWidth(lines[i])
			n := max(0, m.common.width-l)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
