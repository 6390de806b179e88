// Package tui implements the terminal quick-check editor. Every edit is
// handed to the draft coordinator, which debounces it into an autosave.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/quickcheck"
	"github.com/Iron-Ham/quickcheck/internal/tui/styles"
	"github.com/Iron-Ham/quickcheck/internal/util"
)

// Coordinator is the part of *draft.Coordinator[quickcheck.Form] the editor
// drives.
type Coordinator interface {
	Initialize(ctx context.Context, opts draft.InitOptions[quickcheck.Form]) (quickcheck.Form, error)
	CreateDraft(ctx context.Context, form quickcheck.Form) (string, error)
	UpdateDraft(ctx context.Context, form quickcheck.Form) error
	ScheduleAutosave(form quickcheck.Form)
	SubmitDraft(ctx context.Context, form quickcheck.Form) error
	CancelDraft(ctx context.Context, action draft.CancelAction) error
	State() draft.Snapshot
}

// Options configures the editor.
type Options struct {
	UserID string
	// DraftID opens a specific draft instead of recovering.
	DraftID string
	// Seed is the form used if a new draft is created.
	Seed           quickcheck.Form
	Theme          string
	ShowSaveTimes  bool
	RequestTimeout time.Duration
}

type mode int

const (
	modeLoading mode = iota
	modeEdit
	modeConfirmSubmit
	modeConfirmDiscard
	modeBusy
	modeDone
)

// Model is the bubbletea model of the editor.
type Model struct {
	ctx    context.Context
	coord  Coordinator
	opts   Options
	styles *styles.Styles
	keys   keyMap
	help   help.Model
	title  cases.Caser

	form   quickcheck.Form
	inputs []textinput.Model
	focus  int
	mode   mode

	snapshot   draft.Snapshot
	message    string
	messageErr bool
	lockLost   bool
	takenBy    string
	outcome    string
	forceQuit  bool
	width      int
}

// NewModel creates the editor model. Recovery starts in Init.
func NewModel(ctx context.Context, coord Coordinator, opts Options) Model {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = draft.DefaultRequestTimeout
	}
	if opts.Seed.Items == nil {
		opts.Seed = quickcheck.New()
	}

	inputs := make([]textinput.Model, len(quickcheck.TextFields))
	for i, field := range quickcheck.TextFields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = field
		in.CharLimit = 200
		in.Width = 40
		inputs[i] = in
	}

	return Model{
		ctx:    ctx,
		coord:  coord,
		opts:   opts,
		styles: styles.ForTheme(opts.Theme),
		keys:   defaultKeyMap(),
		help:   help.New(),
		title:  cases.Title(language.English),
		form:   opts.Seed,
		inputs: inputs,
		mode:   modeLoading,
	}
}

// Init starts recovery and the status refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initialize(), tick(), textinput.Blink)
}

// Form returns the form as currently edited.
func (m Model) Form() quickcheck.Form { return m.form }

// Outcome is "submitted", "deleted" or "archived" once the draft was
// finished from the editor, and empty otherwise.
func (m Model) Outcome() string { return m.outcome }

func (m Model) initialize() tea.Cmd {
	coord, opts, ctx := m.coord, m.opts, m.ctx
	return func() tea.Msg {
		form, err := coord.Initialize(ctx, draft.InitOptions[quickcheck.Form]{DraftID: opts.DraftID, Seed: opts.Seed})
		return initDoneMsg{form: form, err: err}
	}
}

// run executes a coordinator call off the UI goroutine.
func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	parent, timeout := m.ctx, m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.snapshot = m.coord.State()
		if m.mode == modeDone {
			return m, nil
		}
		return m, tick()

	case initDoneMsg:
		return m.handleInit(msg)

	case opDoneMsg:
		return m.handleOpDone(msg)

	case savedMsg:
		m.snapshot = m.coord.State()
		if !msg.autosave {
			m.setMessage("Saved", false)
		}
		return m, nil

	case saveFailedMsg:
		m.snapshot = m.coord.State()
		m.setMessage(fmt.Sprintf("Save failed, will retry on the next edit: %v", msg.err), true)
		return m, nil

	case lockLostMsg:
		m.lockLost = true
		m.takenBy = msg.newDraftID
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.mode == modeEdit && m.focusOnText() {
		return m.updateInput(msg)
	}
	return m, nil
}

func (m Model) handleInit(msg initDoneMsg) (tea.Model, tea.Cmd) {
	m.snapshot = m.coord.State()
	m.mode = modeEdit
	if msg.err != nil {
		m.setMessage(fmt.Sprintf("Could not open a draft: %v (ctrl+s retries)", msg.err), true)
	} else {
		m.form = msg.form
	}
	if m.form.Items == nil {
		m.form = m.opts.Seed
	}
	m.loadInputs()
	return m, m.setFocus(0)
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.snapshot = m.coord.State()
	if msg.err != nil {
		m.mode = modeEdit
		if msg.op == "quit" {
			m.forceQuit = true
			m.setMessage(fmt.Sprintf("Final save failed: %v (esc again quits without saving)", msg.err), true)
			return m, nil
		}
		m.setMessage(fmt.Sprintf("%s failed: %v", m.title.String(msg.op), msg.err), true)
		return m, nil
	}
	switch msg.op {
	case "submit":
		m.outcome = "submitted"
	case "delete":
		m.outcome = "deleted"
	case "archive":
		m.outcome = "archived"
	case "quit":
		m.mode = modeDone
		return m, tea.Quit
	default:
		m.mode = modeEdit
		if msg.skipped {
			m.setMessage("Not saved, another save is running or this session lost the draft", true)
			return m, nil
		}
		m.setMessage("Saved", false)
		return m, nil
	}
	m.mode = modeDone
	m.setMessage(fmt.Sprintf("Quick check %s", m.outcome), false)
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeLoading, modeBusy, modeDone:
		if msg.Type == tea.KeyCtrlC {
			m.mode = modeDone
			return m, tea.Quit
		}
		return m, nil

	case modeConfirmSubmit:
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.mode = modeBusy
			form := m.form
			return m, m.run("submit", func(ctx context.Context) error { return m.coord.SubmitDraft(ctx, form) })
		case key.Matches(msg, m.keys.No):
			m.mode = modeEdit
			m.clearMessage()
		}
		return m, nil

	case modeConfirmDiscard:
		switch {
		case key.Matches(msg, m.keys.Delete):
			m.mode = modeBusy
			return m, m.run("delete", func(ctx context.Context) error { return m.coord.CancelDraft(ctx, draft.CancelDelete) })
		case key.Matches(msg, m.keys.Archive):
			m.mode = modeBusy
			return m, m.run("archive", func(ctx context.Context) error { return m.coord.CancelDraft(ctx, draft.CancelArchive) })
		case key.Matches(msg, m.keys.No):
			m.mode = modeEdit
			m.clearMessage()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Next):
		return m, m.setFocus(m.focus + 1)
	case key.Matches(msg, m.keys.Prev):
		return m, m.setFocus(m.focus - 1)
	case key.Matches(msg, m.keys.Save):
		return m.save()
	case m.lockLost && (key.Matches(msg, m.keys.Submit) || key.Matches(msg, m.keys.Discard)):
		m.setMessage("Another session owns this draft; it can only be finished there", true)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if !m.snapshot.HasDraft() {
			m.setMessage("Nothing to submit yet, save first", true)
			return m, nil
		}
		m.mode = modeConfirmSubmit
		m.setMessage("Submit this quick check? (y/n)", false)
		return m, nil
	case key.Matches(msg, m.keys.Discard):
		if !m.snapshot.HasDraft() {
			m.setMessage("No draft to discard", true)
			return m, nil
		}
		m.mode = modeConfirmDiscard
		m.setMessage("Discard draft: (d)elete, (a)rchive or (esc) keep editing", false)
		return m, nil
	}

	if m.focusOnText() {
		return m.updateInput(msg)
	}
	return m.handleItemKey(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if !m.snapshot.HasDraft() || m.lockLost || m.forceQuit {
		m.mode = modeDone
		return m, tea.Quit
	}
	// Flush the latest edits so a pending debounce is not lost on exit.
	m.mode = modeBusy
	form := m.form
	return m, m.run("quit", func(ctx context.Context) error { return m.coord.UpdateDraft(ctx, form) })
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.lockLost {
		m.setMessage("Another session owns this draft; changes are not saved", true)
		return m, nil
	}
	form := m.form
	if !m.snapshot.HasDraft() {
		return m, m.run("create", func(ctx context.Context) error {
			_, err := m.coord.CreateDraft(ctx, form)
			return err
		})
	}
	coord, parent, timeout := m.coord, m.ctx, m.opts.RequestTimeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		before := coord.State().Saves
		err := coord.UpdateDraft(ctx, form)
		return opDoneMsg{op: "save", err: err, skipped: err == nil && coord.State().Saves == before}
	}
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	idx := m.focus
	before := m.inputs[idx].Value()
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	after := m.inputs[idx].Value()
	if after == before {
		return m, cmd
	}

	form, err := m.form.Set(quickcheck.TextFields[idx], after)
	if err != nil {
		m.setMessage(err.Error(), true)
		return m, cmd
	}
	m.clearMessage()
	m.edited(form)
	return m, cmd
}

func (m Model) handleItemKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.focus - len(m.inputs)
	if idx < 0 || idx >= len(m.form.Items) {
		return m, nil
	}
	item := m.form.Items[idx]

	var next quickcheck.Result
	switch {
	case key.Matches(msg, m.keys.Cycle):
		next = cycleResult(item.Result, 1)
	case key.Matches(msg, m.keys.Back):
		next = cycleResult(item.Result, -1)
	case key.Matches(msg, m.keys.Clear):
		next = quickcheck.ResultUnchecked
	default:
		return m, nil
	}

	form, err := m.form.Set(quickcheck.ItemPrefix+item.Key, string(next))
	if err != nil {
		m.setMessage(err.Error(), true)
		return m, nil
	}
	m.edited(form)
	return m, nil
}

// edited records a new form and schedules an autosave for it.
func (m *Model) edited(form quickcheck.Form) {
	m.form = form
	if m.lockLost {
		return
	}
	m.coord.ScheduleAutosave(form)
	m.snapshot = m.coord.State()
}

var resultCycle = []quickcheck.Result{
	quickcheck.ResultUnchecked,
	quickcheck.ResultOK,
	quickcheck.ResultAttention,
	quickcheck.ResultUrgent,
}

func cycleResult(r quickcheck.Result, step int) quickcheck.Result {
	i := 0
	for j, c := range resultCycle {
		if c == r {
			i = j
			break
		}
	}
	n := len(resultCycle)
	return resultCycle[((i+step)%n+n)%n]
}

func (m *Model) loadInputs() {
	for i, field := range quickcheck.TextFields {
		value, _ := m.form.Get(field)
		m.inputs[i].SetValue(value)
	}
}

func (m Model) rows() int {
	return len(m.inputs) + len(m.form.Items)
}

func (m Model) focusOnText() bool {
	return m.focus < len(m.inputs)
}

func (m *Model) setFocus(i int) tea.Cmd {
	n := m.rows()
	if n == 0 {
		return nil
	}
	m.focus = (i%n + n) % n
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == m.focus {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
}

func (m *Model) clearMessage() {
	m.message = ""
	m.messageErr = false
}

// View implements tea.Model.
func (m Model) View() string {
	s := m.styles
	if m.mode == modeLoading {
		return s.Title.Render("Quick check") + "\n" + s.Muted.Render("Opening draft…") + "\n"
	}

	var b strings.Builder
	b.WriteString(s.Title.Render("Quick check · " + m.form.Title()))
	if m.opts.UserID != "" {
		b.WriteString("  " + s.Subtitle.Render(m.opts.UserID))
	}
	b.WriteString("\n")

	if m.lockLost {
		text := "Another session took over this draft. Edits here are no longer saved."
		if m.takenBy != "" && m.takenBy != m.snapshot.DraftID {
			text = fmt.Sprintf("Another session is now editing draft %s. Edits here are no longer saved.", util.ShortID(m.takenBy))
		}
		b.WriteString(s.Banner.Render(text) + "\n")
	}

	var rows []string
	for i, field := range quickcheck.TextFields {
		rows = append(rows, m.renderRow(i, m.fieldLabel(field), m.inputs[i].View()))
	}
	rows = append(rows, s.Section.Render("Checklist"))
	for j, item := range m.form.Items {
		label := string(item.Result)
		if label == "" {
			label = "—"
		}
		rows = append(rows, m.renderRow(len(m.inputs)+j, item.Label, s.Result(string(item.Result)).Render(label)))
	}
	b.WriteString(s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.message != "" {
		style := s.Success
		if m.messageErr {
			style = s.Error
		}
		b.WriteString(style.Render(m.message) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return util.FitLines(b.String(), m.width)
}

func (m Model) fieldLabel(field string) string {
	switch field {
	case quickcheck.FieldVIN:
		return "VIN"
	case quickcheck.FieldTechnician:
		return "Tech"
	}
	return m.title.String(field)
}

func (m Model) renderRow(idx int, label, value string) string {
	s := m.styles
	cursor := "  "
	labelStyle := s.Label
	if idx == m.focus {
		cursor = s.Cursor.Render("› ")
		labelStyle = s.FocusedLabel
	}
	return cursor + labelStyle.Render(label) + value
}

func (m Model) statusLine() string {
	s := m.styles
	snap := m.snapshot

	parts := []string{m.title.String(snap.Status.String())}
	if snap.HasDraft() {
		parts = append(parts, "draft "+util.ShortID(snap.DraftID))
	} else {
		parts = append(parts, "no draft")
	}
	switch {
	case snap.IsAutoSaving:
		parts = append(parts, "autosaving…")
	case snap.AutosavePending:
		parts = append(parts, "unsaved changes")
	case m.opts.ShowSaveTimes && !snap.LastSaveAt.IsZero():
		parts = append(parts, "saved "+snap.LastSaveAt.Local().Format("15:04:05"))
	}
	counts := m.form.Counts()
	parts = append(parts, fmt.Sprintf("%d ok · %d attention · %d urgent",
		counts[quickcheck.ResultOK], counts[quickcheck.ResultAttention], counts[quickcheck.ResultUrgent]))
	if pending := len(m.form.PendingUploads()); pending > 0 {
		parts = append(parts, fmt.Sprintf("%d photos not uploaded", pending))
	}

	line := s.StatusBar.Render(strings.Join(parts, "  │  "))
	if snap.Status == draft.StatusError && snap.LastError != nil && !m.messageErr {
		line += "\n" + s.Warning.Render(snap.LastError.Error())
	}
	return line
}
