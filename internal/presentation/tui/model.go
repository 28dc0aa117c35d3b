// Package tui implements the terminal wizard that walks a session through its stages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/aretw0/caseconf/pkg/stage"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type mode int

const (
	modeBrowse mode = iota
	modePick
	modeInput
)

// Model is the bubbletea model of the wizard. It edits one session of a Manager.
type Model struct {
	ctx     context.Context
	mgr     *session.Manager
	id      string
	view    session.View
	render  Renderer
	palette Palette

	cursor  int
	mode    mode
	options []domain.Value
	choice  int
	input   textinput.Model

	status   string
	err      error
	snapshot *domain.Snapshot
	quitting bool
}

// Option configures the Model.
type Option func(*Model)

// WithRenderer sets the markdown renderer for stage descriptions.
func WithRenderer(r Renderer) Option {
	return func(m *Model) {
		m.render = r
	}
}

// WithPalette sets the color palette.
func WithPalette(p Palette) Option {
	return func(m *Model) {
		m.palette = p
	}
}

// NewModel creates a wizard for session id, which must already be open.
func NewModel(ctx context.Context, mgr *session.Manager, id string, opts ...Option) (Model, error) {
	ti := textinput.New()
	ti.CharLimit = 256

	m := Model{
		ctx:     ctx,
		mgr:     mgr,
		id:      id,
		render:  PlainRenderer,
		palette: PlainPalette(),
		input:   ti,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if err := m.refresh(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Run starts the wizard on the terminal. It returns the exported snapshot, or nil when
// the user quit before exporting.
func Run(ctx context.Context, mgr *session.Manager, id string, opts ...Option) (*domain.Snapshot, error) {
	m, err := NewModel(ctx, mgr, id, opts...)
	if err != nil {
		return nil, err
	}
	result, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", result)
	}
	return final.snapshot, nil
}

// Snapshot returns the exported snapshot, if any.
func (m Model) Snapshot() *domain.Snapshot {
	return m.snapshot
}

func (m *Model) refresh() error {
	return m.mgr.View(m.ctx, m.id, func(s *session.Session) error {
		v, err := s.Describe()
		if err != nil {
			return err
		}
		m.view = v
		return nil
	})
}

func (m *Model) mutate(fn func(*session.Session) (domain.Batch, error)) (domain.Batch, error) {
	var batch domain.Batch
	err := m.mgr.Update(m.ctx, m.id, func(s *session.Session) error {
		var err error
		batch, err = fn(s)
		return err
	})
	if rerr := m.refresh(); err == nil {
		err = rerr
	}
	m.err = err
	return batch, err
}

// stageVars lists the variables the cursor moves over: those of the active stage, or
// every variable once all stages are complete.
func (m Model) stageVars() []string {
	if m.view.ActiveStage < len(m.view.Stages) {
		return m.view.Stages[m.view.ActiveStage].Vars
	}
	keys := make([]string, len(m.view.Variables))
	for i, v := range m.view.Variables {
		keys[i] = v.Key
	}
	return keys
}

func (m Model) variable(key string) (session.VariableView, bool) {
	i := slices.IndexFunc(m.view.Variables, func(v session.VariableView) bool { return v.Key == key })
	if i < 0 {
		return session.VariableView{}, false
	}
	return m.view.Variables[i], true
}

func (m Model) current() (session.VariableView, bool) {
	keys := m.stageVars()
	if m.cursor < 0 || m.cursor >= len(keys) {
		return session.VariableView{}, false
	}
	return m.variable(keys[m.cursor])
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.mode == modeInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	if key.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modePick:
		return m.updatePick(key)
	case modeInput:
		return m.updateInput(key)
	default:
		return m.updateBrowse(key)
	}
}

func (m Model) updateBrowse(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.stageVars())-1 {
			m.cursor++
		}
	case "enter":
		return m.edit()
	case "u":
		if v, ok := m.current(); ok {
			if _, err := m.mutate(func(s *session.Session) (domain.Batch, error) { return s.Unset(v.Key) }); err == nil {
				m.status = fmt.Sprintf("%s unset", v.Key)
			}
		}
	case "n", "tab":
		if _, err := m.mutate((*session.Session).Advance); err == nil {
			m.cursor = 0
			m.status = "stage complete"
		}
	case "r":
		i := min(m.view.ActiveStage, len(m.view.Stages)-1)
		if _, err := m.mutate(func(s *session.Session) (domain.Batch, error) { return s.ResetStage(i) }); err == nil {
			m.cursor = 0
			m.status = fmt.Sprintf("stage %d reset", i+1)
		}
	case "x":
		snap, err := m.mgr.Export(m.ctx, m.id)
		m.err = err
		if err == nil {
			m.snapshot = &snap
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) edit() (tea.Model, tea.Cmd) {
	v, ok := m.current()
	if !ok || m.view.ActiveStage >= len(m.view.Stages) {
		return m, nil
	}
	m.err = nil
	m.status = ""
	if v.Domain.IsFinite() {
		m.options = v.Domain.Values()
		if len(m.options) == 0 {
			m.err = fmt.Errorf("%s has no legal value", v.Key)
			return m, nil
		}
		m.choice = max(slices.Index(m.options, v.Value), 0)
		m.mode = modePick
		return m, nil
	}
	m.input.SetValue(string(v.Value))
	m.input.Placeholder = v.Domain.String()
	m.mode = modeInput
	return m, m.input.Focus()
}

func (m Model) updatePick(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.mode = modeBrowse
	case "up", "k":
		if m.choice > 0 {
			m.choice--
		}
	case "down", "j":
		if m.choice < len(m.options)-1 {
			m.choice++
		}
	case "enter":
		m.assign(m.options[m.choice])
		m.mode = modeBrowse
	}
	return m, nil
}

func (m Model) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.mode = modeBrowse
		return m, nil
	case tea.KeyEnter:
		m.input.Blur()
		m.mode = modeBrowse
		m.assign(domain.Value(m.input.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m *Model) assign(value domain.Value) {
	v, ok := m.current()
	if !ok {
		return
	}
	batch, err := m.mutate(func(s *session.Session) (domain.Batch, error) { return s.SetValue(v.Key, value) })
	if err != nil {
		return
	}
	m.status = fmt.Sprintf("%s = %s", v.Key, value)
	if cleared := batch.Cleared(); len(cleared) > 0 {
		m.status += fmt.Sprintf(" (cleared %s)", strings.Join(cleared, ", "))
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	p := m.palette
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n\n", p.Active(m.view.Blueprint), p.Faint("session "+m.view.ID))
	for _, st := range m.view.Stages {
		title := fmt.Sprintf("%d. %s", st.Index+1, st.Title)
		switch st.Status {
		case stage.StatusComplete:
			b.WriteString(p.Legal("✓ " + title))
		case stage.StatusActive:
			b.WriteString(p.Active("▸ " + title))
		default:
			b.WriteString(p.Faint("  " + title))
		}
		b.WriteString("  ")
	}
	b.WriteString("\n\n")

	if m.view.ActiveStage < len(m.view.Stages) {
		if desc := m.view.Stages[m.view.ActiveStage].Description; desc != "" {
			out, err := m.render(desc)
			if err != nil {
				out = desc
			}
			b.WriteString(strings.TrimRight(out, "\n"))
			b.WriteString("\n\n")
		}
	} else {
		b.WriteString(p.Legal("All stages complete. Press x to export."))
		b.WriteString("\n\n")
	}

	for i, key := range m.stageVars() {
		v, _ := m.variable(key)
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		value := p.Faint("<unset>")
		if v.Value.IsSet() {
			value = p.Value(string(v.Value))
		}
		legal := p.Faint(v.Domain.String())
		if v.Blocked {
			legal = p.Error("blocked")
		}
		fmt.Fprintf(&b, "%s%-16s %s  %s\n", cursor, key, value, legal)

		if i == m.cursor && m.mode == modePick {
			for j, opt := range m.options {
				mark := "    "
				if j == m.choice {
					mark = "  ● "
				}
				line := mark + p.Legal(string(opt))
				if help := v.Help[opt]; help != "" {
					line += "  " + p.Faint(help)
				}
				b.WriteString(line + "\n")
			}
		}
		if i == m.cursor && m.mode == modeInput {
			b.WriteString("    " + m.input.View() + "\n")
		}
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(p.Error(describeError(m.err)) + "\n")
	} else if m.status != "" {
		b.WriteString(p.Faint(m.status) + "\n")
	}
	b.WriteString(p.Faint("↑/↓ move • enter edit • u unset • n next stage • r reset stage • x export • q quit"))
	b.WriteString("\n")
	return b.String()
}

// describeError renders rejection details for the user.
func describeError(err error) string {
	var dv *domain.DomainViolationError
	if errors.As(err, &dv) && len(dv.Reasons) > 0 {
		return fmt.Sprintf("%s=%s rejected: %s", dv.Key, dv.Value, strings.Join(dv.Reasons, "; "))
	}
	var inc *domain.StageIncompleteError
	if errors.As(err, &inc) {
		msg := fmt.Sprintf("stage %q incomplete", inc.Title)
		if len(inc.Missing) > 0 {
			msg += ": missing " + strings.Join(inc.Missing, ", ")
		}
		if len(inc.Blocked) > 0 {
			msg += ": blocked " + strings.Join(inc.Blocked, ", ")
		}
		return msg
	}
	return err.Error()
}
