// Package tui is the interactive terminal dashboard: live status, the current
// and next titles and the queue, with keys for checking, updating and adding
// titles.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"yttitle/reconcile"
	"yttitle/status"
	"yttitle/youtube"
)

// ErrUnexpectedModel is returned when the program ends with a foreign model.
var ErrUnexpectedModel = errors.New("tui: unexpected final model type")

// Controller is what the dashboard drives. *yttitle.Updater satisfies it.
type Controller interface {
	Status() status.Status
	CurrentTitle() string
	NextTitle() string
	Titles() []string
	Reload(ctx context.Context) error
	AddTitle(ctx context.Context, title string) error
	TriggerCheck(ctx context.Context) (youtube.Broadcast, error)
	TriggerUpdate(ctx context.Context) (reconcile.Result, error)
	OpenConfigLocation(ctx context.Context) error
	OpenTitlesFile(ctx context.Context) error
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
)

// maxQueueRows caps the queue panel.
const maxQueueRows = 10

type snapshot struct {
	status  status.Status
	current string
	next    string
	titles  []string
}

// actionDoneMsg carries the state after a background action. Errors are
// already reflected in the status line.
type actionDoneMsg struct {
	snap snapshot
}

type tickMsg time.Time

type model struct {
	ctx      context.Context
	ctrl     Controller
	interval time.Duration
	styles   styles

	mode  mode
	input textinput.Model
	busy  bool
	width int
	snap  snapshot
}

func newModel(ctx context.Context, ctrl Controller, interval time.Duration) model {
	input := textinput.New()
	input.Placeholder = "New title"
	input.CharLimit = 100
	input.Prompt = "> "

	// Init starts a check, so the model is busy until its result arrives.
	return model{
		ctx:      ctx,
		ctrl:     ctrl,
		interval: interval,
		styles:   newStyles(),
		input:    input,
		busy:     true,
		snap:     takeSnapshot(ctrl),
	}
}

func takeSnapshot(ctrl Controller) snapshot {
	return snapshot{
		status:  ctrl.Status(),
		current: ctrl.CurrentTitle(),
		next:    ctrl.NextTitle(),
		titles:  ctrl.Titles(),
	}
}

// action runs fn off the UI goroutine and reports the resulting state.
func (m model) action(fn func(ctx context.Context)) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		fn(ctx)
		return actionDoneMsg{snap: takeSnapshot(ctrl)}
	}
}

func (m model) check() tea.Cmd {
	return m.action(func(ctx context.Context) {
		m.ctrl.Reload(ctx)
		m.ctrl.TriggerCheck(ctx)
	})
}

func (m model) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.check(), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-6, 20)
		return m, nil
	case actionDoneMsg:
		m.busy = false
		m.snap = msg.snap
		return m, nil
	case tickMsg:
		if m.busy {
			return m, m.tick()
		}
		m.busy = true
		return m, tea.Batch(m.check(), m.tick())
	case tea.KeyMsg:
		if m.mode == modeAdd {
			return m.updateAdd(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "a":
		m.mode = modeAdd
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	if m.busy {
		return m, nil
	}

	var cmd tea.Cmd
	switch msg.String() {
	case "c":
		cmd = m.check()
	case "u":
		cmd = m.action(func(ctx context.Context) { m.ctrl.TriggerUpdate(ctx) })
	case "o":
		cmd = m.action(func(ctx context.Context) { m.ctrl.OpenConfigLocation(ctx) })
	case "t":
		cmd = m.action(func(ctx context.Context) { m.ctrl.OpenTitlesFile(ctx) })
	default:
		return m, nil
	}
	m.busy = true
	return m, cmd
}

func (m model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		title := m.input.Value()
		m.mode = modeBrowse
		m.input.Blur()
		m.input.SetValue("")
		m.busy = true
		return m, m.action(func(ctx context.Context) { m.ctrl.AddTitle(ctx, title) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.title.Render("YouTube Title Updater"))
	b.WriteString("\n\n")
	b.WriteString(SeverityStyle(m.snap.status.Severity).Render(m.snap.status.Message))
	if m.busy {
		b.WriteString(s.muted.Render("  working..."))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Current title:"), s.value.Render(m.snap.current))
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Next title:   "), s.value.Render(m.snap.next))

	var queue strings.Builder
	queue.WriteString(s.label.Render(fmt.Sprintf("Queue (%d)", len(m.snap.titles))))
	if len(m.snap.titles) == 0 {
		queue.WriteString("\n" + s.muted.Render("empty, a generated title will be used"))
	}
	for i, title := range m.snap.titles {
		if i == maxQueueRows {
			queue.WriteString("\n" + s.muted.Render(fmt.Sprintf("... %d more", len(m.snap.titles)-maxQueueRows)))
			break
		}
		fmt.Fprintf(&queue, "\n%2d. %s", i+1, title)
	}
	b.WriteString(s.panel.Render(queue.String()))
	b.WriteString("\n\n")

	if m.mode == modeAdd {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(s.muted.Render("enter add  esc cancel"))
	} else {
		b.WriteString(s.muted.Render("c check  u update  a add title  o open config  t open titles  q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// Run shows the dashboard until the user quits or ctx is done. The live
// status is re-checked every interval; zero disables the timer.
func Run(ctx context.Context, ctrl Controller, interval time.Duration, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(newModel(ctx, ctrl, interval), opts...)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if _, ok := final.(model); !ok {
		return ErrUnexpectedModel
	}
	return nil
}
