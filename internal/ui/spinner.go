package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Operation is the work shown behind a spinner
type Operation func(ctx context.Context) error

// searchDoneMsg is sent when the operation returns
type searchDoneMsg struct {
	err error
}

// searchState is shared by every copy of a SearchModel
type searchState struct {
	once sync.Once
	done chan struct{}
	err  error
}

// SearchModel shows a spinner with elapsed time while an operation runs.
// ctrl+c cancels the operation's context; the program quits once the
// operation has returned so its endpoint is always released.
type SearchModel struct {
	Spinner spinner.Model
	Label   string
	Start   time.Time
	Done    bool
	Err     error

	ctx    context.Context
	cancel context.CancelFunc
	op     Operation
	state  *searchState
}

// NewSearchModel creates a spinner model for op
func NewSearchModel(ctx context.Context, label string, op Operation) SearchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return SearchModel{
		Spinner: s,
		Label:   label,
		Start:   time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		op:      op,
		state:   &searchState{done: make(chan struct{})},
	}
}

// Init implements tea.Model
func (m SearchModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.run)
}

// start runs the operation in the background, at most once
func (m SearchModel) start() {
	m.state.once.Do(func() {
		go func() {
			defer close(m.state.done)
			defer m.cancel()
			m.state.err = m.op(m.ctx)
		}()
	})
}

func (m SearchModel) run() tea.Msg {
	m.start()
	<-m.state.done
	return searchDoneMsg{err: m.state.err}
}

// Update implements tea.Model
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case searchDoneMsg:
		m.Done = true
		m.Err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m SearchModel) View() string {
	if m.Done {
		return ""
	}
	elapsed := lipgloss.NewStyle().Foreground(MutedColor).
		Render(fmt.Sprintf("(%s)", time.Since(m.Start).Round(100*time.Millisecond)))
	return fmt.Sprintf("  %s %s %s\n", m.Spinner.View(), m.Label, elapsed)
}

// RunWithSpinner runs op while a spinner is drawn on out. With animate
// false (output is not a terminal) op runs directly and nothing is drawn.
// Signals are left to the caller's context; op has always returned by the
// time RunWithSpinner does.
func RunWithSpinner(ctx context.Context, out io.Writer, animate bool, label string, op Operation) error {
	if !animate {
		return op(ctx)
	}
	return runSpinner(ctx, label, op, tea.WithOutput(out), tea.WithoutSignalHandler())
}

func runSpinner(ctx context.Context, label string, op Operation, opts ...tea.ProgramOption) error {
	m := NewSearchModel(ctx, label, op)
	m.start()

	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		m.cancel()
		<-m.state.done
		return fmt.Errorf("spinner failed: %w", err)
	}
	<-m.state.done
	return m.state.err
}
