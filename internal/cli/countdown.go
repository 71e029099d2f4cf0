package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

var (
	// ErrCancelled is returned when the user dismisses a prompt with Esc.
	ErrCancelled = errors.New("selection canceled")
	// ErrNoInput is returned when a prompt waits for a choice but stdin is
	// not a terminal.
	ErrNoInput = errors.New("no interactive input available")
)

// Choice is one numbered option of a Prompt.
type Choice struct {
	Key   string
	Label string
}

// Prompt describes a menu with an optional countdown. Timeout > 0 picks
// Default when it runs out, 0 picks Default immediately and < 0 waits.
type Prompt struct {
	Title   string
	Choices []Choice
	Default int
	Timeout time.Duration
}

func (p Prompt) defaultChoice() Choice {
	if p.Default < 0 || p.Default >= len(p.Choices) {
		return Choice{}
	}
	return p.Choices[p.Default]
}

type countdownKeyMap struct {
	Accept key.Binding
	Cancel key.Binding
}

func defaultCountdownKeyMap() countdownKeyMap {
	return countdownKeyMap{
		Accept: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "default"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

type tickMsg struct{}

type countdownModel struct {
	prompt    Prompt
	keys      countdownKeyMap
	interval  time.Duration
	remaining int
	chosen    int
	counting  bool
	cancelled bool
	done      bool
}

func newCountdownModel(p Prompt, interval time.Duration) countdownModel {
	m := countdownModel{
		prompt:   p,
		keys:     defaultCountdownKeyMap(),
		interval: interval,
		chosen:   -1,
	}
	if p.Timeout > 0 {
		m.counting = true
		m.remaining = int((p.Timeout + time.Second - 1) / time.Second)
	}
	return m
}

func (m countdownModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m countdownModel) Init() tea.Cmd {
	if m.counting {
		return m.tick()
	}
	return nil
}

func (m countdownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}

	switch msg := msg.(type) {
	case tickMsg:
		if !m.counting {
			return m, nil
		}
		m.remaining--
		if m.remaining <= 0 {
			return m.choose(m.prompt.Default)
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Accept):
			return m.choose(m.prompt.Default)
		case key.Matches(msg, m.keys.Cancel):
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		}
		for i, c := range m.prompt.Choices {
			if msg.String() == c.Key {
				return m.choose(i)
			}
		}
		// Any other key stops the countdown so the user can read.
		m.counting = false
	}
	return m, nil
}

func (m countdownModel) choose(i int) (tea.Model, tea.Cmd) {
	m.chosen = i
	m.done = true
	return m, tea.Quit
}

func (m countdownModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	if m.prompt.Title != "" {
		b.WriteString(PromptStyle.Render(m.prompt.Title))
		b.WriteString("\n")
	}
	for i, c := range m.prompt.Choices {
		line := fmt.Sprintf("  %s. %s", c.Key, c.Label)
		if i == m.prompt.Default {
			line = SelectedStyle.Render(line + " (default)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	def := m.prompt.defaultChoice()
	switch {
	case m.counting:
		b.WriteString(SubtleStyle.Render(fmt.Sprintf(
			"Choosing %s in %ds. Press a number to choose, Enter for the default, Esc to cancel, any other key to wait.",
			def.Key, m.remaining)))
	default:
		b.WriteString(SubtleStyle.Render("Press a number to choose, Enter for the default, Esc to cancel."))
	}
	b.WriteString("\n")
	return b.String()
}

// Chooser shows prompts on a terminal.
type Chooser struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool
	interval    time.Duration
}

// NewChooser creates a Chooser over stdin and stdout.
func NewChooser() *Chooser {
	fd := os.Stdin.Fd()
	return &Chooser{
		In:          os.Stdin,
		Out:         os.Stdout,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		interval:    time.Second,
	}
}

// Choose returns the index of the selected choice.
func (c *Chooser) Choose(ctx context.Context, p Prompt) (int, error) {
	if len(p.Choices) == 0 {
		return -1, errors.New("prompt has no choices")
	}
	if p.Default < 0 || p.Default >= len(p.Choices) {
		return -1, fmt.Errorf("default choice %d out of range", p.Default)
	}

	if p.Timeout == 0 || (!c.Interactive && p.Timeout > 0) {
		c.announce(p)
		return p.Default, nil
	}
	if !c.Interactive {
		return -1, ErrNoInput
	}

	interval := c.interval
	if interval <= 0 {
		interval = time.Second
	}

	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	program := tea.NewProgram(
		newCountdownModel(p, interval),
		tea.WithContext(ctx),
		tea.WithInput(c.In),
		tea.WithOutput(out),
	)
	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, fmt.Errorf("prompt failed: %w", err)
	}

	m, ok := final.(countdownModel)
	if !ok || m.cancelled || m.chosen < 0 {
		return -1, ErrCancelled
	}
	fmt.Fprintln(out, FormatPrompt(p.Title)+p.Choices[m.chosen].Label)
	return m.chosen, nil
}

func (c *Chooser) announce(p Prompt) {
	if c.Out == nil {
		return
	}
	fmt.Fprintln(c.Out, FormatPrompt(p.Title)+p.defaultChoice().Label)
}
