package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modePrompt = Prompt{
	Title: "Select a mode",
	Choices: []Choice{
		{Key: "1", Label: "Send all"},
		{Key: "2", Label: "Watch folder"},
		{Key: "3", Label: "Quit"},
	},
	Default: 0,
	Timeout: 3 * time.Second,
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m countdownModel, msg tea.Msg) (countdownModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(countdownModel)
	require.True(t, ok)
	return out, cmd
}

func TestCountdownModel_Keys(t *testing.T) {
	tests := []struct {
		name      string
		msg       tea.KeyMsg
		chosen    int
		cancelled bool
		done      bool
		counting  bool
	}{
		{name: "enter picks default", msg: tea.KeyMsg{Type: tea.KeyEnter}, chosen: 0, done: true},
		{name: "digit picks choice", msg: runes("2"), chosen: 1, done: true},
		{name: "esc cancels", msg: tea.KeyMsg{Type: tea.KeyEsc}, chosen: -1, cancelled: true, done: true},
		{name: "other key stops countdown", msg: runes("x"), chosen: -1, counting: false},
		{name: "unknown digit stops countdown", msg: runes("9"), chosen: -1, counting: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCountdownModel(modePrompt, time.Second)
			require.True(t, m.counting)

			m, cmd := update(t, m, tt.msg)
			assert.Equal(t, tt.chosen, m.chosen)
			assert.Equal(t, tt.cancelled, m.cancelled)
			assert.Equal(t, tt.done, m.done)
			if tt.done {
				require.NotNil(t, cmd)
				assert.Empty(t, m.View())
			} else {
				assert.Equal(t, tt.counting, m.counting)
				assert.Nil(t, cmd)
			}
		})
	}
}

func TestCountdownModel_TicksToDefault(t *testing.T) {
	m := newCountdownModel(modePrompt, time.Second)
	assert.Equal(t, 3, m.remaining)
	assert.Contains(t, m.View(), "in 3s")

	m, cmd := update(t, m, tickMsg{})
	assert.Equal(t, 2, m.remaining)
	assert.NotNil(t, cmd)

	m, _ = update(t, m, tickMsg{})
	m, _ = update(t, m, tickMsg{})
	assert.True(t, m.done)
	assert.Equal(t, 0, m.chosen)
}

func TestCountdownModel_StoppedCountdownIgnoresTicks(t *testing.T) {
	m := newCountdownModel(modePrompt, time.Second)
	m, _ = update(t, m, runes("x"))

	m, cmd := update(t, m, tickMsg{})
	assert.Nil(t, cmd)
	assert.Equal(t, 3, m.remaining)
	assert.False(t, m.done)
	assert.NotContains(t, m.View(), "Choosing")
}

func TestCountdownModel_PartialSecondsRoundUp(t *testing.T) {
	p := modePrompt
	p.Timeout = 1500 * time.Millisecond
	assert.Equal(t, 2, newCountdownModel(p, time.Second).remaining)

	p.Timeout = -1
	m := newCountdownModel(p, time.Second)
	assert.False(t, m.counting)
	assert.Nil(t, m.Init())
}

func TestChooser_NonInteractive(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    int
		wantErr error
	}{
		{name: "countdown uses default", timeout: 5 * time.Second, want: 0},
		{name: "zero uses default", timeout: 0, want: 0},
		{name: "waiting cannot proceed", timeout: -1, want: -1, wantErr: ErrNoInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := &Chooser{In: strings.NewReader(""), Out: &out}

			p := modePrompt
			p.Timeout = tt.timeout
			got, err := c.Choose(context.Background(), p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out.String(), "Send all")
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChooser_InvalidPrompt(t *testing.T) {
	c := &Chooser{Out: io.Discard}

	_, err := c.Choose(context.Background(), Prompt{})
	assert.Error(t, err)

	p := modePrompt
	p.Default = 5
	_, err = c.Choose(context.Background(), p)
	assert.Error(t, err)
}

func TestChooser_InteractiveDigit(t *testing.T) {
	var out bytes.Buffer
	c := &Chooser{In: strings.NewReader("2"), Out: &out, Interactive: true, interval: 10 * time.Millisecond}

	p := modePrompt
	p.Timeout = -1
	got, err := c.Choose(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Contains(t, out.String(), "Watch folder")
}

func TestChooser_InteractiveCountdownExpires(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	c := &Chooser{In: pr, Out: io.Discard, Interactive: true, interval: 10 * time.Millisecond}

	p := modePrompt
	p.Timeout = 2 * time.Second
	got, err := c.Choose(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
