// Package tui is the terminal player for simviz recordings, built on
// bubbletea. Keys become playback commands; decoded frames arrive from a
// playback.Runner and are drawn with half-block cells.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/simviz/internal/playback"
)

// Player is the part of playback.Runner the model drives.
type Player interface {
	Send(cmd playback.Command) error
	Frames() <-chan playback.Frame
	State() playback.State
}

type frameMsg playback.Frame

type statusMsg time.Time

// statusInterval refreshes pause and end markers that change without a new
// frame.
const statusInterval = 100 * time.Millisecond

// framesClosedMsg is delivered if the player stops publishing.
type framesClosedMsg struct{}

// Model is the bubbletea model of the player.
type Model struct {
	player   Player
	frame    playback.Frame
	hasFrame bool
	state    playback.State
	width    int
	height   int
	quitting bool
}

// NewModel returns a model driving player.
func NewModel(player Player) *Model {
	return &Model{
		player: player,
		state:  player.State(),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForFrame(m.player),
		tickEvery(statusInterval),
	)
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return statusMsg(t)
	})
}

func waitForFrame(p Player) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-p.Frames()
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg(f)
	}
}

// KeyCommand maps a key to a playback command.
func KeyCommand(key string) (playback.Command, bool) {
	switch key {
	case " ", "space":
		return playback.TogglePause(), true
	case "right", "l":
		return playback.StepForward(), true
	case "left", "h":
		return playback.StepBackward(), true
	case "home", "g":
		return playback.Seek(0), true
	case "end", "G":
		// Seek clamps to the last known frame.
		return playback.Seek(math.MaxInt), true
	}
	return playback.Command{}, false
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" || key == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
		if cmd, ok := KeyCommand(key); ok {
			// A full queue means the runner is behind; dropping the key is fine.
			_ = m.player.Send(cmd)
		}
		return m, nil

	case frameMsg:
		m.frame = playback.Frame(msg)
		m.hasFrame = true
		m.state = m.player.State()
		return m, waitForFrame(m.player)

	case statusMsg:
		if m.quitting {
			return m, nil
		}
		m.state = m.player.State()
		return m, tickEvery(statusInterval)

	case framesClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// Title returns the status line: the displayed step followed by end and
// pause markers.
func (m *Model) Title() string {
	title := fmt.Sprintf("Step: %d", m.frame.Index)
	if m.frame.AtEnd {
		title += " (end)"
	}
	if m.state.Paused {
		title += " (paused)"
	}
	return title
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	width, height := m.width, m.height
	if width == 0 || height == 0 {
		width, height = 80, 24
	}

	var sb strings.Builder
	sb.WriteString(m.renderStatus())
	sb.WriteByte('\n')

	if m.hasFrame {
		sb.WriteString(RenderFrame(m.frame.Data, int(m.state.Width), int(m.state.Height), width, height-2))
	} else {
		sb.WriteString(HelpStyle.Render("loading..."))
	}

	sb.WriteByte('\n')
	sb.WriteString(HelpStyle.Render("space pause • ←/→ step • g/G first/last • q quit"))
	return sb.String()
}

func (m *Model) renderStatus() string {
	status := PlayingStyle.Render("▶ playing")
	if m.frame.AtEnd {
		status = EndStyle.Render("■ end")
	} else if m.state.Paused {
		status = PausedStyle.Render("⏸ paused")
	}
	return TitleStyle.Render(m.Title()) + "  " + status
}
