// Package ui provides the terminal front end for a running scene.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/soundstage/soundstage/internal/cache"
	"github.com/soundstage/soundstage/internal/camera"
	"github.com/soundstage/soundstage/internal/scene"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "fired!"
	ellipsis             = "…"

	// movement per key press, in seconds of walking
	moveStep = 0.15
	// mouse-style offset per look key press
	lookStep = 50
)

// Options are the collaborators the UI drives.
type Options struct {
	Scene *scene.Scene
	Cache *cache.Manager // nil when caching is disabled

	// Reverb is the wet amount applied when reverb is switched on.
	Reverb float32
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, opts Options) *tea.Program {
	log.Debug("Starting soundstage UI", "frame_interval", cfg.FrameInterval, "alt_screen", cfg.AltScreen)

	var programOpts []tea.ProgramOption
	if cfg.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, opts), programOpts...)
}

type (
	frameMsg                time.Time
	statusMessageTimeoutMsg int
)

// CacheInvalidatedMsg tells the UI that cached audio for a source file was
// dropped.
type CacheInvalidatedMsg struct {
	Path string
}

type model struct {
	cfg    Config
	scene  *scene.Scene
	cache  *cache.Manager
	keys   keyMap
	help   help.Model
	width  int
	height int

	reverb   float32
	reverbOn bool

	snap      scene.Snapshot
	lastFrame time.Time

	statusMessage string
	statusIsError bool
	statusSeq     int
}

func newModel(cfg Config, opts Options) model {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	snap := opts.Scene.Snapshot()
	return model{
		cfg:      cfg,
		scene:    opts.Scene,
		cache:    opts.Cache,
		keys:     newKeyMap(snap.Triggers),
		help:     help.New(),
		reverb:   opts.Reverb,
		reverbOn: opts.Reverb > 0,
		snap:     snap,
	}
}

func (m model) Init() tea.Cmd {
	return frameTick(m.cfg.FrameInterval)
}

func frameTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case frameMsg:
		now := time.Time(msg)
		dt := m.cfg.FrameInterval
		if !m.lastFrame.IsZero() {
			dt = now.Sub(m.lastFrame)
		}
		m.lastFrame = now
		if err := m.scene.Frame(dt); err != nil {
			log.Debug("frame error", "error", err)
		}
		m.snap = m.scene.Snapshot()
		return m, frameTick(m.cfg.FrameInterval)

	case CacheInvalidatedMsg:
		cmd := m.showStatusMessage("source changed: "+filepath.Base(msg.Path), false)
		return m, cmd

	case statusMessageTimeoutMsg:
		if int(msg) == m.statusSeq {
			m.statusMessage = ""
			m.statusIsError = false
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if desc, ok := m.keys.trigger(msg); ok {
		fired, err := m.scene.Trigger(msg.String(), time.Now())
		if err != nil {
			log.Warn("trigger failed", "key", msg.String(), "error", err)
			cmd := m.showStatusMessage(err.Error(), true)
			return m, cmd
		}
		if fired {
			cmd := m.showStatusMessage(desc, false)
			return m, cmd
		}
		return m, nil
	}

	cam := m.scene.Camera()
	switch {
	case key.Matches(msg, m.keys.Forward):
		cam.Move(camera.Forward, moveStep)
	case key.Matches(msg, m.keys.Backward):
		cam.Move(camera.Backward, moveStep)
	case key.Matches(msg, m.keys.Left):
		cam.Move(camera.Left, moveStep)
	case key.Matches(msg, m.keys.Right):
		cam.Move(camera.Right, moveStep)
	case key.Matches(msg, m.keys.Rise):
		cam.Move(camera.Up, moveStep)
	case key.Matches(msg, m.keys.Sink):
		cam.Move(camera.Down, moveStep)
	case key.Matches(msg, m.keys.LookLeft):
		cam.Look(-lookStep, 0, true)
	case key.Matches(msg, m.keys.LookRight):
		cam.Look(lookStep, 0, true)
	case key.Matches(msg, m.keys.LookUp):
		cam.Look(0, lookStep, true)
	case key.Matches(msg, m.keys.LookDown):
		cam.Look(0, -lookStep, true)
	case key.Matches(msg, m.keys.Run):
		cam.Running = !cam.Running
	case key.Matches(msg, m.keys.Reverb):
		return m.toggleReverb()
	}
	return m, nil
}

func (m model) toggleReverb() (tea.Model, tea.Cmd) {
	amount := float32(0)
	if !m.reverbOn {
		amount = m.reverb
	}
	if err := m.scene.Engine().SetReverb(amount); err != nil {
		cmd := m.showStatusMessage(err.Error(), true)
		return m, cmd
	}
	m.reverbOn = !m.reverbOn
	if m.reverbOn {
		cmd := m.showStatusMessage(fmt.Sprintf("reverb on (%.0f%%)", amount*100), false)
		return m, cmd
	}
	cmd := m.showStatusMessage("reverb off", false)
	return m, cmd
}

// showStatusMessage sets a status message that disappears after a short
// while. A newer message keeps the older timeout from clearing it.
func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	m.statusSeq++
	return waitForStatusMessageTimeout(m.statusSeq)
}

func waitForStatusMessageTimeout(seq int) tea.Cmd {
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg(seq)
	})
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, m.panelsView())
	if m.help.ShowAll {
		fmt.Fprintln(&b, m.helpView())
	} else {
		fmt.Fprintln(&b, indent(m.help.View(m.keys), 1))
	}
	m.statusBarView(&b)
	return b.String()
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for j, v := range l {
		if j > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s%s", i, v)
	}
	return b.String()
}
