package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/soundstage/soundstage/internal/sound"
)

const (
	sideBySideWidth = 100
	idColumnWidth   = 12
)

func (m model) panelsView() string {
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.listenerPanel(),
		m.cachePanel(),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.soundsPanel(),
		m.eventsPanel(),
	)
	if m.width > 0 && m.width < sideBySideWidth {
		return lipgloss.JoinVertical(lipgloss.Left, left, right)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func panel(title string, lines []string) string {
	return panelStyle.Render(panelTitleStyle(title) + "\n" + strings.Join(lines, "\n"))
}

func formatVec(v sound.Vec3) string {
	return fmt.Sprintf("(%6.1f, %6.1f, %6.1f)", v.X(), v.Y(), v.Z())
}

func (m model) listenerPanel() string {
	l := m.snap.Listener
	gait := "walking"
	if m.snap.Running {
		gait = "running"
	}
	reverb := "off"
	if m.reverbOn {
		reverb = fmt.Sprintf("%.0f%%", m.reverb*100)
	}
	return panel("Listener", []string{
		"position " + formatVec(l.Position),
		"forward  " + formatVec(l.Forward),
		"up       " + formatVec(l.Up),
		dimStyle(fmt.Sprintf("%s, reverb %s", gait, reverb)),
	})
}

func (m model) soundsPanel() string {
	if len(m.snap.Sounds) == 0 {
		return panel("Sounds", []string{dimStyle("none")})
	}
	lines := make([]string, 0, len(m.snap.Sounds))
	for _, s := range m.snap.Sounds {
		id := runewidth.FillRight(runewidth.Truncate(s.ID, idColumnWidth, ellipsis), idColumnWidth)
		flags := "   "
		if s.Loop {
			flags = "⟳  "
		}
		where := "2D"
		if s.Spatial {
			where = formatVec(s.Position)
		}
		line := fmt.Sprintf("%s %s%s %s", stateIcon(s.Loaded, s.Playing), flags, id, where)
		if s.Playing {
			line = playingStyle(line)
		} else if !s.Loaded {
			line = dimStyle(line)
		}
		lines = append(lines, line)
	}
	return panel("Sounds", lines)
}

func (m model) eventsPanel() string {
	if len(m.snap.Events) == 0 {
		return panel("Events", []string{dimStyle("none")})
	}
	lines := make([]string, 0, len(m.snap.Events))
	for _, e := range m.snap.Events {
		name := runewidth.FillRight(runewidth.Truncate(e.Name, 2*idColumnWidth, ellipsis), 2*idColumnWidth)
		line := fmt.Sprintf("%s %s ×%d", stateIcon(true, e.Playing || e.Instances > 1), name, e.Instances)
		if e.Playing {
			line = playingStyle(line)
		}
		lines = append(lines, line)
	}
	return panel("Events", lines)
}

func (m model) cachePanel() string {
	if m.cache == nil {
		return panel("Cache", []string{dimStyle("disabled")})
	}
	st := m.cache.Stats()
	lines := []string{
		fmt.Sprintf("memory %s / %s, %d items",
			humanize.Bytes(uint64(st.Memory.Size)), humanize.Bytes(uint64(st.Memory.Capacity)), st.Memory.ItemCount),
	}
	if st.Disk.Capacity > 0 {
		lines = append(lines, fmt.Sprintf("disk   %s / %s, %d items",
			humanize.Bytes(uint64(st.Disk.Size)), humanize.Bytes(uint64(st.Disk.Capacity)), st.Disk.ItemCount))
	}
	total := st.Hits + st.Misses
	rate := 0.0
	if total > 0 {
		rate = float64(st.Hits) / float64(total) * 100
	}
	lines = append(lines, dimStyle(fmt.Sprintf("hits %d (L1 %d, L2 %d), misses %d, %.0f%%",
		st.Hits, st.L1Hits, st.L2Hits, st.Misses, rate)))
	return panel("Cache", lines)
}

func stateIcon(loaded, playing bool) string {
	switch {
	case playing:
		return "▶"
	case loaded:
		return "■"
	default:
		return "✗"
	}
}

func (m model) helpView() string {
	s := "\n" + m.help.View(m.keys)
	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	// Logo
	logo := logoView()

	// Clock
	clock := statusBarClockStyle(fmt.Sprintf(" %5.1fs ", m.snap.Elapsed.Seconds()))

	// "Help" note
	helpNote := statusBarHelpStyle(" ? Help ")

	// Note
	note := m.statusMessage
	if !showStatusMessage {
		st := m.snap.Stats
		note = fmt.Sprintf("%d sounds, %d loops playing, %d events, %d instances",
			st.Sounds, st.Channels, st.Events, st.Instances)
	}
	width := m.width
	if width <= 0 {
		width = sideBySideWidth
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(clock)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	switch {
	case showStatusMessage && m.statusIsError:
		style = statusBarErrorStyle
	case showStatusMessage:
		style = statusBarMessageStyle
	}
	note = style(note)

	// Empty space
	padding := max(0,
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(clock)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		clock,
		helpNote,
	)
}
