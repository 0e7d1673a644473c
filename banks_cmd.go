package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/soundstage/soundstage/internal/audio"
	"github.com/soundstage/soundstage/internal/config"
)

const (
	bankPattern   = "*.bank.toml"
	maxTableWidth = 120
)

var (
	bankFind     string
	bankAllFiles bool

	banksCmd = &cobra.Command{
		Use:   "banks [PATH...]",
		Short: "List the events of soundbank manifests",
		Long: paragraph(
			fmt.Sprintf("\nFind %s manifests below the given paths and list their events. Without a path the scene's assets directory is searched.", keyword(bankPattern)),
		),
		Example: paragraph("soundstage banks\nsoundstage banks ./assets --find step\nsoundstage banks sfx.bank.toml"),
		RunE:    runBanks,
	}
)

// bankEntry is a discovered manifest, or the reason it could not be read.
type bankEntry struct {
	path string
	bank *audio.Bank
	err  error
}

func runBanks(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		dir := config.ExpandPath(viper.GetString("scene.assets_dir"))
		if dir == "" {
			dir = "."
		}
		args = []string{dir}
	}

	var paths []string
	for _, arg := range args {
		found, err := findBanks(arg, bankAllFiles)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s files found in %s", bankPattern, strings.Join(args, ", "))
	}

	entries := loadBanks(paths)
	out, err := renderMarkdown(bankMarkdown(entries, bankFind))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// findBanks returns the manifests at path. Directories are searched
// recursively, honouring .gitignore unless all is set.
func findBanks(path string, all bool) ([]string, error) {
	path = config.ExpandPath(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(path, []string{bankPattern}, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(path, []string{bankPattern}, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", path, err)
	}

	var paths []string
	for res := range ch {
		paths = append(paths, res.Path)
	}
	sort.Strings(paths)
	log.Debug("Found banks", "dir", path, "count", len(paths))
	return paths, nil
}

func loadBanks(paths []string) []bankEntry {
	entries := make([]bankEntry, 0, len(paths))
	for _, p := range paths {
		b, err := audio.LoadBankFile(p)
		if err != nil {
			log.Warn("Skipping bank", "path", p, "err", err)
		}
		entries = append(entries, bankEntry{path: p, bank: b, err: err})
	}
	return entries
}

// bankMarkdown renders one table per bank. A non-empty query keeps only
// the events whose names fuzzy-match it, best match first.
func bankMarkdown(entries []bankEntry, query string) string {
	var b strings.Builder
	shown := 0
	for _, e := range entries {
		if e.err != nil {
			if query == "" {
				fmt.Fprintf(&b, "# %s\n\n> %v\n\n", filepath.Base(e.path), e.err)
			}
			continue
		}

		events := e.bank.Events
		if query != "" {
			events = matchEvents(events, query)
			if len(events) == 0 {
				continue
			}
		}
		shown++

		fmt.Fprintf(&b, "# %s\n\n`%s`\n\n", e.bank.Name, e.path)
		b.WriteString("| Event | Files | Loop | Spatial | Volume | Parameters |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
		for _, ev := range events {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %.2f | %s |\n",
				ev.Name, len(ev.Files), yesNo(ev.Loop), yesNo(len(ev.Position) == 3),
				ev.BaseVolume(), parameterList(ev.Parameters))
		}
		b.WriteString("\n")
	}
	if query != "" && shown == 0 {
		fmt.Fprintf(&b, "No events match *%s*.\n", query)
	}
	return b.String()
}

func matchEvents(events []audio.EventSpec, query string) []audio.EventSpec {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	matches := fuzzy.Find(query, names)
	out := make([]audio.EventSpec, 0, len(matches))
	for _, m := range matches {
		out = append(out, events[m.Index])
	}
	return out
}

func parameterList(params []audio.ParameterSpec) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s (%s, %g)", p.Name, p.Effect, p.Initial())
	}
	return strings.Join(parts, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func renderMarkdown(md string) (string, error) {
	style := styles.AutoStyle
	width := maxTableWidth
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) { //nolint:gosec
		if w, _, err := term.GetSize(fd); err == nil {
			width = min(w, maxTableWidth)
		}
	} else {
		style = styles.NoTTYStyle
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}

func init() {
	banksCmd.Flags().StringVar(&bankFind, "find", "", "only list events that fuzzy-match this name")
	banksCmd.Flags().BoolVarP(&bankAllFiles, "all", "a", false, "also search files ignored by .gitignore")
}
