// Package main provides the entry point for the soundstage CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/scene"
	"github.com/soundstage/soundstage/ui"
)

const appName = "soundstage"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	frames     int
	tick       time.Duration
	mouse      bool
	environ    config.Env

	rootCmd = &cobra.Command{
		Use:   "soundstage [CONFIG]",
		Short: "Walk through a 3D sound scene in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nWalk through a %s in your terminal. Move the listener with the keyboard and fire events with the number keys.", keyword("3D sound scene")),
		),
		Example:          paragraph("soundstage\nsoundstage scene.yml\nsoundstage --frames 600 --no-audio"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	e, err := config.ParseEnv()
	if err != nil {
		return err
	}
	environ = e

	if viper.GetBool("debug") || environ.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if cmd.Flags().Changed("config") {
		if err := useConfigFile(configFile); err != nil {
			return err
		}
	}

	frames = viper.GetInt("frames")
	if frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", frames)
	}
	tick = viper.GetDuration("tick")
	if tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", tick)
	}
	mouse = viper.GetBool("mouse")
	return nil
}

// useConfigFile replaces the configuration found in the default places with
// the file at path.
func useConfigFile(path string) error {
	path = config.ExpandPath(path)
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	configFile = path
	log.Debug("Using configuration file", "path", path)
	return nil
}

// loadConfig builds the configuration from viper and the environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFromViper()
	if err != nil {
		return cfg, err
	}
	environ.Apply(&cfg)
	return cfg, nil
}

func execute(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if err := useConfigFile(args[0]); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := newStack(cfg)
	if err != nil {
		return fmt.Errorf("unable to start audio: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("Shutdown incomplete", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scn := scene.New(st.engine, cfg.Scene, log.Default())
	if err := scn.Load(ctx); err != nil {
		log.Warn("Scene loaded with errors", "err", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "some scene resources could not be loaded, see the log for details")
	}
	if err := st.engine.SetReverb(cfg.Audio.Reverb.Amount); err != nil {
		log.Warn("Could not apply reverb", "err", err)
	}

	if frames > 0 || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(ctx, cmd.OutOrStdout(), st, scn)
	}
	return runTUI(ctx, cmd, st, scn)
}

func runHeadless(ctx context.Context, w io.Writer, st *stack, scn *scene.Scene) error {
	st.watch(ctx, sourceDirs(st.cfg.Scene), func(path string) {
		log.Info("Source changed", "path", path)
	})

	start := time.Now()
	err := scn.Run(ctx, tick, frames)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scene stopped: %w", err)
	}
	return printSummary(w, st, scn.Snapshot(), time.Since(start))
}

func printSummary(w io.Writer, st *stack, snap scene.Snapshot, took time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d frames in %s", snap.Frames, took.Round(time.Millisecond))
	if st.silent {
		b.WriteString(" (no audio device)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d sounds, %d loops playing, %d events, %d instances\n",
		snap.Stats.Sounds, snap.Stats.Channels, snap.Stats.Events, snap.Stats.Instances)
	for _, s := range snap.Sounds {
		state := "stopped"
		switch {
		case !s.Loaded:
			state = "not loaded"
		case s.Playing:
			state = "playing"
		}
		fmt.Fprintf(&b, "  %-12s %s\n", s.ID, state)
	}
	if st.cache != nil {
		cs := st.cache.Stats()
		fmt.Fprintf(&b, "cache: %s in memory, %d hits, %d misses\n",
			humanize.Bytes(uint64(cs.Memory.Size)), cs.Hits, cs.Misses) //nolint:gosec
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}

func runTUI(ctx context.Context, cmd *cobra.Command, st *stack, scn *scene.Scene) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.EnableMouse = mouse
	if cmd.Flags().Changed("tick") {
		cfg.FrameInterval = tick
	}

	p := ui.NewProgram(cfg, ui.Options{
		Scene:  scn,
		Cache:  st.cache,
		Reverb: st.cfg.Audio.Reverb.Amount,
	})
	st.watch(ctx, sourceDirs(st.cfg.Scene), func(path string) {
		p.Send(ui.CacheInvalidatedMsg{Path: path})
	})
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Run Bubble Tea program
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Bool("debug", false, "write debug output to the log file")
	rootCmd.PersistentFlags().Bool("no-audio", false, "run without an audio device")
	rootCmd.PersistentFlags().Int("sample-rate", 44100, "output sample rate (44100 or 48000)")
	rootCmd.PersistentFlags().String("assets", "", "directory that scene paths are relative to")
	rootCmd.Flags().IntVarP(&frames, "frames", "f", 0, "run this many frames without the TUI, then exit")
	rootCmd.Flags().DurationVar(&tick, "tick", 16*time.Millisecond, "time between frames")
	rootCmd.Flags().Bool("strict", false, "log misuse of sound identities as errors")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("audio.no_audio", rootCmd.PersistentFlags().Lookup("no-audio"))
	_ = viper.BindPFlag("audio.sample_rate", rootCmd.PersistentFlags().Lookup("sample-rate"))
	_ = viper.BindPFlag("scene.assets_dir", rootCmd.PersistentFlags().Lookup("assets"))
	_ = viper.BindPFlag("frames", rootCmd.Flags().Lookup("frames"))
	_ = viper.BindPFlag("tick", rootCmd.Flags().Lookup("tick"))
	_ = viper.BindPFlag("audio.strict", rootCmd.Flags().Lookup("strict"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("frames", 0)
	viper.SetDefault("tick", "16ms")
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, banksCmd, playCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("SOUNDSTAGE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
