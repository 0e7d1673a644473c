package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/soundstage/soundstage/internal/audio"
	"github.com/soundstage/soundstage/internal/config"
	"github.com/soundstage/soundstage/internal/sound"
)

var (
	playLoop     bool
	playAt       string
	playDuration time.Duration

	playCmd = &cobra.Command{
		Use:   "play FILE",
		Short: "Play a single sound file",
		Long: paragraph(
			fmt.Sprintf("\nPlay one %s file through the audio stack, optionally placed in 3D space in front of the listener.", keyword("wav, ogg or mp3")),
		),
		Example: paragraph("soundstage play door.wav\nsoundstage play rain.ogg --loop --duration 10s\nsoundstage play bird.wav --at 3,0,5"),
		Args:    cobra.ExactArgs(1),
		RunE:    runPlay,
	}
)

func runPlay(cmd *cobra.Command, args []string) error {
	path := config.ExpandPath(args[0])
	if !audio.Supported(path) {
		return fmt.Errorf("unsupported audio file %s", path)
	}
	if playLoop && playDuration <= 0 {
		return errors.New("--loop needs a --duration")
	}

	opts := []sound.DescriptorOption{sound.WithID(sound.ID(path))}
	if playLoop {
		opts = append(opts, sound.Looping())
	}
	if playAt != "" {
		pos, err := parseVec(playAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		opts = append(opts, sound.At(pos))
	}
	desc := sound.NewDescriptor(path, opts...)

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
	if playDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, playDuration)
		defer cancel()
	}

	if err := st.engine.Load(desc); err != nil {
		return err
	}
	if err := st.engine.Play(desc); err != nil {
		return err
	}
	log.Info("Playing", "path", path, "loop", playLoop, "spatial", desc.Spatial)

	start := time.Now()
	if err := playUntilDone(ctx, st, tick); err != nil {
		return err
	}
	if st.silent {
		fmt.Fprintf(cmd.OutOrStdout(), "played %s for %s (no audio device)\n", path, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// playUntilDone pumps the engine until no voice is left or ctx ends.
func playUntilDone(ctx context.Context, st *stack, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := st.engine.Update(); err != nil {
				log.Debug("Update failed", "err", err)
			}
			if st.backend.Voices() == 0 {
				return nil
			}
		}
	}
}

// parseVec parses "x,y,z".
func parseVec(s string) (sound.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return sound.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v sound.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return sound.Vec3{}, fmt.Errorf("bad coordinate %q: %w", p, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func init() {
	playCmd.Flags().BoolVarP(&playLoop, "loop", "l", false, "repeat the sound until --duration elapses")
	playCmd.Flags().StringVar(&playAt, "at", "", "place the sound at x,y,z")
	playCmd.Flags().DurationVarP(&playDuration, "duration", "d", 0, "stop after this long")
}
