package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawakita/hibana/pkg/app"
	"github.com/sawakita/hibana/pkg/assets"
	"github.com/sawakita/hibana/pkg/config"
	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/media"
	"github.com/sawakita/hibana/pkg/runtime"
)

type rootFlags struct {
	entry    string
	label    string
	logLevel string
	headless bool
	timeout  time.Duration
	mute     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "hibana [project-dir]",
		Short: "Run a hibana visual novel project",
		Long: `hibana runs a visual novel project: a directory holding scripts,
images, audio and an optional hibana.yaml configuration file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) == 1 {
				projectDir = args[0]
			}
			return run(projectDir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.entry, "entry", "main.json", "entry script, relative to the project directory")
	cmd.Flags().StringVar(&flags.label, "label", "", "label in the entry script to start from")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&flags.headless, "headless", false, "run without a window, auto-advancing the script")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "abort a headless run after this duration")
	cmd.Flags().BoolVar(&flags.mute, "mute", false, "disable audio output")

	cmd.AddCommand(newInitCmd())
	return cmd
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Write a starter hibana.yaml configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) == 1 {
				projectDir = args[0]
			}
			if err := config.WriteStarter(projectDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s/hibana.yaml\n", projectDir)
			return nil
		},
	}
}

func run(projectDir string, flags *rootFlags) error {
	if err := logger.Init(flags.logLevel); err != nil {
		return err
	}
	log := logger.Get()

	if _, err := os.Stat(projectDir); err != nil {
		return fmt.Errorf("project directory: %w", err)
	}

	cfg, err := config.Load(projectDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cache := assets.NewCache(projectDir)

	audio := buildAudio(projectDir, cfg, flags, log)
	rt := runtime.New(*cfg, cache, audio, media.NullVideoBackend{})

	if err := rt.Start(flags.entry, flags.label); err != nil {
		return err
	}
	log.Info("session started", "project", projectDir, "entry", flags.entry)

	if flags.headless {
		return app.RunHeadless(rt, app.HeadlessOptions{
			Timeout:     flags.timeout,
			AutoAdvance: true,
		})
	}
	return app.Run("hibana — "+projectDir, *cfg, rt, app.NewRenderer(cache))
}

// buildAudio wires the mixer, falling back to silence in headless or muted
// runs and when no SoundFont is available for MIDI.
func buildAudio(projectDir string, cfg *config.Config, flags *rootFlags, log *slog.Logger) media.Audio {
	if flags.headless || flags.mute {
		return media.NullAudio{}
	}

	var synth *media.MIDISynth
	if sf := app.FindSoundFont(projectDir, cfg.SoundFont); sf != "" {
		data, err := os.ReadFile(sf)
		if err != nil {
			log.Warn("soundfont unreadable, MIDI disabled", "path", sf, "error", err)
		} else if synth, err = media.NewMIDISynth(data); err != nil {
			log.Warn("soundfont rejected, MIDI disabled", "path", sf, "error", err)
			synth = nil
		} else {
			log.Info("soundfont loaded", "path", sf)
		}
	} else {
		log.Info("no soundfont found, MIDI disabled")
	}
	return media.NewMixer(synth)
}
