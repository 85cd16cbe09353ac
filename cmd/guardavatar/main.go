// Package main provides the CLI entry point for the guard avatar agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/guardavatar/internal/agent"
	"github.com/normanking/guardavatar/internal/config"
	"github.com/normanking/guardavatar/internal/conversation"
	"github.com/normanking/guardavatar/internal/logging"
	"github.com/normanking/guardavatar/internal/tts"
)

var (
	// Version information (set at build time)
	version = "dev"

	configPath string
	assetPath  string
	verbose    bool
)

// setup loads the environment, configuration and logger shared by every command.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if assetPath != "" {
		cfg.Asset.Source = assetPath
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(&logging.Config{
		LogDir:  cfg.Log.Dir,
		Level:   logging.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newLoadedAgent builds an agent and loads its avatar.
func newLoadedAgent(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*agent.Agent, error) {
	a, err := agent.New(cfg, logger.Zerolog(), agent.WithLogSink(logger))
	if err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "guardavatar",
		Short: "Embodied content-moderation agent",
		Long: `guardavatar loads a rigged character, plays its gesture clips and voices
a short scripted reply for a moderation label (hate_speech, offensive_language
or neither).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFile()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.guardavatar/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&assetPath, "asset", "a", "", "character asset path or URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// run command - keep the agent alive with the frame clock and bridge
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := agent.New(cfg, logger.Zerolog(), agent.WithLogSink(logger))
			if err != nil {
				return err
			}
			defer a.Close()

			// A failed first load leaves the agent running without an avatar so
			// the watcher can pick up a fixed file.
			if err := a.Load(ctx); err != nil {
				logger.Warn("main", "Starting without an avatar", map[string]interface{}{
					"error": err.Error(),
				})
			}

			logger.Info("main", "guardavatar started", map[string]interface{}{
				"version": version,
				"asset":   cfg.Asset.Source,
				"logFile": logger.GetLogPath(),
			})
			return a.Run(ctx)
		},
	}

	// converse command - one scripted exchange
	converseCmd := &cobra.Command{
		Use:   "converse",
		Short: "Speak the scripted reply for a label",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			rawLabel, _ := cmd.Flags().GetString("label")

			label := conversation.ParseLabel(rawLabel)
			if !label.Known() {
				fmt.Fprintf(os.Stderr, "warning: unknown label %q, only the intro will be spoken\n", rawLabel)
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newLoadedAgent(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Frames().Start(ctx)
			defer a.Frames().Stop()

			if err := a.Converse(ctx, text, label); err != nil {
				return err
			}
			fmt.Print(a.History().Summary(0))
			return nil
		},
	}
	converseCmd.Flags().StringP("text", "t", "", "text that was classified")
	converseCmd.Flags().StringP("label", "l", "neither", "classification label or class id (0, 1, 2)")

	// play command - trigger a single gesture
	playCmd := &cobra.Command{
		Use:   "play [gesture]",
		Short: "Play one gesture clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			hold, _ := cmd.Flags().GetDuration("hold")

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newLoadedAgent(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Play(args[0], !once); err != nil {
				return err
			}

			a.Frames().Start(ctx)
			defer a.Frames().Stop()

			select {
			case <-ctx.Done():
			case <-time.After(hold):
			}
			if cur, ok := a.Avatar().Current(); ok {
				fmt.Printf("%s  loop=%s  t=%s  finished=%t\n", cur.Clip, cur.Loop, cur.Time.Round(time.Millisecond), cur.Finished)
			}
			return nil
		},
	}
	playCmd.Flags().Bool("once", false, "play once instead of looping")
	playCmd.Flags().Duration("hold", 3*time.Second, "how long to keep advancing frames")

	// clips command - list the asset's clips
	clipsCmd := &cobra.Command{
		Use:   "clips",
		Short: "List the animation clips in the asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			a, err := newLoadedAgent(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			av := a.Avatar()
			root := av.Root()
			fmt.Printf("Asset:  %s\n", av.Asset().Source)
			fmt.Printf("Scale:  %.4f\n", root.Scale)
			fmt.Printf("Offset: %v\n", root.Position)
			fmt.Printf("Blend:  %s\n\n", av.Crossfade())
			for _, clip := range av.Clips() {
				fmt.Printf("  %-32s %s\n", clip.Name, clip.Duration)
			}
			return nil
		},
	}

	// voices command - list voices of the configured synthesis provider
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the configured speech engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			var lister interface {
				ListVoices(ctx context.Context) ([]tts.Voice, error)
			}
			switch cfg.Speech.Engine {
			case config.EngineOpenAI:
				lister = tts.NewOpenAIProvider(logger.Zerolog(), tts.DefaultOpenAIConfig())
			case config.EngineMacOS:
				lister = tts.NewMacOSProvider(logger.Zerolog(), tts.DefaultMacOSConfig())
			default:
				return fmt.Errorf("speech engine %q has no voice list", cfg.Speech.Engine)
			}

			voices, err := lister.ListVoices(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range voices {
				fmt.Printf("  %-12s %-12s %-6s %s\n", v.ID, v.Name, v.Language, v.Gender)
			}
			return nil
		},
	}

	// labels command - print the response table
	labelsCmd := &cobra.Command{
		Use:   "labels",
		Short: "Show the scripted response for each label",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%-20s %-8s %s\n", "(intro)", conversation.Intro.Gesture, conversation.Intro.Utterance)
			for _, l := range conversation.Labels {
				r := conversation.ResponseFor(l)
				fmt.Printf("%-20s %-8s %s\n", l, r.Gesture, r.Utterance)
			}
		},
	}

	rootCmd.AddCommand(runCmd, converseCmd, playCmd, clipsCmd, voicesCmd, labelsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
