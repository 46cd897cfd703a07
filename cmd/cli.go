// SPDX-License-Identifier: MIT
package cmd

import (
	"affect/internal/audio"
	"affect/internal/classifier"
	"affect/internal/config"
	"affect/internal/log"
	"affect/pkg/build"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// options holds the flags that override the loaded configuration.
type options struct {
	configPath string
	modelPath  string
	deviceID   int
	sampleRate float64
	record     bool
	verbose    bool
}

// Execute builds the command tree and runs it with args.
func Execute(ctx context.Context, args []string) error {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(listCmd)

	// File command
	fileCmd := &cobra.Command{
		Use:   "file <path.wav>",
		Short: "Classify a WAV file and print each distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runFile(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(fileCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to the YAML configuration file. Defaults to ./config.yaml when present.")
	flags.StringVarP(&opts.modelPath, "model", "m", "",
		"Path to the linear model weights (overrides classifier.model_path)")

	// Audio Device Configuration
	flags.IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")

	// Recording Configuration
	flags.BoolVarP(&opts.record, "record", "r", false,
		"Record audio from the specified input device")

	// Debug Configuration
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// load reads the configuration and applies the flags the user set.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Classifier.ModelPath = o.modelPath
	}
	if flags.Changed("device") {
		cfg.Audio.InputDevice = o.deviceID
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = o.record
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.Debugf("Starting %s", build.GetBuildFlags())
	return cfg, nil
}

// loadClassifier reads the model named by the configuration and checks it
// against the configured labels.
func loadClassifier(cfg *config.Config) (*classifier.Linear, error) {
	if cfg.Classifier.ModelPath == "" {
		return nil, errors.New("no classifier model: set classifier.model_path or pass --model")
	}
	model, err := classifier.LoadLinear(cfg.Classifier.ModelPath)
	if err != nil {
		return nil, err
	}

	if labels := model.Labels(); len(labels) > 0 {
		if len(labels) != len(cfg.Labels) {
			return nil, fmt.Errorf("model %s has %d labels, configuration has %d",
				cfg.Classifier.ModelPath, len(labels), len(cfg.Labels))
		}
		for i := range labels {
			if labels[i] != cfg.Labels[i] {
				log.Warnf("Model label %d is %q, configuration says %q", i, labels[i], cfg.Labels[i])
			}
		}
	}
	return model, nil
}
