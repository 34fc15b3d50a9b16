// Command medchat is a terminal client for a medical question answering
// backend, plus a local development backend to run it against.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/internal/config"
	"github.com/Suraj127-git/medchat/internal/logging"
)

// logToFile marks commands whose log must stay off the terminal
const logToFile = "logToFile"

type globalOptions struct {
	configPath string
	apiURL     string
	variant    string
	logLevel   string
}

// env is filled by the root pre-run hook
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rt := &env{}

	chat := chatCmd(rt)

	root := &cobra.Command{
		Use:           "medchat",
		Short:         "Chat with a medical QA backend by text, voice or scanned documents",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
		Annotations: map[string]string{logToFile: "true"},
		RunE:        chat.RunE,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/medchat/config.toml)")
	flags.StringVar(&opts.apiURL, "api", "", "backend base URL")
	flags.StringVar(&opts.variant, "variant", "", "chat contract: query or legacy")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		chat,
		askCmd(rt),
		extractCmd(rt, "transcribe", "Transcribe an audio file and ask it as a question", extractVoice),
		extractCmd(rt, "ocr", "Read the text of an image and ask it as a question", extractImage),
		graphCmd(rt),
		devServerCmd(rt),
		tokenCmd(rt),
	)
	return root
}

// load reads .env, the config file and the flag overrides, then builds the
// logger
func (rt *env) load(cmd *cobra.Command, opts *globalOptions) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.apiURL != "" {
		cfg.APIBaseURL = opts.apiURL
	}
	if opts.variant != "" {
		cfg.APIVariant = opts.variant
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logOpts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	if cmd.Annotations[logToFile] == "true" {
		logOpts.File = cfg.LogFilePath()
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}
