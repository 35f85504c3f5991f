package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

var version = "dev"

type cliFlags struct {
	channel     string
	replay      string
	follow      bool
	stdin       bool
	lang        string
	noTranslate bool
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:           "chat-translator",
		Short:         "Twitch chat in the terminal with inline translations",
		Long:          `Connects to a Twitch channel (or replays a captured IRC log) and prints chat with badges, colored names and translations into the target language.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.stdin && flags.replay != "" {
				return fmt.Errorf("--stdin and --replay are mutually exclusive")
			}
			if flags.follow && flags.replay == "" {
				return fmt.Errorf("--follow requires --replay")
			}

			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			src := source{replay: flags.replay, follow: flags.follow}
			if flags.stdin {
				src.stdin = cmd.InOrStdin()
			}
			return run(cmd.Context(), cfg, src, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.channel, "channel", "", "Twitch channel to join (env TWITCH_CHANNEL)")
	cmd.Flags().StringVar(&flags.replay, "replay", "", "replay raw IRC lines from a file instead of connecting")
	cmd.Flags().BoolVar(&flags.follow, "follow", false, "keep reading the replay file as it grows")
	cmd.Flags().BoolVar(&flags.stdin, "stdin", false, "read raw IRC lines from standard input")
	cmd.Flags().StringVar(&flags.lang, "lang", "", "target language name or tag (env TARGET_LANGUAGE)")
	cmd.Flags().BoolVar(&flags.noTranslate, "no-translate", false, "disable the translation overlay")
	return cmd
}

// loadConfig layers env, the runtime settings file and then flags.
func loadConfig(cmd *cobra.Command, flags cliFlags) (*config.Config, error) {
	config.LoadDotEnv(".env")

	var opts []config.Option
	if path := os.Getenv("SETTINGS_FILE"); path != "" {
		settings, err := config.LoadRuntimeSettingsFile(path)
		switch {
		case err == nil:
			opts = append(opts, config.WithRuntimeSettings(settings))
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("load settings file: %w", err)
		}
	}

	if flags.channel != "" {
		opts = append(opts, config.WithChannel(flags.channel))
	}
	if flags.lang != "" {
		if _, err := config.ParseLanguage(flags.lang); err != nil {
			return nil, fmt.Errorf("--lang: %w", err)
		}
		opts = append(opts, config.WithTargetLanguage(flags.lang))
	}
	if cmd.Flags().Changed("no-translate") {
		opts = append(opts, config.WithTranslationEnabled(!flags.noTranslate))
	}
	return config.NewFromEnv(opts...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
