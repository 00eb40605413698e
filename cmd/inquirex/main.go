package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/admin"
	"github.com/malonaz/inquirex/chat"
	"github.com/malonaz/inquirex/cli/conversations"
	"github.com/malonaz/inquirex/cli/questions"
	"github.com/malonaz/inquirex/cli/repl"
	"github.com/malonaz/inquirex/cli/settings"
	"github.com/malonaz/inquirex/internal/configuration"
	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/logging"
	"github.com/malonaz/inquirex/internal/persist"
	"github.com/malonaz/inquirex/store"
)

var rootCmd = &cobra.Command{
	Use:          "inquirex",
	Short:        "A terminal chat client that drafts, questions and polishes its answers",
	Version:      "1.0",
	SilenceUsage: true,
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	config, err := configuration.Parse(configuration.DefaultPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Opts{File: config.Log.File, Level: config.Log.Level})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := persist.Open(ctx, config.PersistOpts())
	if err != nil {
		logger.Error("opening storage", zap.Error(err))
		return err
	}
	defer provider.Close()

	s, err := store.New(ctx, provider, logger.Named("store"))
	if err != nil {
		logger.Error("loading store", zap.Error(err))
		return err
	}
	defer s.Close()
	if config.APIKey != "" && s.Settings().APIKey == "" {
		s.UpdateSettings(store.SettingsPatch{APIKey: &config.APIKey})
	}

	gateway := llm.NewOpenRouter(config.GatewayOpts(), logger.Named("llm"))
	orchestrator := chat.New(&chat.Opts{FollowUpTimeout: config.FollowUpTimeoutDuration()}, s, gateway, logger.Named("chat"))
	defer orchestrator.Close()
	generator := chat.NewQuestionGenerator(s, gateway, logger.Named("questions"))

	rootCmd.AddCommand(repl.NewCmd(config, s, orchestrator))
	rootCmd.AddCommand(conversations.NewCmd(s))
	rootCmd.AddCommand(settings.NewCmd(s))
	rootCmd.AddCommand(questions.NewCmd(generator))
	rootCmd.AddCommand(admin.NewListModelsCmd(gateway, s))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Debug("command failed", zap.Error(err))
		return err
	}
	return nil
}
