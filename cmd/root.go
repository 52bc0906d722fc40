// Package cmd defines the postshelf CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/config"
	"github.com/JakeFAU/postshelf/internal/render"
	"github.com/JakeFAU/postshelf/internal/server"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application graph.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Logger() *zap.Logger
	Warmup(ctx context.Context) error
	RenderRecords(ctx context.Context, ids []string) ([]render.Result, error)
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, cfg, server.Options{})
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postshelf",
		Short: "Bookmark X posts and render them as embeds or cards.",
		Long: `postshelf keeps a shelf of X (Twitter) post links in a JSON file and
renders each one as the official embed, falling back to twscrape or
TwitterAPI.io cards when the embed is unavailable.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				return appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./postshelf.yaml or $HOME/.postshelf/postshelf.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		os.Exit(1)
	}
}
