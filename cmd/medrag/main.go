// Package main is the medrag CLI: one-shot questions, an interactive chat,
// the HTTP server and the MCP stdio server, all over the same pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
	"github.com/calque-ai/medrag/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "medrag",
	Short: "Vietnamese medical question answering over a curated corpus",
	Long: `medrag answers Vietnamese health questions from trusted medical sources.
Each question passes a safety gate, is rewritten against the chat history,
checked against a semantic answer cache, answered from hybrid dense and
lexical retrieval, and returned with numbered citations.

Settings come from an optional YAML file (--config), a .env file in the
working directory and MEDRAG_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML); defaults are used when empty")
}

// buildApp loads the configuration and assembles the service.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg)
}

// withApp runs fn with a built App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := a.Context(cmd.Context())
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			a.Logger.Warn("shutdown incomplete", "error", err)
		}
	}()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "medrag:", err)
		stop()
		os.Exit(1)
	}
}
