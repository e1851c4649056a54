package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and exit",
	Long: `ask answers a single question. Pass --session to continue a conversation
stored in the configured history backend.`,
	Example: `  medrag ask "Triệu chứng của sốt xuất huyết là gì?"
  medrag ask --session 42 "Khi nào cần đi khám?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			session := askSession
			if session == "" {
				session = uuid.NewString()
			}
			answer := a.Ask(ctx, session, strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		})
	},
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id to continue")
	rootCmd.AddCommand(askCmd)
}
