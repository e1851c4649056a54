package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
	"github.com/calque-ai/medrag/pkg/rag"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat in the terminal",
	Long: `chat starts an interactive session. Follow-up questions are rewritten
against the earlier turns. Type "exit" or press Ctrl-D to leave, "reset" to
start a new session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return chatLoop(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatLoop reads one question per line until EOF, "exit" or cancellation.
func chatLoop(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	session := uuid.NewString()
	fmt.Fprintf(out, "%s\n\n", rag.Welcome)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			_ = a.History.Clear(ctx, session)
			session = uuid.NewString()
			fmt.Fprintf(out, "%s\n\n", rag.Welcome)
			continue
		}

		fmt.Fprintf(out, "\n%s\n\n", a.Ask(ctx, session, line))
		if ctx.Err() != nil {
			return nil
		}
	}
}
