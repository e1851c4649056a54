package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/calque-ai/medrag/pkg/app"
	"github.com/calque-ai/medrag/pkg/transport/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `serve starts the HTTP API (POST /v1/chat, session history, /healthz and
/metrics) and shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			srv := a.Config.Server
			if serveAddr != "" {
				srv.Addr = serveAddr
			}

			opts := []httpapi.Option{
				httpapi.WithLogger(a.Logger),
				httpapi.WithHealth(a.Health),
			}
			if a.MetricsHandler != nil {
				opts = append(opts, httpapi.WithMetrics(a.MetricsHandler))
			}
			handler := httpapi.New(a, a.History, opts...).Handler()

			return httpapi.Serve(ctx, srv.Addr, handler, srv.ReadTimeout, srv.WriteTimeout, srv.ShutdownTimeout)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}
