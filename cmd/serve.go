package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peekknuf/datatrust/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification HTTP API",
	Long: `Start an HTTP server exposing POST /api/verify for multipart
uploads, GET /health and Prometheus metrics on /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		v, release, err := newVerifier(ctx)
		if err != nil {
			return err
		}
		defer release()

		return server.New(v, slog.Default()).ListenAndServe(ctx, serveAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr,
		"Address to listen on")
	addLedgerFlags(serveCmd)
}
