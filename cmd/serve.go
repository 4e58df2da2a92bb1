package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apronworks/apron-agent/internal/audit"
	"github.com/apronworks/apron-agent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent HTTP server",
	Long:  `Starts the conversational agent API: query handling, action confirmation, feedback, metrics and alerts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := buildLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		pipeline, audits, cleanup, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		allowAll, _ := cmd.Flags().GetBool("allow-all-origins")
		srv := server.New(server.Config{Addr: cfg.Server.Addr, AllowAll: allowAll}, pipeline, logger)
		audit.RegisterRoutes(srv.Router(), audits)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}
