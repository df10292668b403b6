package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/conceptgraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the conceptgraph HTTP server",
	Long: `Start the conceptgraph HTTP server.

The server provides endpoints for:
- Uploading documents for background processing
- Listing uploads and their processing status
- Reading a user's concept map
- Health checks and Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 3003, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	addDatabaseFlags(serverCmd)
	addPipelineFlags(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	srv := server.New(cfg, a.client, a.metrics, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErrChan:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.Info("Received signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown error: %w", err))
	}
	// Pending batches get the rest of the shutdown window.
	if err := a.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}
	if runErr == nil {
		a.logger.Info("Server stopped gracefully")
	}
	return runErr
}
