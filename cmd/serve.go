package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codenamed22/DupliGone/internal/config"
	"github.com/codenamed22/DupliGone/internal/constants"
	"github.com/codenamed22/DupliGone/internal/pipeline"
	"github.com/codenamed22/DupliGone/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the DupliGone HTTP API.
Clients upload a batch of photos as multipart form data to
POST /api/v1/analyze and receive the duplicate report as JSON.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies host and port flags on top of the loaded configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	resolveServeHostPort(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	detector, err := cfg.FaceDetector()
	if err != nil {
		return fmt.Errorf("loading face detector: %w", err)
	}
	if c, ok := detector.(io.Closer); ok {
		defer c.Close()
	}
	if cfg.Faces.Cascade != "" {
		fmt.Printf("Face detection enabled (%s)\n", cfg.Faces.Cascade)
	}

	analyzer := pipeline.New(cfg.Pipeline(),
		pipeline.WithLogger(newLogger()),
		pipeline.WithFaceDetector(detector),
	)
	server := web.NewServer(cfg, analyzer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting %s API on http://%s:%d%s\n", constants.AppName, cfg.Web.Host, cfg.Web.Port, constants.APIPrefix)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
