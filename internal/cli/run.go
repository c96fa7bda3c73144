package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sajided/sparkEye/internal/config"
	"github.com/sajided/sparkEye/internal/core"
	"github.com/sajided/sparkEye/internal/stream"
	"github.com/sajided/sparkEye/internal/ui"
	"github.com/sajided/sparkEye/internal/verify"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assembly session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession()
		},
	}

	cmd.Flags().BoolVar(&flagMock, "mock", false, "use a synthetic frame source instead of the camera")
	cmd.Flags().BoolVar(&flagNoUI, "no-ui", false, "run headless, logs only")

	return cmd
}

func runSession() error {
	// Local overrides only; absence is not an error.
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source, err := buildSource(cfg)
	if err != nil {
		return err
	}

	app := core.New(cfg, source, buildVerifier(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Run(ctx)
	}()

	var runErr error
	if flagNoUI {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case runErr = <-errChan:
		}
	} else {
		uiDone := make(chan error, 1)
		go func() {
			uiDone <- ui.Run(ctx, app)
		}()
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		case err := <-uiDone:
			if err != nil {
				slog.Error("ui error", "error", err)
			}
			cancel()
		case runErr = <-errChan:
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	return nil
}

// setupLogging configures the global JSON logger. Logs go to stderr so the
// terminal UI keeps stdout to itself.
func setupLogging() {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func buildSource(cfg *config.Config) (stream.Source, error) {
	if flagMock {
		// Keep the synthetic scene moving long enough to see the full cycle.
		return stream.NewMockSource(cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS, 8*time.Second), nil
	}
	source, err := stream.NewWebcamSource(stream.WebcamConfig{
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}
	return source, nil
}

// buildVerifier picks the real vision client when an API key is present and
// falls back to the simulator otherwise, matching the prototype workflow of
// demoing without credentials.
func buildVerifier(cfg *config.Config) verify.Verifier {
	apiKey := os.Getenv(cfg.Verifier.APIKeyEnv)
	if apiKey == "" {
		slog.Warn("no api key found, using simulated verifier", "env", cfg.Verifier.APIKeyEnv)
		return verify.NewSimulated()
	}
	return verify.NewGeminiClient(apiKey, cfg.Verifier.Model)
}
