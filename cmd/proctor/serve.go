package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/proctor/internal/api"
	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/frames"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API",
	Long: `Serve the control API on PORT: start and stop sessions, save enrollment
photos, list attendance and follow session events over a websocket.

API documentation is served at /swagger/.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("attendance-source", "", "Source of attendance sessions (default: CAMERA_URL)")
	serveCmd.Flags().String("exam-source", "", "Source of monitoring sessions (default: VIDEO_FRAMES_DIR)")
	serveCmd.Flags().Bool("no-render", false, "Do not write annotated frames to OUTPUT_DIR")
}

func runServe(cmd *cobra.Command, args []string) error {
	attendanceSource := mustGetString(cmd, "attendance-source")
	examSource := mustGetString(cmd, "exam-source")
	render := !mustGetBool(cmd, "no-render")

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting Proctor API",
		slog.String("environment", a.cfg.Environment),
		slog.Int("port", a.cfg.Port),
	)

	hub := ws.NewHub()
	notifier, worker := a.notifier()

	runner := exam.NewRunner(a.sessionFactory(factoryOptions{
		sources: map[session.Mode]string{
			session.ModeAttendance: orDefault(attendanceSource, a.cfg.CameraURL),
			session.ModeInfraction: orDefault(examSource, a.cfg.VideoFramesDir),
		},
		notifier: notifier,
		events:   hub,
		render:   render,
	}), logger)

	camera := frames.NewHTTPSource(a.cfg.CameraURL)
	defer func() { _ = camera.Close() }()

	router := api.NewRouter(logger, &api.Dependencies{
		Runner:             runner,
		Attendance:         repository.NewAttendanceRepository(a.pool),
		Infractions:        repository.NewInfractionRepository(a.pool),
		Camera:             camera,
		EnrollmentRoot:     a.cfg.EnrollmentRoot,
		AttendanceDuration: a.cfg.AttendanceDuration,
		Hub:                hub,
		DB:                 a.pool,
		WebhookWorker:      worker,
		Quit:               stop,
		BaseCtx:            ctx,
		APIKey:             a.cfg.ControlAPIKey,
		RateLimit:          a.cfg.RateLimitPerMinute,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal, quit command or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Let the running session close its source and renderer
	_ = runner.Stop()
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := runner.Wait(waitCtx); err != nil && waitCtx.Err() != nil {
		logger.Warn("session did not stop in time")
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")
	return nil
}
