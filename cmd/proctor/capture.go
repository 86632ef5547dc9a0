package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/frames"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Save a camera frame as an enrollment photo",
	Long: `Grab the current camera frame and store it as an enrollment photo of one
student under every given subject:

  ENROLLMENT_ROOT/<Subject>/<Student>/<Student>_<Subject>_<YYYYmmdd_HHMMSS>.jpg

Examples:
  proctor capture --identity "alice" --subject Math --subject Physics`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("identity", "", "Student name")
	captureCmd.Flags().StringSlice("subject", nil, "Subjects the student is enrolled in")
	captureCmd.Flags().String("source", "", "Camera snapshot URL (default: CAMERA_URL)")
	_ = captureCmd.MarkFlagRequired("identity")
	_ = captureCmd.MarkFlagRequired("subject")
}

func runCapture(cmd *cobra.Command, args []string) error {
	identity := mustGetString(cmd, "identity")
	subjects := mustGetStringSlice(cmd, "subject")
	source := mustGetString(cmd, "source")

	// capture needs no database or models
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if source == "" {
		source = cfg.CameraURL
	}

	camera := frames.NewHTTPSource(source)
	defer func() { _ = camera.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	paths, err := enroll.Capture(ctx, camera, cfg.EnrollmentRoot, identity, subjects, time.Now())
	for _, p := range paths {
		fmt.Printf("saved %s\n", p)
	}
	return err
}
