package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Mark attendance from the camera",
	Long: `Recognise students in the camera feed and mark each one present once per
subject and day. Runs for --duration, until the source ends, or until
interrupted.

Examples:
  proctor attend --subject Math
  proctor attend --subject Math --duration 2m --source data/class_frames`,
	RunE: runAttend,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor an exam for phones and cheating",
	Long: `Run the object detector over the exam feed, identify the student at every
violation and alert once per student and infraction type.

Examples:
  # Watch the recorded exam frames in VIDEO_FRAMES_DIR
  proctor watch --subject Math

  # Watch the live camera
  proctor watch --subject Math --source http://192.168.0.10:8080/shot.jpg`,
	RunE: runWatch,
}

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Take attendance, then monitor the exam",
	Long: `Mark attendance for ATTENDANCE_DURATION (or --attendance-duration) and
then monitor the exam until the feed ends or the command is interrupted.`,
	RunE: runExam,
}

func init() {
	rootCmd.AddCommand(attendCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(examCmd)

	for _, cmd := range []*cobra.Command{attendCmd, watchCmd, examCmd} {
		cmd.Flags().String("subject", "", "Subject (class) name")
		cmd.Flags().Bool("no-render", false, "Do not write annotated frames to OUTPUT_DIR")
		_ = cmd.MarkFlagRequired("subject")
	}

	attendCmd.Flags().String("source", "", "Camera snapshot URL or frame directory (default: CAMERA_URL)")
	attendCmd.Flags().Duration("duration", 0, "Stop after this long (default: ATTENDANCE_DURATION)")

	watchCmd.Flags().String("source", "", "Camera snapshot URL or frame directory (default: VIDEO_FRAMES_DIR)")
	watchCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until the feed ends)")

	examCmd.Flags().String("attendance-source", "", "Source of the attendance phase (default: CAMERA_URL)")
	examCmd.Flags().String("exam-source", "", "Source of the monitoring phase (default: VIDEO_FRAMES_DIR)")
	examCmd.Flags().Duration("attendance-duration", 0, "Length of the attendance phase (default: ATTENDANCE_DURATION)")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func monitor(cmd *cobra.Command, sources map[session.Mode]string, phases func(a *app) []exam.Phase) error {
	subject := mustGetString(cmd, "subject")
	render := !mustGetBool(cmd, "no-render")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for mode, spec := range sources {
		if spec == "" {
			switch mode {
			case session.ModeAttendance:
				sources[mode] = a.cfg.CameraURL
			case session.ModeInfraction:
				sources[mode] = a.cfg.VideoFramesDir
			}
		}
	}

	notifier, worker := a.notifier()
	if worker != nil {
		go worker.Run(ctx)
		defer func() {
			worker.Stop()
			// one last pass so due retries are not left behind
			flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := worker.Flush(flushCtx); err != nil {
				a.logger.Warn("notification queue not flushed", "error", err)
			}
		}()
	}

	return a.runPhases(ctx, subject, factoryOptions{
		sources:  sources,
		notifier: notifier,
		render:   render,
	}, phases(a)...)
}

func runAttend(cmd *cobra.Command, args []string) error {
	source := mustGetString(cmd, "source")
	duration := mustGetDuration(cmd, "duration")

	return monitor(cmd, map[session.Mode]string{session.ModeAttendance: source}, func(a *app) []exam.Phase {
		if duration == 0 {
			duration = a.cfg.AttendanceDuration
		}
		return []exam.Phase{{Mode: session.ModeAttendance, Duration: duration}}
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	source := mustGetString(cmd, "source")
	duration := mustGetDuration(cmd, "duration")

	return monitor(cmd, map[session.Mode]string{session.ModeInfraction: source}, func(a *app) []exam.Phase {
		return []exam.Phase{{Mode: session.ModeInfraction, Duration: duration}}
	})
}

func runExam(cmd *cobra.Command, args []string) error {
	sources := map[session.Mode]string{
		session.ModeAttendance: mustGetString(cmd, "attendance-source"),
		session.ModeInfraction: mustGetString(cmd, "exam-source"),
	}
	duration := mustGetDuration(cmd, "attendance-duration")

	return monitor(cmd, sources, func(a *app) []exam.Phase {
		if duration == 0 {
			duration = a.cfg.AttendanceDuration
		}
		return exam.ExamPhases(duration)
	})
}
