package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/attendance"
	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detection"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/face"
	"github.com/saturnino-fabrica-de-software/proctor/internal/frames"
	"github.com/saturnino-fabrica-de-software/proctor/internal/infraction"
	"github.com/saturnino-fabrica-de-software/proctor/internal/matcher"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
)

// app holds what every command shares across commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	providers *face.Providers
	policy    detection.Policy
	audit     audit.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	policy, labels, err := detection.LoadPolicy(cfg.ClassPolicyFile)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL, database.WithLogger(logger)); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	auditLogger := audit.NewSlogLogger(logger)
	providers, err := face.NewProviders(ctx, cfg, labels, auditLogger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Debug("providers ready",
		slog.String("face_provider", cfg.FaceProvider),
		slog.String("object_provider", cfg.ObjectProvider),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		providers: providers,
		policy:    policy,
		audit:     auditLogger,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// matcher loads the references of subject from the database, falling back
// to the CSV export written by the enroll command.
func (a *app) matcher(ctx context.Context, subject string) (*matcher.Matcher, error) {
	ids, err := repository.NewFeatureRepository(a.pool).ListBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		ids, err = enroll.LoadCSV(a.cfg.FeaturesDir, subject)
		if err != nil {
			return nil, fmt.Errorf("no enrolled identities for %s, run `proctor enroll` first: %w", subject, err)
		}
	}

	usable := 0
	for _, id := range ids {
		if id.Reference.Valid {
			usable++
		}
	}
	if usable == 0 {
		a.logger.Warn("no identity of the subject has a usable reference, everyone will be unknown", "subject", subject)
	}
	return matcher.New(ids), nil
}

// notifier builds the configured incident notifier. Incidents are always
// logged; the webhook and email notifiers are added on top. The returned
// worker is non-nil when failed webhook deliveries are queued for retry.
func (a *app) notifier() (alert.Notifier, *webhook.Worker) {
	logNotifier := alert.NewLogNotifier(a.logger)

	switch a.cfg.Notifier {
	case "webhook":
		opts := []webhook.Option{webhook.WithLogger(a.logger)}
		if a.cfg.NotifyRetryQueue {
			opts = append(opts, webhook.WithQueue(a.pool))
		}
		svc := webhook.NewService(webhook.Endpoint{URL: a.cfg.WebhookURL, Secret: a.cfg.WebhookSecret}, opts...)

		var worker *webhook.Worker
		if a.cfg.NotifyRetryQueue {
			worker = webhook.NewWorker(a.pool, svc, a.logger)
		}
		return alert.NewMulti(a.logger, logNotifier, svc), worker

	case "email":
		email := alert.NewEmailNotifier(alert.EmailConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUsername,
			Password: a.cfg.SMTPPassword,
			From:     a.cfg.SMTPFrom,
			To:       alert.ParseRecipients(a.cfg.SMTPTo),
		})
		return alert.NewMulti(a.logger, logNotifier, email), nil

	default:
		return logNotifier, nil
	}
}

// openSource opens a camera snapshot URL or a directory of frames.
func openSource(spec string) (session.FrameSource, error) {
	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		return frames.NewHTTPSource(spec), nil
	}
	return frames.NewDirSource(spec)
}

// factoryOptions selects per-phase frame sources and outputs.
type factoryOptions struct {
	sources  map[session.Mode]string
	notifier alert.Notifier
	events   session.EventSink
	render   bool
}

// sessionFactory builds the session of one exam phase with the
// collaborators its mode needs.
func (a *app) sessionFactory(opts factoryOptions) exam.SessionFactory {
	attendanceRepo := repository.NewAttendanceRepository(a.pool)
	infractionRepo := repository.NewInfractionRepository(a.pool)

	return func(ctx context.Context, subject string, phase exam.Phase) (*session.Session, error) {
		subject = enroll.NormalizeName(subject)

		m, err := a.matcher(ctx, subject)
		if err != nil {
			return nil, err
		}

		spec, ok := opts.sources[phase.Mode]
		if !ok || spec == "" {
			return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("no frame source for %s", phase.Mode))
		}
		src, err := openSource(spec)
		if err != nil {
			return nil, err
		}

		deps := session.Deps{
			Source:    src,
			Faces:     a.providers.Faces,
			Describer: a.providers.Describer,
			Objects:   a.providers.Objects,
			Matcher:   m,
			Notifier:  opts.notifier,
			Events:    opts.events,
			Audit:     a.audit,
			Logger:    a.logger,
		}

		if opts.render {
			renderer, err := frames.NewJPEGRenderer(filepath.Join(a.cfg.OutputDir, subject, string(phase.Mode)))
			if err != nil {
				_ = src.Close()
				return nil, err
			}
			deps.Renderer = renderer
		}

		switch phase.Mode {
		case session.ModeAttendance:
			deps.Ledger = attendance.NewLedger(attendanceRepo, subject, nil, a.logger)
		case session.ModeInfraction:
			if a.cfg.InfractionScope == config.ScopeExam {
				deps.InfractionStore = infractionRepo
				deps.InfractionScope = infraction.ExamScope(subject, time.Now().Format(domain.DateLayout))
			}
		}

		return session.New(session.Config{
			Mode:                phase.Mode,
			Subject:             subject,
			AttendanceThreshold: a.cfg.AttendanceThreshold,
			InfractionThreshold: a.cfg.InfractionThreshold,
			FloorConfidence:     a.cfg.DetectorFloorConfidence,
			Policy:              a.policy,
			MaxDuration:         phase.Duration,
		}, deps), nil
	}
}

// runPhases runs phases for subject in the foreground and prints the
// summary of every session.
func (a *app) runPhases(ctx context.Context, subject string, opts factoryOptions, phases ...exam.Phase) error {
	runner := exam.NewRunner(a.sessionFactory(opts), a.logger)

	if _, err := runner.StartPhases(ctx, subject, phases...); err != nil {
		return err
	}

	// the runner observes ctx itself; wait for it to wind down
	status, err := runner.Wait(context.Background())
	for _, s := range status.Sessions {
		printSummary(s)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printSummary(s session.Summary) {
	fmt.Printf("\n%s session for %s (%s)\n", s.Mode, s.Subject, s.StopReason)
	fmt.Printf("  frames: %d, faces: %d, detections: %d\n", s.Frames, s.Faces, s.Detections)
	switch s.Mode {
	case session.ModeAttendance:
		if len(s.Marked) == 0 {
			fmt.Println("  marked: none")
		} else {
			fmt.Printf("  marked: %s\n", strings.Join(s.Marked, ", "))
		}
	case session.ModeInfraction:
		fmt.Printf("  infractions: %d (notification failures: %d)\n", s.Infractions, s.NotificationFailures)
	}
}
