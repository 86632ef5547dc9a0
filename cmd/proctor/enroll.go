package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build reference descriptors from enrollment photos",
	Long: `Build one reference descriptor per student from the photos under
ENROLLMENT_ROOT/<Subject>/<Student>/.

Every image is searched for a face and the descriptors of a student are
averaged. Images without a face are skipped. The references are written to
FEATURES_DIR/features_<Subject>.csv and stored in the database.

Examples:
  # Enroll every subject
  proctor enroll

  # Enroll only some subjects
  proctor enroll --subject Math --subject Physics`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringSlice("subject", nil, "Subjects to enroll (default: every subject directory)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	subjects := mustGetStringSlice(cmd, "subject")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(subjects) == 0 {
		subjects, err = enroll.Subjects(a.cfg.EnrollmentRoot)
		if err != nil {
			return err
		}
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subject directories under %s", a.cfg.EnrollmentRoot)
	}

	features := repository.NewFeatureRepository(a.pool)

	for _, subject := range subjects {
		if err := enrollSubject(ctx, a, features, subject); err != nil {
			return err
		}
	}
	return nil
}

func enrollSubject(ctx context.Context, a *app, features *repository.FeatureRepository, subject string) error {
	var bar *progressbar.ProgressBar
	store, err := enroll.NewStore(a.cfg.EnrollmentRoot, subject, a.providers.Faces, a.providers.Describer, a.logger,
		enroll.WithProgress(func(domain.Identity) {
			_ = bar.Add(1)
		}),
	)
	if err != nil {
		return err
	}

	names, err := store.IdentityNames()
	if err != nil {
		return fmt.Errorf("list students of %s: %w", store.Subject(), err)
	}

	bar = progressbar.NewOptions(len(names),
		progressbar.OptionSetDescription(fmt.Sprintf("Enrolling %s", store.Subject())),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	identities, err := store.Build(ctx)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	path, err := enroll.SaveCSV(a.cfg.FeaturesDir, store.Subject(), identities)
	if err != nil {
		return err
	}
	if err := features.Replace(ctx, store.Subject(), identities); err != nil {
		return err
	}

	absent := 0
	for _, id := range identities {
		event := audit.Event{
			EventType: audit.EventIdentityEnrolled,
			Subject:   store.Subject(),
			Identity:  id.Name,
			Success:   id.Reference.Valid,
			Metadata:  map[string]string{"samples": strconv.Itoa(id.Samples)},
		}
		if !id.Reference.Valid {
			absent++
			event.Error = "no usable photo"
		}
		_ = a.audit.Log(ctx, event)
	}

	fmt.Printf("\n%s: %d students enrolled, %d without a usable photo, saved to %s\n",
		store.Subject(), len(identities), absent, path)
	return nil
}
