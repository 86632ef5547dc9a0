// Package alert delivers infraction incidents to people.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Notifier delivers one incident. Failures are reported to the caller,
// which logs them; they never stop a session.
type Notifier interface {
	Notify(ctx context.Context, incident domain.Incident) error
}

var title = cases.Title(language.Und)

// Subject returns the headline of an incident, e.g. "Phone Alert: Alice Detected".
func Subject(incident domain.Incident) string {
	return fmt.Sprintf("%s Alert: %s Detected", title.String(string(incident.Type)), incident.Identity)
}

// Body returns the plain-text description of an incident.
func Body(incident domain.Incident) string {
	return fmt.Sprintf(
		"%s was detected with a %s (confidence %.2f) during %s at %s.\nThe captured frame is attached.",
		incident.Identity,
		incident.Type,
		incident.Confidence,
		incident.Subject,
		incident.DetectedAt.Format("2006-01-02 15:04:05"),
	)
}

// LogNotifier writes incidents to the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, incident domain.Incident) error {
	n.logger.Warn(Subject(incident),
		"incident_id", incident.ID,
		"session_id", incident.SessionID,
		"identity", incident.Identity,
		"type", string(incident.Type),
		"subject", incident.Subject,
		"confidence", incident.Confidence,
		"image_bytes", len(incident.Image),
	)
	return nil
}

// Multi fans an incident out to several notifiers.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

// Notify tries every notifier and joins their errors.
func (m *Multi) Notify(ctx context.Context, incident domain.Incident) error {
	var errs []error

	for i, n := range m.notifiers {
		if err := n.Notify(ctx, incident); err != nil {
			m.logger.Error("failed to send notification",
				"notifier", fmt.Sprintf("%T", n),
				"index", i,
				"incident_id", incident.ID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to send %d/%d notifications: %w", len(errs), len(m.notifiers), errors.Join(errs...))
	}
	return nil
}
