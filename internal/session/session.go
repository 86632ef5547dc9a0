// Package session runs the per-frame identification loop for attendance
// and infraction monitoring.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/attendance"
	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detection"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
	"github.com/saturnino-fabrica-de-software/proctor/internal/infraction"
	"github.com/saturnino-fabrica-de-software/proctor/internal/matcher"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

type Mode string

const (
	ModeAttendance Mode = "attendance"
	ModeInfraction Mode = "infraction"
)

// Stop reasons reported in Summary.
const (
	StopEndOfStream = "end_of_stream"
	StopQuit        = "quit"
	StopTimeout     = "timeout"
	StopCancelled   = "cancelled"
)

var (
	errQuit    = errors.New("session stopped")
	errTimeout = errors.New("session duration elapsed")
)

// FrameSource yields frames in arrival order and io.EOF when exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Frame is one annotated frame handed to a Renderer.
type Frame struct {
	Index       int
	Image       *image.RGBA
	Annotations []Annotation
}

// Annotation is one labelled region drawn on a frame.
type Annotation struct {
	Box   domain.Box
	Label string
	Alert bool
}

type Renderer interface {
	Render(ctx context.Context, frame Frame) error
	Close() error
}

type Config struct {
	Mode                Mode
	Subject             string
	AttendanceThreshold float64
	InfractionThreshold float64
	FloorConfidence     float64
	Policy              detection.Policy
	// MaxDuration stops the session after the given time; zero runs until
	// the source ends or Stop is called.
	MaxDuration time.Duration
}

type Deps struct {
	Source    FrameSource
	Renderer  Renderer
	Faces     provider.FaceDetector
	Describer provider.Describer
	Objects   provider.ObjectDetector
	Matcher   *matcher.Matcher
	Ledger    *attendance.Ledger
	Tracker   *infraction.Tracker
	// InfractionStore persists reported keys under InfractionScope when
	// no Tracker is given.
	InfractionStore infraction.Store
	InfractionScope string
	Notifier        alert.Notifier
	Events          EventSink
	Audit           audit.Logger
	Clock           func() time.Time
	Logger          *slog.Logger
}

// Summary counts what a session did.
type Summary struct {
	SessionID            uuid.UUID              `json:"session_id"`
	Mode                 Mode                   `json:"mode"`
	Subject              string                 `json:"subject"`
	StartedAt            time.Time              `json:"started_at"`
	FinishedAt           time.Time              `json:"finished_at,omitempty"`
	Frames               int                    `json:"frames"`
	SkippedFrames        int                    `json:"skipped_frames"`
	Faces                int                    `json:"faces"`
	Detections           int                    `json:"detections"`
	Marked               []string               `json:"marked"`
	Infractions          int                    `json:"infractions"`
	// InfractionKeys lists what the tracker saw this session, including keys
	// an earlier session of the same exam already reported.
	InfractionKeys       []domain.InfractionKey `json:"infraction_keys,omitempty"`
	NotificationFailures int                    `json:"notification_failures"`
	StopReason           string                 `json:"stop_reason,omitempty"`
}

// Session is one run of frame processing from start to stop. It owns its
// tracker and is not shared.
type Session struct {
	id     uuid.UUID
	cfg    Config
	deps   Deps
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}

	mu      sync.Mutex
	summary Summary
}

func New(cfg Config, deps Deps) *Session {
	id := uuid.New()

	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = discardSink{}
	}
	if deps.Audit == nil {
		deps.Audit = &audit.NoOpLogger{}
	}
	logger := deps.Logger.With("session_id", id, "mode", string(cfg.Mode), "subject", cfg.Subject)
	if cfg.Mode == ModeInfraction && deps.Tracker == nil {
		opts := []infraction.Option{infraction.WithSessionID(id), infraction.WithLogger(logger)}
		if deps.InfractionStore != nil {
			opts = append(opts, infraction.WithStore(deps.InfractionStore, deps.InfractionScope))
		}
		deps.Tracker = infraction.NewTracker(opts...)
	}

	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		stopCh: make(chan struct{}),
		summary: Summary{
			SessionID: id,
			Mode:      cfg.Mode,
			Subject:   cfg.Subject,
			Marked:    []string{},
		},
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Mode() Mode {
	return s.cfg.Mode
}

// Stop asks a running session to finish after the current frame. It is
// safe to call more than once and before Run.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Summary returns a snapshot of the session counters.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.summary
	out.Marked = append([]string(nil), s.summary.Marked...)
	if s.deps.Tracker != nil {
		out.InfractionKeys = s.deps.Tracker.Seen()
	}
	return out
}

func (s *Session) validate() error {
	if s.deps.Source == nil || s.deps.Matcher == nil {
		return domain.ErrValidationFailed.WithError(errors.New("frame source and matcher are required"))
	}

	switch s.cfg.Mode {
	case ModeAttendance:
		if s.deps.Faces == nil || s.deps.Describer == nil || s.deps.Ledger == nil {
			return domain.ErrValidationFailed.WithError(errors.New("attendance requires a face detector, describer and ledger"))
		}
	case ModeInfraction:
		if s.deps.Objects == nil || s.deps.Faces == nil || s.deps.Describer == nil {
			return domain.ErrValidationFailed.WithError(errors.New("infraction monitoring requires an object detector, face detector and describer"))
		}
	default:
		return domain.ErrValidationFailed.WithError(fmt.Errorf("unknown mode %q", s.cfg.Mode))
	}
	return nil
}

// Run processes frames until the source ends, Stop is called, the
// configured duration elapses or ctx is cancelled; those are normal stops.
// Undecodable frames are skipped. Source and model failures abort the
// session and are returned. The frame
// source and renderer are closed on every exit path.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	defer s.closeCollaborators()

	if err := s.validate(); err != nil {
		return s.Summary(), err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if s.cfg.MaxDuration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, s.cfg.MaxDuration, errTimeout)
		defer cancelTimeout()
	}

	go func() {
		select {
		case <-s.stopCh:
			cancel(errQuit)
		case <-ctx.Done():
		}
	}()

	s.mu.Lock()
	s.summary.StartedAt = s.deps.Clock()
	s.mu.Unlock()

	s.logger.Info("session started")
	s.publish(Event{Type: EventSessionStarted})

	err := s.loop(ctx)

	s.mu.Lock()
	s.summary.FinishedAt = s.deps.Clock()
	s.mu.Unlock()

	summary := s.Summary()
	s.publish(Event{Type: EventSessionStopped, Summary: &summary})
	s.audit(context.WithoutCancel(ctx), audit.EventSessionFinished, "", err, map[string]string{
		"stop_reason": summary.StopReason,
		"frames":      strconv.Itoa(summary.Frames),
		"marked":      strconv.Itoa(len(summary.Marked)),
		"infractions": strconv.Itoa(summary.Infractions),
	})

	if err != nil {
		s.logger.Error("session aborted", "error", err, "frames", summary.Frames)
		return summary, err
	}

	s.logger.Info("session finished",
		"reason", summary.StopReason,
		"frames", summary.Frames,
		"skipped_frames", summary.SkippedFrames,
		"marked", len(summary.Marked),
		"infractions", summary.Infractions,
	)
	return summary, nil
}

func (s *Session) loop(ctx context.Context) error {
	for index := 1; ; index++ {
		if ctx.Err() != nil {
			s.setStopReason(stopReason(ctx))
			return nil
		}

		img, err := s.deps.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.setStopReason(StopEndOfStream)
				return nil
			case ctx.Err() != nil:
				s.setStopReason(stopReason(ctx))
				return nil
			case errors.Is(err, domain.ErrInvalidImage):
				s.mu.Lock()
				s.summary.SkippedFrames++
				s.mu.Unlock()
				s.logger.Warn("skipping undecodable frame", "frame", index, "error", err)
				continue
			default:
				return fmt.Errorf("read frame: %w", err)
			}
		}

		if err := s.processFrame(ctx, index, img); err != nil {
			if ctx.Err() != nil {
				s.setStopReason(stopReason(ctx))
				return nil
			}
			return err
		}
	}
}

func stopReason(ctx context.Context) string {
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errQuit):
		return StopQuit
	case errors.Is(cause, errTimeout):
		return StopTimeout
	default:
		return StopCancelled
	}
}

func (s *Session) processFrame(ctx context.Context, index int, img image.Image) error {
	s.mu.Lock()
	s.summary.Frames++
	s.mu.Unlock()

	frame := Frame{Index: index, Image: imaging.Clone(img)}

	var (
		incidents []domain.Incident
		err       error
	)
	switch s.cfg.Mode {
	case ModeAttendance:
		frame.Annotations, err = s.attendanceFrame(ctx, img)
	case ModeInfraction:
		frame.Annotations, incidents, err = s.infractionFrame(ctx, img)
	}
	if err != nil {
		if !isFatal(err) {
			s.logger.Warn("skipping frame", "frame", index, "error", err)
			return nil
		}
		return err
	}

	annotate(frame.Image, frame.Annotations)

	if s.deps.Renderer != nil {
		if err := s.deps.Renderer.Render(ctx, frame); err != nil {
			s.logger.Warn("failed to render frame", "frame", index, "error", err)
		}
	}

	if len(incidents) > 0 {
		s.notify(ctx, frame, incidents)
	}
	return nil
}

// isFatal separates resource failures from per-item errors.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrModelUnavailable) ||
		errors.Is(err, domain.ErrSourceUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Session) attendanceFrame(ctx context.Context, img image.Image) ([]Annotation, error) {
	faces, err := s.deps.Faces.DetectFaces(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	annotations := make([]Annotation, 0, len(faces))
	for _, face := range faces {
		s.mu.Lock()
		s.summary.Faces++
		s.mu.Unlock()

		descriptor, err := s.deps.Describer.Describe(ctx, img, face)
		if err != nil {
			if isFatal(err) {
				return nil, fmt.Errorf("describe face: %w", err)
			}
			s.logger.Warn("skipping face", "box", face, "error", err)
			continue
		}

		match := s.deps.Matcher.Match(descriptor, s.cfg.AttendanceThreshold)
		annotations = append(annotations, Annotation{Box: face, Label: match.Name, Alert: !match.Known()})

		if !match.Known() {
			continue
		}

		// a storage failure leaves the key unmarked, so a later frame retries it
		inserted, err := s.deps.Ledger.Mark(ctx, match.Name)
		if err != nil {
			s.logger.Error("failed to mark attendance", "identity", match.Name, "error", err)
			continue
		}
		if inserted {
			s.mu.Lock()
			s.summary.Marked = append(s.summary.Marked, match.Name)
			s.mu.Unlock()
			s.publish(Event{Type: EventAttendanceMarked, Identity: match.Name})
			s.audit(ctx, audit.EventAttendanceMarked, match.Name, nil, nil)
		}
	}
	return annotations, nil
}

func (s *Session) infractionFrame(ctx context.Context, img image.Image) ([]Annotation, []domain.Incident, error) {
	detections, err := s.deps.Objects.Detect(ctx, img, s.cfg.FloorConfidence)
	if err != nil {
		return nil, nil, fmt.Errorf("detect objects: %w", err)
	}

	width, height := imaging.Size(img)

	var (
		annotations []Annotation
		incidents   []domain.Incident
	)
	for _, d := range detections {
		decision := s.cfg.Policy.Classify(d, width, height)
		if !decision.Accepted {
			continue
		}

		s.mu.Lock()
		s.summary.Detections++
		s.mu.Unlock()

		if !decision.Violation {
			annotations = append(annotations, Annotation{
				Box:   decision.Box,
				Label: fmt.Sprintf("%s %.2f", d.Class, d.Confidence),
			})
			continue
		}

		name, err := s.identify(ctx, img, decision.Box)
		if err != nil {
			if isFatal(err) {
				return nil, nil, err
			}
			s.logger.Warn("failed to identify region", "box", decision.Box, "class", string(d.Class), "error", err)
			name = domain.Unknown
		}

		annotations = append(annotations, Annotation{
			Box:   decision.Box,
			Label: fmt.Sprintf("%s - %s!", name, strings.ToUpper(string(d.Class))),
			Alert: true,
		})

		isNew, err := s.deps.Tracker.ReportIfNew(ctx, name, d.Class)
		if err != nil {
			return nil, nil, err
		}
		if !isNew {
			continue
		}

		incidents = append(incidents, domain.Incident{
			ID:         uuid.New(),
			SessionID:  s.id,
			Identity:   name,
			Type:       d.Class,
			Subject:    s.cfg.Subject,
			Confidence: d.Confidence,
			Box:        decision.Box,
			DetectedAt: s.deps.Clock(),
		})
	}
	return annotations, incidents, nil
}

// identify resolves the first face inside region, or Unknown when the
// region holds no face.
func (s *Session) identify(ctx context.Context, img image.Image, region domain.Box) (string, error) {
	roi, err := imaging.Crop(img, region)
	if err != nil {
		return domain.Unknown, nil
	}

	faces, err := s.deps.Faces.DetectFaces(ctx, roi)
	if err != nil {
		return "", fmt.Errorf("detect faces in region: %w", err)
	}
	if len(faces) == 0 {
		return domain.Unknown, nil
	}

	s.mu.Lock()
	s.summary.Faces++
	s.mu.Unlock()

	descriptor, err := s.deps.Describer.Describe(ctx, roi, faces[0])
	if err != nil {
		return "", fmt.Errorf("describe face in region: %w", err)
	}

	return s.deps.Matcher.Match(descriptor, s.cfg.InfractionThreshold).Name, nil
}

// notify runs after the keys are recorded; a failed delivery is counted
// and never re-arms the key.
func (s *Session) notify(ctx context.Context, frame Frame, incidents []domain.Incident) {
	snapshot, err := imaging.EncodeJPEG(frame.Image)
	if err != nil {
		s.logger.Warn("failed to encode incident frame", "frame", frame.Index, "error", err)
	}

	for _, incident := range incidents {
		incident.Image = snapshot

		s.mu.Lock()
		s.summary.Infractions++
		s.mu.Unlock()

		s.publish(Event{
			Type:       EventInfractionReported,
			Identity:   incident.Identity,
			Class:      incident.Type,
			Confidence: incident.Confidence,
		})
		meta := map[string]string{
			"incident_id": incident.ID.String(),
			"type":        string(incident.Type),
			"confidence":  strconv.FormatFloat(incident.Confidence, 'f', 2, 64),
		}
		s.audit(ctx, audit.EventInfractionReported, incident.Identity, nil, meta)

		if s.deps.Notifier == nil {
			continue
		}
		err := s.deps.Notifier.Notify(ctx, incident)
		if err != nil {
			s.mu.Lock()
			s.summary.NotificationFailures++
			s.mu.Unlock()
			s.logger.Error("failed to notify infraction",
				"identity", incident.Identity,
				"type", string(incident.Type),
				"error", err,
			)
		}
		s.audit(ctx, audit.EventNotificationSent, incident.Identity, err, meta)
	}
}

func (s *Session) publish(event Event) {
	event.SessionID = s.id
	event.Mode = s.cfg.Mode
	event.Subject = s.cfg.Subject
	event.Timestamp = s.deps.Clock()
	s.deps.Events.Publish(event)
}

func (s *Session) audit(ctx context.Context, eventType audit.EventType, identity string, err error, metadata map[string]string) {
	event := audit.Event{
		SessionID: s.id,
		EventType: eventType,
		Subject:   s.cfg.Subject,
		Identity:  identity,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if logErr := s.deps.Audit.Log(ctx, event); logErr != nil {
		s.logger.Warn("failed to write audit event", "event_type", string(eventType), "error", logErr)
	}
}

func (s *Session) setStopReason(reason string) {
	s.mu.Lock()
	s.summary.StopReason = reason
	s.mu.Unlock()
}

func (s *Session) closeCollaborators() {
	if s.deps.Source != nil {
		if err := s.deps.Source.Close(); err != nil {
			s.logger.Warn("failed to close frame source", "error", err)
		}
	}
	if s.deps.Renderer != nil {
		if err := s.deps.Renderer.Close(); err != nil {
			s.logger.Warn("failed to close renderer", "error", err)
		}
	}
}

func annotate(dst *image.RGBA, annotations []Annotation) {
	for _, a := range annotations {
		var c color.Color = imaging.Green
		if a.Alert {
			c = imaging.Red
		}
		imaging.DrawBox(dst, a.Box, 2, c)
		imaging.DrawLabel(dst, a.Box.X1, a.Box.Y1, a.Label, c)
	}
}
