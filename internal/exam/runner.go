// Package exam runs the phases of a monitored exam, attendance first and
// infraction monitoring after, on one background worker.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

// Exam states.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateStopped  = "stopped"
	StateFailed   = "failed"
)

// Phase is one session of an exam. A zero Duration runs until the frame
// source ends or the exam is stopped.
type Phase struct {
	Mode     session.Mode  `json:"mode"`
	Duration time.Duration `json:"duration"`
}

// ExamPhases is attendance for attendanceDuration followed by infraction
// monitoring until the end of the stream.
func ExamPhases(attendanceDuration time.Duration) []Phase {
	return []Phase{
		{Mode: session.ModeAttendance, Duration: attendanceDuration},
		{Mode: session.ModeInfraction},
	}
}

// SessionFactory builds the session of one phase.
type SessionFactory func(ctx context.Context, subject string, phase Phase) (*session.Session, error)

type Status struct {
	ExamID     uuid.UUID         `json:"exam_id"`
	Subject    string            `json:"subject"`
	State      string            `json:"state"`
	Phase      session.Mode      `json:"phase,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Sessions   []session.Summary `json:"sessions"`
	Error      string            `json:"error,omitempty"`
}

type run struct {
	id        uuid.UUID
	subject   string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	state      string
	phase      session.Mode
	active     *session.Session
	completed  []session.Summary
	finishedAt *time.Time
	err        error
	stopped    bool
}

// Runner allows one exam at a time.
type Runner struct {
	newSession SessionFactory
	logger     *slog.Logger

	mu      sync.Mutex
	current *run
}

func NewRunner(factory SessionFactory, logger *slog.Logger) *Runner {
	return &Runner{
		newSession: factory,
		logger:     logger,
	}
}

// Start runs the exam phases for subject in the background.
func (r *Runner) Start(ctx context.Context, subject string, attendanceDuration time.Duration) (Status, error) {
	return r.StartPhases(ctx, subject, ExamPhases(attendanceDuration)...)
}

// StartPhases runs phases in order in the background. It fails with
// domain.ErrSessionActive while another exam is running.
func (r *Runner) StartPhases(ctx context.Context, subject string, phases ...Phase) (Status, error) {
	if subject == "" || len(phases) == 0 {
		return Status{}, domain.ErrValidationFailed.WithError(errors.New("subject and at least one phase are required"))
	}

	r.mu.Lock()
	if r.current != nil && r.current.running() {
		r.mu.Unlock()
		return Status{}, domain.ErrSessionActive
	}

	ctx, cancel := context.WithCancel(ctx)
	current := &run{
		id:        uuid.New(),
		subject:   subject,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRunning,
		completed: []session.Summary{},
	}
	r.current = current
	r.mu.Unlock()

	r.logger.Info("exam started", "exam_id", current.id, "subject", subject, "phases", len(phases))

	go r.execute(ctx, current, phases)

	return current.status(), nil
}

func (r *Runner) execute(ctx context.Context, current *run, phases []Phase) {
	defer close(current.done)
	defer current.cancel()

	logger := r.logger.With("exam_id", current.id, "subject", current.subject)

	for _, phase := range phases {
		if current.isStopped() || ctx.Err() != nil {
			current.finish(StateStopped, nil)
			logger.Info("exam stopped")
			return
		}

		s, err := r.newSession(ctx, current.subject, phase)
		if err != nil {
			current.finish(StateFailed, fmt.Errorf("start %s phase: %w", phase.Mode, err))
			logger.Error("exam failed", "phase", string(phase.Mode), "error", err)
			return
		}

		if !current.begin(phase.Mode, s) {
			current.finish(StateStopped, nil)
			logger.Info("exam stopped")
			return
		}

		summary, err := s.Run(ctx)
		current.complete(summary)
		if err != nil {
			current.finish(StateFailed, fmt.Errorf("%s phase: %w", phase.Mode, err))
			logger.Error("exam failed", "phase", string(phase.Mode), "error", err)
			return
		}
		if summary.StopReason == session.StopQuit || summary.StopReason == session.StopCancelled {
			current.finish(StateStopped, nil)
			logger.Info("exam stopped", "phase", string(phase.Mode))
			return
		}
	}

	current.finish(StateFinished, nil)
	logger.Info("exam finished")
}

// Status reports the current or last exam.
func (r *Runner) Status() (Status, error) {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == nil {
		return Status{}, domain.ErrNoActiveSession
	}
	return current.status(), nil
}

// Stop ends the running exam after its current frame and skips the
// remaining phases.
func (r *Runner) Stop() error {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == nil || !current.running() {
		return domain.ErrNoActiveSession
	}

	current.stop()
	r.logger.Info("exam stop requested", "exam_id", current.id)
	return nil
}

// Wait blocks until the current exam ends or ctx is done.
func (r *Runner) Wait(ctx context.Context) (Status, error) {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == nil {
		return Status{}, domain.ErrNoActiveSession
	}

	select {
	case <-current.done:
	case <-ctx.Done():
		return current.status(), ctx.Err()
	}

	status := current.status()
	return status, current.failure()
}

func (c *run) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

func (c *run) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// begin installs the session of a new phase unless the exam was stopped
// while it was being built.
func (c *run) begin(mode session.Mode, s *session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.phase = mode
	c.active = s
	return true
}

func (c *run) complete(summary session.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, summary)
	c.active = nil
}

func (c *run) stop() {
	c.mu.Lock()
	c.stopped = true
	active := c.active
	c.mu.Unlock()

	if active != nil {
		active.Stop()
	}
}

func (c *run) finish(state string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.state = state
	c.err = err
	c.active = nil
	c.finishedAt = &now
}

func (c *run) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *run) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := make([]session.Summary, 0, len(c.completed)+1)
	sessions = append(sessions, c.completed...)
	if c.active != nil {
		sessions = append(sessions, c.active.Summary())
	}

	st := Status{
		ExamID:     c.id,
		Subject:    c.subject,
		State:      c.state,
		Phase:      c.phase,
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
		Sessions:   sessions,
	}
	if c.err != nil {
		st.Error = c.err.Error()
	}
	return st
}
