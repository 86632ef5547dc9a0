package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
}

// MockExamRunner is a mock implementation of ExamRunner
type MockExamRunner struct {
	mock.Mock
}

func (m *MockExamRunner) StartPhases(ctx context.Context, subject string, phases ...exam.Phase) (exam.Status, error) {
	args := m.Called(ctx, subject, phases)
	return args.Get(0).(exam.Status), args.Error(1)
}

func (m *MockExamRunner) Status() (exam.Status, error) {
	args := m.Called()
	return args.Get(0).(exam.Status), args.Error(1)
}

func (m *MockExamRunner) Stop() error {
	args := m.Called()
	return args.Error(0)
}

// MockAttendanceLister is a mock implementation of AttendanceLister
type MockAttendanceLister struct {
	mock.Mock
}

func (m *MockAttendanceLister) ListBySubjectDate(ctx context.Context, subject, date string) ([]domain.AttendanceRecord, error) {
	args := m.Called(ctx, subject, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttendanceRecord), args.Error(1)
}

// MockInfractionLister is a mock implementation of InfractionLister
type MockInfractionLister struct {
	mock.Mock
}

func (m *MockInfractionLister) ListByScope(ctx context.Context, scope string) ([]domain.InfractionKey, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InfractionKey), args.Error(1)
}
