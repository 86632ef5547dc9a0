package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// StartSessionRequest is the body of POST /v1/sessions
type StartSessionRequest struct {
	Subject           string `json:"subject" example:"Math"`
	Mode              string `json:"mode" example:"exam"`
	AttendanceSeconds int    `json:"attendance_seconds" example:"10"`
}

// SessionSummary describes one finished or running session of an exam
type SessionSummary struct {
	SessionID            string          `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Mode                 string          `json:"mode" example:"attendance"`
	Subject              string          `json:"subject" example:"Math"`
	StartedAt            string          `json:"started_at" example:"2024-03-09T09:00:00Z"`
	FinishedAt           string          `json:"finished_at" example:"2024-03-09T09:00:10Z"`
	Frames               int             `json:"frames" example:"42"`
	SkippedFrames        int             `json:"skipped_frames" example:"0"`
	Faces                int             `json:"faces" example:"61"`
	Detections           int             `json:"detections" example:"0"`
	Marked               []string        `json:"marked" example:"Alice,Bob"`
	Infractions          int             `json:"infractions" example:"0"`
	InfractionKeys       []InfractionKey `json:"infraction_keys,omitempty"`
	NotificationFailures int             `json:"notification_failures" example:"0"`
	StopReason           string          `json:"stop_reason" example:"timeout"`
}

// ExamStatusResponse represents the state of the current or last exam
type ExamStatusResponse struct {
	ExamID     string           `json:"exam_id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	Subject    string           `json:"subject" example:"Math"`
	State      string           `json:"state" example:"running"`
	Phase      string           `json:"phase" example:"infraction"`
	StartedAt  string           `json:"started_at" example:"2024-03-09T09:00:00Z"`
	FinishedAt string           `json:"finished_at,omitempty" example:"2024-03-09T10:30:00Z"`
	Sessions   []SessionSummary `json:"sessions"`
	Error      string           `json:"error,omitempty" example:""`
}

// CapturePhotoRequest is the body of POST /v1/enrollment/photos
type CapturePhotoRequest struct {
	Identity string   `json:"identity" example:"Alice"`
	Subjects []string `json:"subjects" example:"Math,Physics"`
}

// CapturePhotoResponse lists the written enrollment photos
type CapturePhotoResponse struct {
	Identity string   `json:"identity" example:"Alice"`
	Paths    []string `json:"paths" example:"data/faces/Math/Alice/Alice_Math_20240309_103000.jpg"`
}

// AttendanceRecord is one attendance mark
type AttendanceRecord struct {
	Name    string `json:"name" example:"Alice"`
	Date    string `json:"date" example:"2024-03-09"`
	Subject string `json:"subject" example:"Math"`
	Time    string `json:"time" example:"09:15:02"`
}

// AttendanceResponse lists the marks of one subject and day
type AttendanceResponse struct {
	Subject string             `json:"subject" example:"Math"`
	Date    string             `json:"date" example:"2024-03-09"`
	Records []AttendanceRecord `json:"records"`
}

// InfractionKey is one reported (identity, type) pair
type InfractionKey struct {
	Identity string `json:"identity" example:"Alice"`
	Type     string `json:"type" example:"phone"`
}

// InfractionResponse lists the infractions reported during one exam day
type InfractionResponse struct {
	Subject     string          `json:"subject" example:"Math"`
	Date        string          `json:"date" example:"2024-03-09"`
	Infractions []InfractionKey `json:"infractions"`
}

// HealthResponse is returned by the probes
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code      string `json:"code" example:"VALIDATION_FAILED"`
	Message   string `json:"message" example:"Request validation failed"`
	Details   string `json:"details,omitempty" example:"subject is required"`
	RequestID string `json:"request_id,omitempty" example:"3f1c2a9e-6b7d-4f5e-8a21-0c9d4e7b1a55"`
}

// EmptyResponse represents no content response (202)
type EmptyResponse struct{}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Proctor API",
		Version:     "v1.0.0",
		Description: "Control API for classroom attendance and exam infraction monitoring",
		Host:        "localhost:3000",
		Path:        "/",
	})

	internalError := response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")

	// every /v1 route sits behind the API key check and the rate limiter
	guarded := func(errs ...response.Response) []response.Response {
		return append(errs,
			response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized"),
			response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests"}, "429", "Too Many Requests"),
		)
	}

	endpoints := []*endpoint.EndPoint{
		// Sessions endpoints

		// POST /v1/sessions - Start Session
		endpoint.New(
			endpoint.POST,
			"/v1/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start an exam or a single session"),
			endpoint.WithDescription("Starts attendance followed by infraction monitoring (mode=exam, default), or only one of them. Runs in the background; only one session runs at a time."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(StartSessionRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ExamStatusResponse{}, "202", "Session started"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "SESSION_ACTIVE", Message: "A processing session is already running"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				internalError,
			)),
		),

		// GET /v1/sessions/current - Session Status
		endpoint.New(
			endpoint.GET,
			"/v1/sessions/current",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get the current session"),
			endpoint.WithDescription("Returns the running exam, or the last one when none is running, with per-phase summaries"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ExamStatusResponse{}, "200", "Session status"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "NO_ACTIVE_SESSION", Message: "No processing session is running"}, "404", "Not Found"),
			)),
		),

		// POST /v1/sessions/current/stop - Stop Session
		endpoint.New(
			endpoint.POST,
			"/v1/sessions/current/stop",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Stop the running session"),
			endpoint.WithDescription("Stops the running session after its current frame and skips the remaining exam phases"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ExamStatusResponse{}, "202", "Stop requested"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "NO_ACTIVE_SESSION", Message: "No processing session is running"}, "404", "Not Found"),
			)),
		),

		// Enrollment endpoints

		// POST /v1/enrollment/photos - Save Enrollment Photo
		endpoint.New(
			endpoint.POST,
			"/v1/enrollment/photos",
			endpoint.WithTags("Enrollment"),
			endpoint.WithSummary("Save an enrollment photo"),
			endpoint.WithDescription("Grabs the current camera frame and stores it under <root>/<Subject>/<Identity>/ for every requested subject"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(CapturePhotoRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CapturePhotoResponse{}, "201", "Photo saved"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "identity name is required"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "SOURCE_UNAVAILABLE", Message: "Frame source cannot be opened"}, "503", "Service Unavailable"),
				internalError,
			)),
		),

		// Attendance endpoints

		// GET /v1/attendance - List Attendance
		endpoint.New(
			endpoint.GET,
			"/v1/attendance",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("List attendance"),
			endpoint.WithDescription("Lists the attendance marks of one subject and day ordered by time"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("subject", parameter.Query, parameter.WithDescription("Subject name")),
				parameter.StrParam("date", parameter.Query, parameter.WithDescription("Day (YYYY-MM-DD, default: today)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceResponse{}, "200", "Attendance of the day"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "date must be YYYY-MM-DD"}, "422", "Unprocessable Entity"),
				internalError,
			)),
		),

		// GET /v1/infractions - List Infractions
		endpoint.New(
			endpoint.GET,
			"/v1/infractions",
			endpoint.WithTags("Infractions"),
			endpoint.WithSummary("List infractions"),
			endpoint.WithDescription("Lists the (identity, type) pairs reported during one subject's exam day, in report order"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("subject", parameter.Query, parameter.WithDescription("Subject name")),
				parameter.StrParam("date", parameter.Query, parameter.WithDescription("Day (YYYY-MM-DD, default: today)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(InfractionResponse{}, "200", "Infractions of the exam day"),
			}),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "date must be YYYY-MM-DD"}, "422", "Unprocessable Entity"),
				internalError,
			)),
		),

		// Control endpoints

		// POST /v1/quit - Quit
		endpoint.New(
			endpoint.POST,
			"/v1/quit",
			endpoint.WithTags("Control"),
			endpoint.WithSummary("Quit"),
			endpoint.WithDescription("Stops any running session and shuts the server down"),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "202", "Shutting down"),
			}),
			endpoint.WithErrors(guarded()),
		),

		// GET /v1/ws - Event Feed
		endpoint.New(
			endpoint.GET,
			"/v1/ws",
			endpoint.WithTags("Control"),
			endpoint.WithSummary("Live session events"),
			endpoint.WithDescription("WebSocket feed of session.started, attendance.marked, infraction.reported and session.stopped events"),
			endpoint.WithParams(
				parameter.StrParam("subject", parameter.Query, parameter.WithDescription("Only events of this subject (default: all)")),
			),
			endpoint.WithErrors(guarded(
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			)),
		),

		// Health endpoints

		// GET /health - Liveness
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Alive"),
			}),
		),

		// GET /ready - Readiness
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Checks database connectivity"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{Status: "ready"}, "200", "Ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unavailable"}, "503", "Database unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
