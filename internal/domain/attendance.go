package domain

import "time"

const (
	DateLayout    = "2006-01-02"
	ClockLayout   = "15:04:05"
	CaptureLayout = "20060102_150405"
)

// AttendanceRecord is one persisted attendance mark.
type AttendanceRecord struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Time    string `json:"time"`
}

// NewAttendanceRecord stamps a record with the local date and time of t.
func NewAttendanceRecord(name, subject string, t time.Time) AttendanceRecord {
	return AttendanceRecord{
		Name:    name,
		Subject: subject,
		Date:    t.Format(DateLayout),
		Time:    t.Format(ClockLayout),
	}
}
