package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name: "loads with all required vars",
			envVars: map[string]string{
				"PORT":         "8080",
				"ENV":          "production",
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 8080 &&
					c.Environment == "production" &&
					c.DatabaseURL == "postgres://localhost/test"
			},
		},
		{
			name: "uses defaults when optional vars missing",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.Port == 3000 &&
					c.Environment == "development" &&
					c.FaceProvider == "deepface" &&
					c.ObjectProvider == "yolo" &&
					c.AttendanceThreshold == 0.45 &&
					c.InfractionThreshold == 0.6 &&
					c.DetectorFloorConfidence == 0.1 &&
					c.AttendanceDuration == 10*time.Second &&
					c.InfractionScope == ScopeSession &&
					c.Notifier == "log" &&
					c.ControlAPIKey == "" &&
					c.RateLimitPerMinute == 120
			},
		},
		{
			name: "overrides thresholds",
			envVars: map[string]string{
				"DATABASE_URL":         "postgres://localhost/test",
				"ATTENDANCE_THRESHOLD": "0.5",
				"INFRACTION_THRESHOLD": "0.7",
				"INFRACTION_SCOPE":     "exam",
			},
			wantErr: false,
			check: func(c *Config) bool {
				return c.AttendanceThreshold == 0.5 &&
					c.InfractionThreshold == 0.7 &&
					c.InfractionScope == ScopeExam
			},
		},
		{
			name: "fails on negative rate limit",
			envVars: map[string]string{
				"DATABASE_URL":          "postgres://localhost/test",
				"RATE_LIMIT_PER_MINUTE": "-1",
			},
			wantErr: true,
		},
		{
			name:    "fails when DATABASE_URL missing",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "fails on unknown scope",
			envVars: map[string]string{
				"DATABASE_URL":     "postgres://localhost/test",
				"INFRACTION_SCOPE": "forever",
			},
			wantErr: true,
		},
		{
			name: "fails when webhook notifier has no url",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
				"NOTIFIER":     "webhook",
			},
			wantErr: true,
		},
		{
			name: "fails when email notifier has no recipients",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://localhost/test",
				"NOTIFIER":     "email",
				"SMTP_FROM":    "proctor@example.com",
			},
			wantErr: true,
		},
		{
			name: "fails on non-positive threshold",
			envVars: map[string]string{
				"DATABASE_URL":         "postgres://localhost/test",
				"ATTENDANCE_THRESHOLD": "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Load() config check failed: %+v", cfg)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	dev := &Config{Environment: "development"}
	prod := &Config{Environment: "production"}

	if !dev.IsDevelopment() || dev.IsProduction() {
		t.Errorf("development config misreported")
	}
	if !prod.IsProduction() || prod.IsDevelopment() {
		t.Errorf("production config misreported")
	}
}
