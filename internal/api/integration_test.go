//go:build integration

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	// Start PostgreSQL container with pgvector
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "proctor_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Printf("Failed to start container: %v\n", err)
		return 1
	}

	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate container: %v\n", err)
		}
	}()

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/proctor_test?sslmode=disable", host, port.Port())

	if err := database.MigrateUp(connStr); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		return 1
	}

	testDB, err = database.NewPool(ctx, database.DefaultPoolConfig(connStr))
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		return 1
	}
	defer testDB.Close()

	return m.Run()
}

func TestIntegration_ReadyEndpoint(t *testing.T) {
	router := setupRouter(t, &Dependencies{Runner: &stubRunner{}, DB: testDB})

	resp, err := router.App().Test(httptest.NewRequest("GET", "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestIntegration_AttendanceEndpoint(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAttendanceRepository(testDB)

	for _, rec := range []domain.AttendanceRecord{
		{Name: "Bob", Date: "2024-03-09", Subject: "Math", Time: "09:20:00"},
		{Name: "Alice", Date: "2024-03-09", Subject: "Math", Time: "09:15:02"},
		{Name: "Alice", Date: "2024-03-09", Subject: "Physics", Time: "11:00:00"},
	} {
		_, err := repo.Insert(ctx, rec)
		require.NoError(t, err)
	}

	router := setupRouter(t, &Dependencies{Runner: &stubRunner{}, Attendance: repo, DB: testDB})

	resp, err := router.App().Test(httptest.NewRequest("GET", "/v1/attendance?subject=Math&date=2024-03-09", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Records []domain.AttendanceRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Records, 2)
	assert.Equal(t, "Alice", body.Records[0].Name)
	assert.Equal(t, "Bob", body.Records[1].Name)
}

func TestIntegration_PgvectorExtension(t *testing.T) {
	var version string
	err := testDB.QueryRow(context.Background(), "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	require.NoError(t, err, "pgvector not available")

	t.Logf("pgvector version: %s", version)
}
