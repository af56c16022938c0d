//go:build integration

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/config"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/identity/jwt"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	openAPISpecPath = "../../api/openapi/openapi.yaml"
	testSecret      = "test-secret-key"
)

var (
	testServer    *httptest.Server
	testValidator *testutil.OpenAPIValidator
	testDB        *pgxpool.Pool
	testApp       *App
	testConfig    *config.Config
)

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Database.URL = pgContainer.ConnectionString
	cfg.Database.MigrationsPath = "../../migrations"
	cfg.Database.AutoMigrate = true
	cfg.Database.ConnectAttempts = 3
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}
	cfg.JWT.SecretKey = testSecret
	// Scheduler passes are driven by the tests.
	cfg.Scheduler.Enabled = false
	testConfig = &cfg

	testApp, err = New(testConfig)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}

	testDB, err = pgxpool.New(ctx, pgContainer.ConnectionString)
	if err != nil {
		log.Fatalf("create test db pool: %v", err)
	}

	testServer = httptest.NewServer(testApp.Router())

	testValidator, err = testutil.LoadOpenAPIValidator(openAPISpecPath)
	if err != nil {
		log.Fatalf("load OpenAPI validator: %v", err)
	}

	code := m.Run()

	testServer.Close()
	testDB.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := testApp.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown app: %v", err)
	}

	return code
}

func newAdminClient(t *testing.T) *testutil.Client {
	t.Helper()

	token, err := jwt.NewValidator(jwt.Config{SecretKey: testSecret}).
		IssueToken(domain.Principal{UserID: 1, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	client := testutil.NewClientWithValidator(testServer.URL, testValidator).WithToken(token)
	client.SetT(t)
	return client
}

func createUser(t *testing.T, name string, deviceToken *string) int64 {
	t.Helper()

	var id int64
	err := testDB.QueryRow(context.Background(),
		`INSERT INTO users (name, email, device_token) VALUES ($1, $2, $3) RETURNING id`,
		name, fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano()), deviceToken,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func countInbox(t *testing.T, userID int64, notificationType string) int {
	t.Helper()

	var count int
	err := testDB.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND type = $2`,
		userID, notificationType,
	).Scan(&count)
	require.NoError(t, err)
	return count
}

type scheduledResponse struct {
	Data domain.ScheduledNotification `json:"data"`
}

func TestHealthAndVersion(t *testing.T) {
	resp, err := http.Get(testServer.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(testServer.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := testutil.NewClientWithValidator(testServer.URL, testValidator)
	client.SetT(t)
	resp, err = client.GET("/version")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScheduledNotification_EndToEnd(t *testing.T) {
	client := newAdminClient(t)
	token := "device-token"
	userID := createUser(t, "erin", &token)

	resp, err := client.POST("/api/v1/scheduled-notifications", map[string]any{
		"target_type":  "single_user",
		"user_id":      userID,
		"title":        "Your order",
		"body":         "is on its way",
		"scheduled_at": time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created scheduledResponse
	testutil.DecodeJSON(t, resp, &created)

	report, err := testApp.Scheduler().RunOnce(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Processed, 1)

	resp, err = client.GET(fmt.Sprintf("/api/v1/scheduled-notifications/%d", created.Data.ID))
	require.NoError(t, err)
	var got scheduledResponse
	testutil.DecodeJSON(t, resp, &got)

	// Firebase is not configured, so the push fails but the in-app record is saved.
	assert.Equal(t, domain.ScheduledStatusFailed, got.Data.Status)
	assert.Equal(t, 0, got.Data.SuccessCount)
	assert.Equal(t, 1, got.Data.FailCount)
	require.NotNil(t, got.Data.ErrorMessage)
	assert.Contains(t, *got.Data.ErrorMessage, "Firebase is not configured")
	assert.Equal(t, 1, countInbox(t, userID, "scheduled_notification"))

	// A second pass does not reprocess it.
	report, err = testApp.Scheduler().RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Equal(t, 1, countInbox(t, userID, "scheduled_notification"))
}

func TestSendNow_AllUsers(t *testing.T) {
	client := newAdminClient(t)
	withoutToken := createUser(t, "frank", nil)

	resp, err := client.POST("/api/v1/notifications/send", map[string]any{
		"target_type": "all_users",
		"title":       "Maintenance",
		"body":        "Tonight at 2am",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			Summary struct {
				TotalRecipients int `json:"total_recipients"`
				SavedToDatabase int `json:"saved_to_database"`
			} `json:"summary"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &out)
	assert.GreaterOrEqual(t, out.Data.Summary.TotalRecipients, 1)
	assert.Equal(t, out.Data.Summary.TotalRecipients, out.Data.Summary.SavedToDatabase)
	assert.Equal(t, 1, countInbox(t, withoutToken, "general"))
}

func TestRunScheduledOnce(t *testing.T) {
	userID := createUser(t, "grace", nil)

	var id int64
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO scheduled_notifications (title, body, target_type, user_id, scheduled_at)
		VALUES ('Hi', 'There', 'single_user', $1, NOW() - INTERVAL '1 minute')
		RETURNING id
	`, userID).Scan(&id)
	require.NoError(t, err)

	cfg := *testConfig
	report, err := RunScheduledOnce(context.Background(), &cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Processed, 1)

	var status string
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT status FROM scheduled_notifications WHERE id = $1`, id).Scan(&status))
	// Saved in-app only: no push succeeded.
	assert.Equal(t, "failed", status)
	assert.Equal(t, 1, countInbox(t, userID, "scheduled_notification"))
}
