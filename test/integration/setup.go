package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	handler "github.com/classvote/api/internal/adapters/handler/http"
	repo "github.com/classvote/api/internal/adapters/repository/postgres"
	"github.com/classvote/api/internal/core/i18n"
	"github.com/classvote/api/internal/core/ports"
	"github.com/classvote/api/internal/core/services"
)

const feedChannel = "classvote_changes_test"

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	dbName := "testdb"
	user := "user"
	password := "password"

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sqlx.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// stubSummarizer stands in for the model and records what it was sent.
type stubSummarizer struct {
	mu    sync.Mutex
	calls []ports.SummarizeInput
}

func (s *stubSummarizer) Summarize(_ context.Context, input ports.SummarizeInput) (*ports.SummarizeOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, input)
	return &ports.SummarizeOutput{
		Summary: fmt.Sprintf("%d opinions", len(input.Submissions)),
		Themes:  []string{"theme"},
	}, nil
}

func (s *stubSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type instance struct {
	mirror *services.Mirror
	server *httptest.Server
}

type TestApp struct {
	DB          *sqlx.DB
	ConnString  string
	Summarizer  *stubSummarizer
	DBContainer testcontainers.Container

	instances []*instance
	log       *zap.Logger
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sqlx.Connect("postgres", dbURL)
	require.NoError(t, err)
	require.NoError(t, applyMigrations(db))

	app := &TestApp{
		DB:          db,
		ConnString:  dbURL,
		Summarizer:  &stubSummarizer{},
		DBContainer: dbContainer,
		log:         zaptest.NewLogger(t),
	}
	app.StartInstance(t)
	return app
}

// StartInstance runs one more API server on the same database, each with its
// own mirror fed by Postgres notifications.
func (app *TestApp) StartInstance(t *testing.T) *httptest.Server {
	t.Helper()

	msgs := i18n.New(i18n.English)
	opts := services.Options{Messages: msgs, Logger: app.log}

	voteRepo := repo.NewVoteRepository(app.DB)
	submissionRepo := repo.NewSubmissionRepository(app.DB, app.log)
	resetRepo := repo.NewResetRequestRepository(app.DB)
	notifier := repo.NewChangeNotifier(app.DB, feedChannel)
	feed := repo.NewChangeFeed(app.ConnString, feedChannel, app.log)

	mirror := services.NewMirror(voteRepo, submissionRepo, resetRepo, feed, opts)
	require.NoError(t, mirror.Start(context.Background()))

	voteSvc := services.NewVoteService(voteRepo, submissionRepo, resetRepo, notifier, mirror, opts)
	summarySvc := services.NewSummaryService(voteRepo, submissionRepo, app.Summarizer, notifier, mirror, opts)
	adminSvc := services.NewAdminService(voteRepo, services.AdminConfig{
		JWTSecret: "integration-secret-value",
		TokenTTL:  time.Hour,
	}, opts)

	router := handler.NewRouter(
		handler.RouterConfig{Log: app.log, AllowedOrigins: []string{"*"}, Readiness: mirror},
		handler.NewVoteHandler(voteSvc, msgs, app.log),
		handler.NewAdminHandler(adminSvc, voteSvc, summarySvc, msgs, app.log, handler.AdminHandlerConfig{}),
		handler.NewEventsHandler(voteSvc, mirror, msgs, app.log),
	)

	server := httptest.NewServer(router)
	app.instances = append(app.instances, &instance{mirror: mirror, server: server})
	return server
}

func (app *TestApp) URL() string {
	return app.instances[0].server.URL
}

func (app *TestApp) Teardown(t *testing.T) {
	for _, inst := range app.instances {
		inst.mirror.Stop()
		inst.server.Close()
	}
	app.DB.Close()
	if err := testcontainers.TerminateContainer(app.DBContainer); err != nil {
		t.Logf("failed to terminate container: %s", err)
	}
}

// call sends a JSON request and decodes the JSON response into out when given.
func call(t *testing.T, method, url string, body any, out any, header ...string) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
