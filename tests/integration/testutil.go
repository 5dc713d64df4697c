//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/inkwell-notes/inkwell/internal/api"
	"github.com/inkwell-notes/inkwell/internal/auth"
	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/notes"
	"github.com/inkwell-notes/inkwell/internal/notify"
	"github.com/inkwell-notes/inkwell/internal/polish"
	"github.com/inkwell-notes/inkwell/internal/users"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	AuthSvc     *auth.Service
	UserSvc     *users.Service
	PolishStore *polish.Repository

	upstream atomic.Value // http.HandlerFunc
}

// SetUpstream swaps the stubbed generation endpoint's behavior for one test.
// The previous behavior is restored on cleanup.
func (env *TestEnv) SetUpstream(t *testing.T, fn http.HandlerFunc) {
	t.Helper()
	prev := env.upstream.Load()
	env.upstream.Store(fn)
	t.Cleanup(func() { env.upstream.Store(prev) })
}

func defaultUpstream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"content": "polished text", "usage": {"input_tokens": 10, "output_tokens": 20}}`))
}

var (
	testEnv *TestEnv
	envOnce sync.Mutex
)

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	envOnce.Lock()
	defer envOnce.Unlock()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "inkwell_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/inkwell_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})

	env := &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
	}
	env.upstream.Store(http.HandlerFunc(defaultUpstream))

	// Stubbed generation endpoint
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstream.Load().(http.HandlerFunc)(w, r)
	}))

	// Auth
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!!", "test-refresh-secret-32-chars-long!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Notes
	noteRepo := notes.NewRepository(pool)
	noteSvc := notes.NewService(noteRepo)
	noteHandler := notes.NewHandler(noteSvc)

	// Polish against the stub endpoint
	polishStore := polish.NewRepository(pool)
	polishClient := polish.NewClient(config.AIConfig{
		BaseURL:   upstreamSrv.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 1024,
		Timeout:   5 * time.Second,
	})
	polishSvc := polish.NewService(polishStore, polishClient, notify.LogNotifier{})
	polishHandler := polish.NewHandler(polishSvc, false)

	router := api.NewRouter(pool, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Guest:    authHandler.Guest,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		CreateNote:          noteHandler.Create,
		ListNotes:           noteHandler.List,
		GetNote:             noteHandler.Get,
		UpdateNote:          noteHandler.Update,
		DeleteNote:          noteHandler.Delete,
		GetSharedNote:       noteHandler.GetShared,
		OwnershipMiddleware: noteHandler.OwnershipMiddleware,

		Polish:   polishHandler.Polish,
		GetQuota: polishHandler.Quota,
		TopUp:    polishHandler.TopUp,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)

	env.Server = server
	env.AuthSvc = authSvc
	env.UserSvc = userSvc
	env.PolishStore = polishStore
	testEnv = env

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

var idCounter atomic.Int64

func uniqueID() int64 {
	return time.Now().UnixNano() + idCounter.Add(1)
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) map[string]any {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	return ParseResponse(t, resp)
}

func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func GuestToken(t *testing.T, env *TestEnv) string {
	t.Helper()
	resp := DoRequest(t, env, "POST", "/api/v1/auth/guest", nil, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
