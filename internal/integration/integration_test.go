package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quizplay/internal/domain"
	"quizplay/internal/infra/postgres"
	pgmigrations "quizplay/internal/infra/postgres/migrations"
	infraredis "quizplay/internal/infra/redis"
	"quizplay/internal/platform"
)

func TestPlayEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	catalog := infraredis.NewCatalogCache(redisClient, postgres.NewCatalogLoader(pool), 5*time.Minute)
	service := platform.NewService(postgres.NewRepository(pool), catalog,
		platform.NewTokens("integration-secret", time.Hour), platform.NewHub(), platform.Options{})

	quizzes, err := service.Quizzes(ctx)
	if err != nil {
		t.Fatalf("quizzes: %v", err)
	}
	if len(quizzes) != 4 || quizzes[0].ID != "seed-1" || quizzes[0].CorrectAnswer != "" {
		t.Fatalf("expected seeded catalog without answers, got %+v", quizzes)
	}

	alice, err := service.Signup(ctx, domain.Registration{
		Username: "alice", Email: "alice@example.com", Password: "Str0ng!pass", FirstName: "Alice", LastName: "A",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := service.Signup(ctx, domain.Registration{
		Username: "alice2", Email: "ALICE@example.com", Password: "Str0ng!pass", FirstName: "Alice", LastName: "B",
	}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}

	events, cancel := service.Events(alice.ID)
	defer cancel()

	result, err := service.Play(ctx, alice.ID, "seed-3", "canberra")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if result.Score != 10 || result.Correct == nil || !*result.Correct {
		t.Fatalf("expected correct answer worth 10, got %+v", result)
	}
	select {
	case ev := <-events:
		if ev.QuizID != "seed-3" || ev.Score != 10 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no played event published")
	}

	if _, err := service.Play(ctx, alice.ID, "seed-3", "Canberra"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected replay conflict, got %v", err)
	}

	played, err := service.Played(ctx, alice.ID)
	if err != nil || len(played) != 1 || played[0].QuizID != "seed-3" {
		t.Fatalf("unexpected played set %+v err=%v", played, err)
	}
	identity, err := service.Identity(ctx, alice.ID)
	if err != nil || identity.Score != 10 {
		t.Fatalf("expected stored score 10, got %+v err=%v", identity, err)
	}

	snapshots := infraredis.NewSnapshotStore(redisClient, "integration", time.Minute)
	if err := snapshots.Write(ctx, identity); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	stored, ok, err := snapshots.Read(ctx)
	if err != nil || !ok || stored.ID != alice.ID {
		t.Fatalf("unexpected snapshot %+v ok=%v err=%v", stored, ok, err)
	}

	if err := service.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.Played(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected plays gone with the account, got %v", err)
	}
	if _, err := service.Identity(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted user not found, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
