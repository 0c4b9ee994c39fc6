package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"evento/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// TestContainers holds references to test containers
type TestContainers struct {
	PostgresContainer *postgres.PostgresContainer
	DB                *sql.DB
	DBConnString      string
}

// SetupTestContainers starts PostgreSQL and applies the migrations.
// Integration tests are skipped with -short.
func SetupTestContainers(t *testing.T) *TestContainers {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("evento_test"),
		postgres.WithUsername("evento_test"),
		postgres.WithPassword("evento_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := database.NewMigrationExecutor(db).Up(ctx, MigrationsDir()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestContainers{
		PostgresContainer: postgresContainer,
		DB:                db,
		DBConnString:      connStr,
	}
}

// Cleanup terminates all test containers
func (tc *TestContainers) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tc.DB != nil {
		tc.DB.Close()
	}
	if tc.PostgresContainer != nil {
		if err := tc.PostgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}
}

// VaultContainer is a dev-mode Vault server
type VaultContainer struct {
	Container *vault.VaultContainer
	Addr      string
	Token     string
}

// SetupVault starts Vault in dev mode
func SetupVault(t *testing.T) *VaultContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	vaultContainer, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken("test-token"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}

	addr, err := vaultContainer.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	t.Cleanup(func() {
		if err := vaultContainer.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
	})

	return &VaultContainer{Container: vaultContainer, Addr: addr, Token: "test-token"}
}

// SetupRedis starts a Redis server and returns its URL
func SetupRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("Failed to get Redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// MigrationsDir locates the migrations directory from a package test directory
func MigrationsDir() string {
	dir := filepath.Join("..", "..", "migrations")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dir = filepath.Join("..", "..", "..", "migrations")
	}
	return dir
}
