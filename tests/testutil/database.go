package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresUser  = "test"
	postgresDB    = "products_test"
)

// TestDB is a migrated products database running in a throwaway container.
type TestDB struct {
	DB        *database.DB
	DSN       string
	Container testcontainers.Container
}

// SetupTestDB starts PostgreSQL, applies the product migrations and opens a
// pool through database.New. Everything is torn down when t finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresUser,
				"POSTGRES_DB":       postgresDB,
			},
			// postgres restarts once after init, so the line shows up twice
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := containerDSN(ctx, container)
	if err != nil {
		t.Fatalf("resolve postgres address: %v", err)
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate products schema: %v", err)
	}

	db, err := database.New(ctx, database.PoolConfig{ConnString: dsn, MaxConns: 8})
	if err != nil {
		t.Fatalf("open products pool: %v", err)
	}
	t.Cleanup(db.Close)

	return &TestDB{DB: db, DSN: dsn, Container: container}
}

func containerDSN(ctx context.Context, c testcontainers.Container) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresUser, host, port.Port(), postgresDB), nil
}

// CleanTables empties the products table between subtests sharing one
// container.
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	if _, err := tdb.DB.Pool.Exec(context.Background(), "TRUNCATE TABLE products"); err != nil {
		t.Fatalf("truncate products: %v", err)
	}
}
