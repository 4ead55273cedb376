package booking_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"ms-booking/internal/apperr"
	"ms-booking/internal/booking"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/database/migrations"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/tickets/checkin"
	ticketdb "ms-booking/internal/tickets/db"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// TestPostgresNoOversell races bookings against a real PostgreSQL with a
// connection pool, where transactions genuinely overlap.
func TestPostgresNoOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "marketplace",
				"POSTGRES_PASSWORD": "marketplace",
				"POSTGRES_DB":       "marketplace",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	defer pgContainer.Terminate(ctx)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://marketplace:marketplace@%s:%s/marketplace?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(10)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	log := logger.NewConsoleLogger(io.Discard)
	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: "../../migrations"}, log)
	require.NoError(t, runner.RunMigrations())

	codes, err := checkin.NewGenerator("test-secret")
	require.NoError(t, err)
	svc := booking.NewBookingService(booking.BunUnitOfWork{DB: db}, codes, kafka.NopPublisher{}, nil, log, 3)

	event := dbtest.SeedEvent(t, db, "organizer-1", 5)

	var wg sync.WaitGroup
	var succeeded, soldOut atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.BookTickets(ctx, event.ID, fmt.Sprintf("buyer-%d", i), 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.Is(err, apperr.KindInsufficientInventory):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(20), soldOut.Load())

	available, capacity, err := (&eventdb.DB{Bun: db}).Inventory(ctx, event.ID)
	require.NoError(t, err)
	sold, err := (&ticketdb.DB{Bun: db}).ConfirmedQuantity(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	assert.Equal(t, capacity, sold)
}
