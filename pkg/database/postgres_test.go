package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testDB connects to PAYGATE_TEST_DATABASE_URL or skips.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("PAYGATE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PAYGATE_TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return &DB{pool: pool}
}

func TestMigrateTwice(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 2; i++ {
		if err := Migrate(context.Background(), db); err != nil {
			t.Fatalf("Migrate() run %d: %v", i+1, err)
		}
	}
}

func TestListenOwnsItsConnection(t *testing.T) {
	db := testDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- db.Listen(ctx, []string{"paygate_listen_test"}, func(_, payload string) {
			select {
			case got <- payload:
			default:
			}
		})
	}()

	// LISTEN may not be registered yet, so keep notifying until one arrives.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case p := <-got:
			if p != "hello" {
				t.Fatalf("payload = %q", p)
			}
			break wait
		case <-tick.C:
			if _, err := db.Exec(ctx, "SELECT pg_notify('paygate_listen_test', 'hello')"); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no notification received")
		}
	}

	if n := db.pool.Stat().AcquiredConns(); n != 0 {
		t.Fatalf("acquired conns while listening = %d, want 0", n)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Listen() = %v, want context.Canceled", err)
	}
}
