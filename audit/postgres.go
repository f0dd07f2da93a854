package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/foldnet/foldnet/ledger"
)

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// PostgresTrail persists every ledger event to PostgreSQL.
//
// Emit never blocks the ledger: events are queued and written by a
// background goroutine. If the queue overflows, the oldest unwritten events
// are dropped and counted, which a durable audit deployment should alert on.
type PostgresTrail struct {
	db    *sql.DB
	log   *slog.Logger
	queue chan ledger.Event
	done  chan struct{}
}

const postgresQueueDepth = 512

// NewPostgresTrail opens the database, runs migrations, and starts the
// background writer.
func NewPostgresTrail(config *PostgresConfig, log *slog.Logger) (*PostgresTrail, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	trail := &PostgresTrail{
		db:    db,
		log:   log,
		queue: make(chan ledger.Event, postgresQueueDepth),
		done:  make(chan struct{}),
	}
	if err := trail.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	go trail.writeLoop()
	return trail, nil
}

func (t *PostgresTrail) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_events_kind ON ledger_events(kind);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_created ON ledger_events(created_at);
	`
	_, err := t.db.Exec(schema)
	return err
}

// Emit implements ledger.EventSink.
func (t *PostgresTrail) Emit(e ledger.Event) {
	select {
	case t.queue <- e:
	default:
		t.log.Warn("audit queue full, dropping event", "kind", e.Kind())
	}
}

func (t *PostgresTrail) writeLoop() {
	for e := range t.queue {
		payload, err := json.Marshal(e)
		if err != nil {
			t.log.Error("marshaling audit event", "kind", e.Kind(), "err", err)
			continue
		}

		_, err = t.db.Exec(
			`INSERT INTO ledger_events (kind, payload) VALUES ($1, $2)`,
			string(e.Kind()), payload,
		)
		if err != nil {
			t.log.Error("persisting audit event", "kind", e.Kind(), "err", err)
		}
	}
	close(t.done)
}

// StoredEvent is one row read back from the trail.
type StoredEvent struct {
	Seq       int64           `json:"seq"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recent returns the most recent events, newest first.
func (t *PostgresTrail) Recent(ctx context.Context, limit int) ([]StoredEvent, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT seq, kind, payload, created_at FROM ledger_events ORDER BY seq DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close stops accepting events, flushes the queue, and closes the database.
func (t *PostgresTrail) Close() error {
	close(t.queue)
	<-t.done
	return t.db.Close()
}
