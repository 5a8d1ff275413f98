package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresStore is the durable QueueStore for terminals with a local database.
// Orders queued here survive a terminal restart mid-outage.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cred *Credentials) (*PostgresStore, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "offline_queue_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (s *PostgresStore) Append(ctx context.Context, order domain.QueuedOrder) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal queued order items: %w", err)
	}

	query := `INSERT INTO offline_orders (id, items, total_minor_units, payment_method, offline_session_id, created_at, synced)
	          VALUES ($1, $2, $3, $4, $5, $6, false)`

	_, insertErr := s.db.ExecContext(ctx, query,
		order.ID,
		itemsJSON,
		order.TotalMinor,
		order.PaymentMethod,
		order.OfflineSession,
		order.CreatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert queued order: %w", insertErr)
	}
	return nil
}

func (s *PostgresStore) Unsynced(ctx context.Context) ([]domain.QueuedOrder, error) {
	query := `SELECT id, items, total_minor_units, payment_method, offline_session_id, created_at, synced
	          FROM offline_orders WHERE synced = false ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unsynced orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.QueuedOrder
	for rows.Next() {
		var order domain.QueuedOrder
		var itemsJSON []byte
		if err := rows.Scan(
			&order.ID,
			&itemsJSON,
			&order.TotalMinor,
			&order.PaymentMethod,
			&order.OfflineSession,
			&order.CreatedAt,
			&order.Synced,
		); err != nil {
			return nil, fmt.Errorf("scan queued order row: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("unmarshal queued order items: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE offline_orders SET synced = true, synced_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark order synced: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark order synced: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) Depth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_orders WHERE synced = false`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unsynced orders: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
