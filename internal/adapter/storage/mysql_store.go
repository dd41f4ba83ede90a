package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

const stockSchema = `
CREATE TABLE IF NOT EXISTS stock_levels (
	location_id VARCHAR(64)  NOT NULL,
	product_id  VARCHAR(64)  NOT NULL,
	quantity    INT          NOT NULL,
	version     BIGINT       NOT NULL DEFAULT 0,
	updated_at  DATETIME(6)  NOT NULL,
	PRIMARY KEY (location_id, product_id),
	CONSTRAINT stock_levels_non_negative CHECK (quantity >= 0)
)`

type MySQLStockStore struct {
	db *sql.DB
}

func NewMySQLStockStore(db *sql.DB) *MySQLStockStore {
	return &MySQLStockStore{db: db}
}

// OpenMySQL opens and pings a pool sized for the service.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (m *MySQLStockStore) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, stockSchema); err != nil {
		return fmt.Errorf("create stock_levels: %w", err)
	}
	return nil
}

func (m *MySQLStockStore) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, location_id, quantity, version, updated_at
		FROM stock_levels WHERE location_id = ? AND product_id = ?`,
		key.LocationID, key.ProductID,
	).Scan(&rec.ProductID, &rec.LocationID, &rec.Quantity, &rec.Version, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &rec, nil
}

func (m *MySQLStockStore) Insert(ctx context.Context, record domain.StockRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_levels (location_id, product_id, quantity, version, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.LocationID, record.ProductID, record.Quantity, record.Version, record.UpdatedAt,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("insert stock: %w", err)
	}
	return nil
}

func (m *MySQLStockStore) Update(ctx context.Context, record domain.StockRecord) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE stock_levels
		SET quantity = ?, version = ?, updated_at = ?
		WHERE location_id = ? AND product_id = ? AND version = ?`,
		record.Quantity, record.Version, record.UpdatedAt,
		record.LocationID, record.ProductID, record.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	updated, err := affectedOne(result)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	if _, err := m.Get(ctx, record.Key()); err != nil {
		return err
	}
	return ErrOptimisticLock
}

func affectedOne(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLStockStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_levels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	return n, nil
}
