package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/models"
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// MySQLClient handles the instrument catalog and the sync cursor
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// Instrument operations

// GetActiveInstruments retrieves the active catalog ordered by category then
// symbol so that consecutive runs see the same sequence.
func (mc *MySQLClient) GetActiveInstruments(ctx context.Context) ([]*models.Instrument, error) {
	query := `
		SELECT id, symbol, full_name, category, venue,
		       base_currency, quote_currency, is_active,
		       created_at, updated_at
		FROM instruments
		WHERE is_active = 1
		ORDER BY category, symbol
	`

	rows, err := mc.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		inst := &models.Instrument{}
		err := rows.Scan(
			&inst.ID,
			&inst.Symbol,
			&inst.FullName,
			&inst.Category,
			&inst.Venue,
			&inst.BaseCurrency,
			&inst.QuoteCurrency,
			&inst.IsActive,
			&inst.CreatedAt,
			&inst.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	mc.logger.WithField("count", len(instruments)).Debug("Loaded active instruments")
	return instruments, nil
}

// GetInstruments retrieves instruments with optional category/venue filters
func (mc *MySQLClient) GetInstruments(ctx context.Context, category, venue string, limit int) ([]*models.Instrument, error) {
	query := `
		SELECT id, symbol, full_name, category, venue,
		       base_currency, quote_currency, is_active,
		       created_at, updated_at
		FROM instruments
		WHERE 1 = 1
	`
	args := []interface{}{}

	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if venue != "" {
		query += " AND venue = ?"
		args = append(args, venue)
	}

	query += " ORDER BY category, symbol"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		inst := &models.Instrument{}
		err := rows.Scan(
			&inst.ID,
			&inst.Symbol,
			&inst.FullName,
			&inst.Category,
			&inst.Venue,
			&inst.BaseCurrency,
			&inst.QuoteCurrency,
			&inst.IsActive,
			&inst.CreatedAt,
			&inst.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}

	return instruments, rows.Err()
}

// GetInstrument retrieves a single instrument by symbol
func (mc *MySQLClient) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	query := `
		SELECT id, symbol, full_name, category, venue,
		       base_currency, quote_currency, is_active,
		       created_at, updated_at
		FROM instruments
		WHERE symbol = ?
	`

	inst := &models.Instrument{}
	err := mc.db.QueryRowContext(ctx, query, symbol).Scan(
		&inst.ID,
		&inst.Symbol,
		&inst.FullName,
		&inst.Category,
		&inst.Venue,
		&inst.BaseCurrency,
		&inst.QuoteCurrency,
		&inst.IsActive,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}

	return inst, nil
}

// UpsertInstrument inserts or refreshes an instrument by symbol
func (mc *MySQLClient) UpsertInstrument(ctx context.Context, inst *models.Instrument) error {
	query := `
		INSERT INTO instruments (
			symbol, full_name, category, venue,
			base_currency, quote_currency, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			full_name = VALUES(full_name),
			category = VALUES(category),
			venue = VALUES(venue),
			base_currency = VALUES(base_currency),
			quote_currency = VALUES(quote_currency),
			is_active = VALUES(is_active),
			updated_at = CURRENT_TIMESTAMP
	`

	result, err := mc.db.ExecContext(ctx, query,
		inst.Symbol,
		inst.FullName,
		inst.Category,
		inst.Venue,
		inst.BaseCurrency,
		inst.QuoteCurrency,
		inst.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert instrument: %w", err)
	}

	if inst.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			inst.ID = int(id)
		}
	}

	return nil
}

// CountInstruments returns total and active instrument counts
func (mc *MySQLClient) CountInstruments(ctx context.Context) (int, int, error) {
	var total, active int
	err := mc.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM instruments",
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count instruments: %w", err)
	}

	return total, active, nil
}

// Sync cursor operations

// GetSyncCursor reads a named cursor position. The second return value
// reports whether a cursor row exists.
func (mc *MySQLClient) GetSyncCursor(ctx context.Context, name string) (int, bool, error) {
	var position int
	err := mc.db.QueryRowContext(ctx,
		"SELECT position FROM sync_progress WHERE name = ?", name,
	).Scan(&position)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return position, true, nil
}

// SetSyncCursor writes a named cursor position
func (mc *MySQLClient) SetSyncCursor(ctx context.Context, name string, position int) error {
	query := `
		INSERT INTO sync_progress (name, position)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			position = VALUES(position),
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := mc.db.ExecContext(ctx, query, name, position); err != nil {
		return fmt.Errorf("failed to set sync cursor: %w", err)
	}

	return nil
}

// DeleteSyncCursor removes a named cursor. Deleting a missing cursor is not
// an error.
func (mc *MySQLClient) DeleteSyncCursor(ctx context.Context, name string) error {
	if _, err := mc.db.ExecContext(ctx,
		"DELETE FROM sync_progress WHERE name = ?", name,
	); err != nil {
		return fmt.Errorf("failed to delete sync cursor: %w", err)
	}

	return nil
}

// Transaction support

// ExecTx executes a function within a transaction
func (mc *MySQLClient) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
