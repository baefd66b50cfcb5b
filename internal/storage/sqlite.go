package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		rpc_url TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		deployer_address TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		block_number INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_network ON attempts(network);
	CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at, id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Debug("sqlite migrations applied")
	return nil
}

// CreateAttempt inserts a new attempt, assigning an ID when empty
func (s *SQLiteStore) CreateAttempt(ctx context.Context, a *Attempt) error {
	if err := prepareAttempt(a, s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, network, chain_id, rpc_url, contract_name, deployer_address, tx_hash, address, block_number, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Network, int64(a.ChainID), a.RPCURL, a.ContractName, a.DeployerAddress, a.TxHash, a.Address,
		int64(a.BlockNumber), string(a.Status), a.Error, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// UpdateAttempt writes the mutable fields of an existing attempt
func (s *SQLiteStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	a.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET deployer_address = ?, tx_hash = ?, address = ?, block_number = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		a.DeployerAddress, a.TxHash, a.Address, int64(a.BlockNumber), string(a.Status), a.Error, formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating attempt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *SQLiteStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, network, chain_id, rpc_url, contract_name, deployer_address, tx_hash, address, block_number, status, error, created_at, updated_at
		FROM attempts WHERE id = ?`, id)

	a, err := scanSQLiteAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAttempts lists attempts newest first
func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error) {
	limit := normalizeLimit(pagination.Limit)
	query, args := (&listQuery{}).build(filter, pagination, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanSQLiteAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginate(attempts, limit), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAttempt(row rowScanner) (*Attempt, error) {
	var (
		a                    Attempt
		chainID, blockNumber int64
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.Network, &chainID, &a.RPCURL, &a.ContractName, &a.DeployerAddress, &a.TxHash,
		&a.Address, &blockNumber, &status, &a.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.ChainID = uint64(chainID)
	a.BlockNumber = uint64(blockNumber)
	a.Status = AttemptStatus(status)
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}
