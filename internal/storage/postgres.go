package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id UUID PRIMARY KEY,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		rpc_url TEXT NOT NULL,
		contract_name TEXT NOT NULL,
		deployer_address TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		block_number BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_network ON attempts(network);
	CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at, id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Debug("postgres migrations applied")
	return nil
}

// CreateAttempt inserts a new attempt, assigning an ID when empty
func (s *PostgresStore) CreateAttempt(ctx context.Context, a *Attempt) error {
	if err := prepareAttempt(a, s.now()); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, network, chain_id, rpc_url, contract_name, deployer_address, tx_hash, address, block_number, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Network, int64(a.ChainID), a.RPCURL, a.ContractName, a.DeployerAddress, a.TxHash, a.Address,
		int64(a.BlockNumber), string(a.Status), a.Error, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID)
		}
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// UpdateAttempt writes the mutable fields of an existing attempt
func (s *PostgresStore) UpdateAttempt(ctx context.Context, a *Attempt) error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	a.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attempts SET deployer_address = $1, tx_hash = $2, address = $3, block_number = $4, status = $5, error = $6, updated_at = $7
		WHERE id = $8`,
		a.DeployerAddress, a.TxHash, a.Address, int64(a.BlockNumber), string(a.Status), a.Error, a.UpdatedAt, a.ID,
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
func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, network, chain_id, rpc_url, contract_name, deployer_address, tx_hash, address, block_number, status, error, created_at, updated_at
		FROM attempts WHERE id = $1`, id)

	a, err := scanPostgresAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAttempts lists attempts newest first
func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter, pagination PaginationParams) (*PaginatedResult[Attempt], error) {
	limit := normalizeLimit(pagination.Limit)
	query, args := (&listQuery{dollar: true}).build(filter, pagination, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanPostgresAttempt(rows)
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

func scanPostgresAttempt(row rowScanner) (*Attempt, error) {
	var (
		a                    Attempt
		chainID, blockNumber int64
		status               string
	)
	err := row.Scan(&a.ID, &a.Network, &chainID, &a.RPCURL, &a.ContractName, &a.DeployerAddress, &a.TxHash,
		&a.Address, &blockNumber, &status, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.ChainID = uint64(chainID)
	a.BlockNumber = uint64(blockNumber)
	a.Status = AttemptStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}
