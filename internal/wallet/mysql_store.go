package wallet

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "ChainPilot/internal/errors"
)

// MySQLConfig carries connection settings for the MySQL-backed store.
type MySQLConfig struct {
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

const walletSchema = `
CREATE TABLE IF NOT EXISTS wallets (
	id              VARCHAR(64)  NOT NULL,
	user_identity   VARCHAR(190) NOT NULL,
	address         VARCHAR(64)  NOT NULL,
	private_key_hex VARCHAR(130) NOT NULL,
	created_at      BIGINT       NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uniq_user_identity (user_identity)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// MySQLStore persists wallet records in MySQL. The unique index on
// user_identity is what enforces the one-wallet-per-identity invariant;
// duplicate inserts surface as CONFLICT.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens the database, tunes the pool and ensures the schema.
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "mysql dsn must not be empty")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "open mysql")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "ping mysql")
	}
	if _, err := db.ExecContext(ctx, walletSchema); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "ensure wallet schema")
	}
	return &MySQLStore{db: db}, nil
}

// Find implements Store.
func (s *MySQLStore) Find(ctx context.Context, userIdentity string) (*Record, error) {
	const query = `SELECT id, user_identity, address, private_key_hex, created_at FROM wallets WHERE user_identity = ?`
	record := &Record{}
	err := s.db.QueryRowContext(ctx, query, userIdentity).Scan(
		&record.ID, &record.UserIdentity, &record.Address, &record.PrivateKeyHex, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.New(xerrors.CodeNotFound, "wallet not found")
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "query wallet")
	}
	return record, nil
}

// Create implements Store.
func (s *MySQLStore) Create(ctx context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record must not be nil")
	}
	const query = `INSERT INTO wallets (id, user_identity, address, private_key_hex, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserIdentity, record.Address, record.PrivateKeyHex, record.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return xerrors.New(xerrors.CodeConflict, "wallet already exists for identity")
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "insert wallet")
	}
	return nil
}

// Close implements Store.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
