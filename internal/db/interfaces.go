package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/roasbeef/canvasrca/internal/db/sqlc"
)

// DefaultStoreTimeout bounds any single interaction with the database.
var DefaultStoreTimeout = time.Second * 5

const (
	// DefaultNumTxRetries is how many times a transaction that failed
	// with SQLITE_BUSY or SQLITE_LOCKED is retried.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay seeds the randomized backoff. The first
	// delay lands between 50% and 150% of this value and doubles on each
	// attempt up to DefaultMaxRetryDelay.
	DefaultInitialRetryDelay = time.Millisecond * 40

	// DefaultMaxRetryDelay caps the backoff between retries.
	DefaultMaxRetryDelay = time.Second * 3
)

// TxOptions controls what type of database transaction is created.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read-only.
	ReadOnly() bool
}

// BaseTxOptions defines the set of db txn options the database understands.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly returns true if the transaction should be read only.
//
// NOTE: This implements the TxOptions interface.
func (a *BaseTxOptions) ReadOnly() bool {
	return a.readOnly
}

// ReadTxOption returns a TxOptions that indicates a read-only transaction.
func ReadTxOption() *BaseTxOptions {
	return &BaseTxOptions{
		readOnly: true,
	}
}

// WriteTxOption returns a TxOptions that indicates a write transaction.
func WriteTxOption() *BaseTxOptions {
	return &BaseTxOptions{
		readOnly: false,
	}
}

// BatchedTx executes several operations against Q in a single atomic
// transaction.
type BatchedTx[Q any] interface {
	ExecTx(ctx context.Context, txOptions TxOptions,
		txBody func(Q) error) error
}

// QueryCreator builds a Q bound to the given transaction.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier is a query source that can also open transactions.
type BatchedQuerier interface {
	sqlc.Querier

	// BeginTx creates a new database transaction given the set of
	// transaction options.
	BeginTx(ctx context.Context, options TxOptions) (*sql.Tx, error)
}

// BaseDB pairs a connection with its queries.
type BaseDB struct {
	*sql.DB

	*sqlc.Queries
}

// NewBaseDB creates a new BaseDB instance from a sql.DB connection.
func NewBaseDB(db *sql.DB) *BaseDB {
	return &BaseDB{
		DB:      db,
		Queries: sqlc.New(db),
	}
}

// BeginTx maps TxOptions onto the sql package's options.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error) {
	sqlOptions := sql.TxOptions{
		ReadOnly: opts.ReadOnly(),
	}

	return s.DB.BeginTx(ctx, &sqlOptions)
}
