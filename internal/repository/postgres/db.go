// Package postgres implements the workflow repositories against PostgreSQL.
//
// Every repository shares one *sqlx.DB. RunInTx stores the open *sqlx.Tx in
// the context, so calls made through any repository with that context join
// the same transaction regardless of which repository opened it.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PoolConfig holds the connection pool settings applied by Open.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type txKey struct{}

// txFrom returns the transaction carried by ctx, if any.
func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// base is embedded by every repository.
type base struct{ db *sqlx.DB }

// q returns the open transaction when ctx carries one, the pool otherwise.
func (b base) q(ctx context.Context) sqlx.ExtContext {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return b.db
}

// RunInTx runs fn inside a transaction. A nested call joins the outer
// transaction and leaves commit to it.
func (b base) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// ErrNoTx is returned by LockKey when called outside RunInTx.
var ErrNoTx = errors.New("postgres: advisory lock requires a transaction")

// LockKey takes a transaction-scoped advisory lock on key. The lock is
// released when the transaction commits or rolls back.
func (b base) LockKey(ctx context.Context, key string) error {
	tx := txFrom(ctx)
	if tx == nil {
		return ErrNoTx
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}

// Repositories groups every repository over one pool.
type Repositories struct {
	People        *PeopleRepo
	Campaigns     *CampaignRepo
	Invoices      *InvoiceRepo
	Notifications *NotificationRepo
	Scans         *ScanRepo
}

// New builds every repository over db.
func New(db *sqlx.DB) *Repositories {
	return &Repositories{
		People:        NewPeopleRepo(db),
		Campaigns:     NewCampaignRepo(db),
		Invoices:      NewInvoiceRepo(db),
		Notifications: NewNotificationRepo(db),
		Scans:         NewScanRepo(db),
	}
}

// affected reports whether res touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
