package migrations

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/lib/pq"
	"golang.org/x/xerrors"
)

const (
	lockID              = int64(4718230591733284219)
	migrationsTableName = "schema_migrations"
)

// txnDriver runs every migration step inside the transaction that holds
// the advisory lock, so a failed step leaves no partial schema behind.
type txnDriver struct {
	ctx context.Context
	db  *sql.DB
	tx  *sql.Tx
}

var _ database.Driver = (*txnDriver)(nil)

func (*txnDriver) Open(string) (database.Driver, error) {
	return nil, xerrors.New("txnDriver is constructed directly, not by URL")
}

func (*txnDriver) Close() error {
	return nil
}

func (d *txnDriver) Lock() error {
	tx, err := d.db.BeginTx(d.ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(d.ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
		_ = tx.Rollback()
		return xerrors.Errorf("acquire migration lock: %w", err)
	}
	d.tx = tx
	return nil
}

func (d *txnDriver) Unlock() error {
	err := d.tx.Commit()
	d.tx = nil
	if err != nil {
		return xerrors.Errorf("commit tx on unlock: %w", err)
	}
	return nil
}

// Run applies a migration to the database. migration is guaranteed to be not nil.
func (d *txnDriver) Run(migration io.Reader) error {
	migr, err := io.ReadAll(migration)
	if err != nil {
		return xerrors.Errorf("read migration: %w", err)
	}
	// The surrounding transaction owns BEGIN/COMMIT.
	migr = bytes.ReplaceAll(migr, []byte("BEGIN;"), nil)
	migr = bytes.ReplaceAll(migr, []byte("COMMIT;"), nil)

	query := string(migr)
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := d.tx.ExecContext(d.ctx, query); err != nil {
		var pqErr *pq.Error
		if xerrors.As(err, &pqErr) {
			message := fmt.Sprintf("migration failed: %s", pqErr.Message)
			if pqErr.Detail != "" {
				message = fmt.Sprintf("%s, %s", message, pqErr.Detail)
			}
			return database.Error{OrigErr: err, Err: message, Query: migr}
		}
		return database.Error{OrigErr: err, Err: "migration failed", Query: migr}
	}
	return nil
}

func (d *txnDriver) SetVersion(version int, dirty bool) error {
	query := `TRUNCATE ` + migrationsTableName
	if _, err := d.tx.ExecContext(d.ctx, query); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	if version >= 0 {
		query = `INSERT INTO ` + migrationsTableName + ` (version, dirty) VALUES ($1, $2)`
		if _, err := d.tx.ExecContext(d.ctx, query, version, dirty); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}
	return nil
}

func (d *txnDriver) Version() (version int, dirty bool, err error) {
	var q interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	} = d.db
	if d.tx != nil {
		q = d.tx
	}

	query := `SELECT version, dirty FROM ` + migrationsTableName + ` LIMIT 1`
	err = q.QueryRowContext(d.ctx, query).Scan(&version, &dirty)
	switch {
	case xerrors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, &database.Error{OrigErr: err, Query: []byte(query)}
	default:
		return version, dirty, nil
	}
}

func (*txnDriver) Drop() error {
	return xerrors.New("drop is not supported")
}

func (d *txnDriver) ensureVersionTable() error {
	const query = `CREATE TABLE IF NOT EXISTS ` + migrationsTableName + ` (version bigint not null primary key, dirty boolean not null)`
	if _, err := d.db.ExecContext(d.ctx, query); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return nil
}
