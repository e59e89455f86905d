// Package client bootstraps the companion's local sqlite store: it opens
// the database, applies the embedded goose migrations and wires the
// repositories the services run on.
//
// The sqlite driver is not imported here; binaries (and tests) bring their
// own with a blank import of modernc.org/sqlite.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/mclink/internal/client/migrations"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/contacts"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/messages"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mclink/internal/dbx"
)

// Repositories bundles the store handles handed to the services.
type Repositories struct {
	Contacts contacts.Repository
	Messages messages.Repository
	Metadata metadata.Repository
	DB       *sql.DB
}

// Close releases the underlying database.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

// Reset wipes the local mirror: contacts, messages and metadata go in one
// transaction, so a failed wipe leaves the store as it was. The schema
// stays in place.
func (r *Repositories) Reset(ctx context.Context) error {
	return dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, stmt := range []string{
			`DELETE FROM messages`,
			`DELETE FROM contacts`,
			`DELETE FROM metadata`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunMigrations applies the embedded schema migrations. Running them again
// on an up-to-date database is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the sqlite database at dsn, migrates it and returns
// the wired repositories.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		Contacts: contacts.NewSQLiteRepository(db),
		Messages: messages.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
