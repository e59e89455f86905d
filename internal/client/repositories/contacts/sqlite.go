package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/dbx"
)

// SQLiteRepository stores contacts in the local sqlite database.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (public_key, type, flags, out_path_len, out_path, name, last_advert, lat, lon, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(public_key) DO UPDATE SET
			type = excluded.type,
			flags = excluded.flags,
			out_path_len = excluded.out_path_len,
			out_path = excluded.out_path,
			name = excluded.name,
			last_advert = excluded.last_advert,
			lat = excluded.lat,
			lon = excluded.lon,
			last_modified = excluded.last_modified
	`, c.PublicKey, c.Type, c.Flags, c.OutPathLen, c.OutPath, c.Name, c.LastAdvert, c.Lat, c.Lon, c.LastModified)
	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", c.ShortKey(), err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT public_key, type, flags, out_path_len, out_path, name, last_advert, lat, lon, last_modified
		FROM contacts ORDER BY name COLLATE NOCASE, public_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var result []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetByKey(ctx context.Context, key []byte) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT public_key, type, flags, out_path_len, out_path, name, last_advert, lat, lon, last_modified
		FROM contacts WHERE public_key = ?
	`, key)
	return oneContact(row)
}

func (r *SQLiteRepository) GetByPrefix(ctx context.Context, prefix []byte) (*models.Contact, error) {
	// substr on a BLOB column compares bytewise in sqlite.
	row := r.db.QueryRowContext(ctx, `
		SELECT public_key, type, flags, out_path_len, out_path, name, last_advert, lat, lon, last_modified
		FROM contacts WHERE substr(public_key, 1, ?) = ? LIMIT 1
	`, len(prefix), prefix)
	return oneContact(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(&c.PublicKey, &c.Type, &c.Flags, &c.OutPathLen, &c.OutPath,
		&c.Name, &c.LastAdvert, &c.Lat, &c.Lon, &c.LastModified)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func oneContact(row *sql.Row) (*models.Contact, error) {
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}
