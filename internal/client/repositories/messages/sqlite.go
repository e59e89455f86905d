package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/dbx"
)

const defaultListLimit = 50

// SQLiteRepository stores messages in the local sqlite database.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, m *models.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, contact_key, direction, channel_idx, txt_type, text, sender_ts, status, ack_code, route_type, attempts, rtt_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ContactKey, int(m.Direction), m.ChannelIdx, m.TxtType, m.Text, m.SenderTS,
		string(m.Status), m.AckCode, m.RouteType, m.Attempts, m.RTTMs, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, contact_key, direction, channel_idx, txt_type, text, sender_ts, status, ack_code, route_type, attempts, rtt_ms, created_at
		FROM messages WHERE id = ?
	`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, id string, ackCode uint32, routeType byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, ack_code = ?, route_type = ?, attempts = 1 WHERE id = ?
	`, string(models.StatusSent), ackCode, routeType, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %s sent: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkDelivered(ctx context.Context, id string, rttMs uint32, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, rtt_ms = ?, attempts = ? WHERE id = ?
	`, string(models.StatusDelivered), rttMs, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %s delivered: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, attempts = ? WHERE id = ?
	`, string(models.StatusFailed), attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark message %s failed: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByContact(ctx context.Context, key []byte, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_key, direction, channel_idx, txt_type, text, sender_ts, status, ack_code, route_type, attempts, rtt_ms, created_at
		FROM messages WHERE contact_key = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return collectOldestFirst(rows)
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_key, direction, channel_idx, txt_type, text, sender_ts, status, ack_code, route_type, attempts, rtt_ms, created_at
		FROM messages ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return collectOldestFirst(rows)
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	m := &models.Message{}
	var dir int
	var status string
	err := row.Scan(&m.ID, &m.ContactKey, &dir, &m.ChannelIdx, &m.TxtType, &m.Text,
		&m.SenderTS, &status, &m.AckCode, &m.RouteType, &m.Attempts, &m.RTTMs, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Direction = models.Direction(dir)
	m.Status = models.MessageStatus(status)
	return m, nil
}

// collectOldestFirst consumes rows selected newest-first and returns them
// in reading order.
func collectOldestFirst(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}
