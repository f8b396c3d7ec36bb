package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/peer-support/internal/model"
)

const messageColumns = "id,content,file_url,user_id,status,has_response,response_id,created_at,updated_at"

// MessageRepo persists client messages in the `messages` table.
type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		m    model.Message
		resp sql.NullString
	)
	err := row.Scan(&m.ID, &m.Content, &m.FileURL, &m.UserID, &m.Status, &m.HasResponse, &resp,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.Valid && resp.String != "" {
		id := resp.String
		m.ResponseID = &id
	}
	m.Normalize()
	return &m, nil
}

// CreateMessage inserts m.  New messages never carry a response.
func (r *MessageRepo) CreateMessage(ctx context.Context, m *model.Message) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		m.ID, m.Content, m.FileURL, m.UserID, m.Status, false, nil, m.CreatedAt, m.UpdatedAt)
	return err
}

// GetMessage fetches a message by id.
func (r *MessageRepo) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return scanMessage(r.DB.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id=? LIMIT 1", id))
}

// ListMessages returns messages matching f, newest first.
func (r *MessageRepo) ListMessages(ctx context.Context, f model.MessageFilter) ([]*model.Message, error) {
	q := "SELECT " + messageColumns + " FROM messages"
	var args []any
	if !f.AllAuthors {
		if len(f.AuthorIDs) == 0 {
			return []*model.Message{}, nil
		}
		q += " WHERE user_id IN (" + placeholders(len(f.AuthorIDs)) + ")"
		args = stringArgs(f.AuthorIDs)
	}
	q += " ORDER BY id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessageStatus overwrites the status column only, and only while
// the response reference satisfies guard.
func (r *MessageRepo) UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, guard model.ResponseGuard) (*model.Message, error) {
	q := "UPDATE messages SET status=?, updated_at=? WHERE id=?"
	switch guard {
	case model.WithoutResponse:
		q += " AND response_id IS NULL"
	case model.WithResponse:
		q += " AND response_id IS NOT NULL"
	}
	res, err := r.DB.ExecContext(ctx, q, status, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if guard == model.AnyResponse {
			return nil, ErrNotFound
		}
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM messages WHERE id=?", id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrStale
	}
	return r.GetMessage(ctx, id)
}
