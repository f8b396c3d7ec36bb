package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/peer-support/internal/model"
)

const responseColumns = "id,content,file_url,message_id,motivator_id,created_at,updated_at"

// ResponseRepo persists responses in the `responses` table.  The table has
// a unique key on message_id as a second line of defence behind the
// conditional update in AttachResponse.
type ResponseRepo struct{ DB *sql.DB }

func NewResponseRepo(db *sql.DB) *ResponseRepo { return &ResponseRepo{DB: db} }

func scanResponse(row rowScanner) (*model.Response, error) {
	var x model.Response
	err := row.Scan(&x.ID, &x.Content, &x.FileURL, &x.MessageID, &x.MotivatorID, &x.CreatedAt, &x.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &x, nil
}

// AttachResponse claims the message with a conditional update and inserts
// the response inside one transaction.  The UPDATE takes the row lock, so
// a concurrent attach blocks until this transaction finishes and then
// matches zero rows.
func (r *ResponseRepo) AttachResponse(ctx context.Context, resp *model.Response) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE messages SET response_id=?, has_response=1, status=?, updated_at=? WHERE id=? AND response_id IS NULL",
		resp.ID, model.MessageStatusResponded, time.Now().UTC(), resp.MessageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM messages WHERE id=?", resp.MessageID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO responses ("+responseColumns+") VALUES (?,?,?,?,?,?,?)",
		resp.ID, resp.Content, resp.FileURL, resp.MessageID, resp.MotivatorID, resp.CreatedAt, resp.UpdatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetResponse fetches a response by id.
func (r *ResponseRepo) GetResponse(ctx context.Context, id string) (*model.Response, error) {
	return scanResponse(r.DB.QueryRowContext(ctx,
		"SELECT "+responseColumns+" FROM responses WHERE id=? LIMIT 1", id))
}

// ListResponsesByIDs returns the responses whose ids appear in ids.
func (r *ResponseRepo) ListResponsesByIDs(ctx context.Context, ids []string) ([]*model.Response, error) {
	if len(ids) == 0 {
		return []*model.Response{}, nil
	}
	return r.query(ctx, "SELECT "+responseColumns+" FROM responses WHERE id IN ("+placeholders(len(ids))+")",
		stringArgs(ids)...)
}

// ListResponses returns responses by motivatorID, or all when it is empty.
func (r *ResponseRepo) ListResponses(ctx context.Context, motivatorID string) ([]*model.Response, error) {
	if motivatorID == "" {
		return r.query(ctx, "SELECT "+responseColumns+" FROM responses ORDER BY id DESC")
	}
	return r.query(ctx, "SELECT "+responseColumns+" FROM responses WHERE motivator_id=? ORDER BY id DESC", motivatorID)
}

func (r *ResponseRepo) query(ctx context.Context, q string, args ...any) ([]*model.Response, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Response{}
	for rows.Next() {
		x, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
