package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/peer-support/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique-key violation.
const mysqlDuplicateEntry = 1062

const userColumns = "id,full_name,email,password_hash,gender,role,status,profile_photo," +
	"bio,experience,specialities,reason,refresh_token_hash,created_at,updated_at"

// UserRepo persists accounts in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Gender, &u.Role, &u.Status,
		&u.ProfilePhoto, &u.Bio, &u.Experience, &u.Specialities, &u.Reason, &u.RefreshTokenHash,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts u.  The email is normalized before insert.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Gender, u.Role, u.Status, u.ProfilePhoto,
		u.Bio, u.Experience, u.Specialities, u.Reason, u.RefreshTokenHash, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// GetUserByID fetches a user by id.
func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetUserByEmail fetches a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// ListUsers returns users matching f, newest first.
func (r *UserRepo) ListUsers(ctx context.Context, f model.UserFilter) ([]*model.User, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, f.Role)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.Gender != "" {
		where = append(where, "gender=?")
		args = append(args, f.Gender)
	}
	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	return r.queryUsers(ctx, q, args...)
}

// ListUsersByIDs returns the users whose ids appear in ids.  Missing ids
// are skipped silently.
func (r *UserRepo) ListUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	q := "SELECT " + userColumns + " FROM users WHERE id IN (" + placeholders(len(ids)) + ")"
	return r.queryUsers(ctx, q, stringArgs(ids)...)
}

func (r *UserRepo) queryUsers(ctx context.Context, q string, args ...any) ([]*model.User, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserStatus sets the lifecycle status and returns the updated row.
func (r *UserRepo) UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	if err := r.exec(ctx, "UPDATE users SET status=?, updated_at=? WHERE id=?",
		status, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// UpdateUserProfile applies the non-nil fields of upd.
func (r *UserRepo) UpdateUserProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	var (
		set  []string
		args []any
	)
	if upd.FullName != nil {
		set = append(set, "full_name=?")
		args = append(args, *upd.FullName)
	}
	if upd.Email != nil {
		set = append(set, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*upd.Email)))
	}
	if upd.Bio != nil {
		set = append(set, "bio=?")
		args = append(args, *upd.Bio)
	}
	if upd.Specialities != nil {
		set = append(set, "specialities=?")
		args = append(args, *upd.Specialities)
	}
	if len(set) == 0 {
		return r.GetUserByID(ctx, id)
	}
	set = append(set, "updated_at=?")
	args = append(args, time.Now().UTC(), id)
	err := r.exec(ctx, "UPDATE users SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	if isDuplicate(err) {
		return nil, ErrEmailExists
	}
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

func (r *UserRepo) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, "UPDATE users SET password_hash=?, updated_at=? WHERE id=?",
		passwordHash, time.Now().UTC(), id)
}

func (r *UserRepo) UpdateUserPhoto(ctx context.Context, id, url string) error {
	return r.exec(ctx, "UPDATE users SET profile_photo=?, updated_at=? WHERE id=?",
		url, time.Now().UTC(), id)
}

// SetRefreshTokenHash overwrites the single refresh-token slot.
func (r *UserRepo) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, "UPDATE users SET refresh_token_hash=? WHERE id=?", hash, id)
}

// SwapRefreshTokenHash is a compare-and-set on the refresh slot.
func (r *UserRepo) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) error {
	err := r.exec(ctx, "UPDATE users SET refresh_token_hash=? WHERE id=? AND refresh_token_hash=?",
		next, id, expected)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	var one int
	err = r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStale
}

// DeleteUser hard-deletes the account.  Messages and responses keep their
// now-dangling author references.
func (r *UserRepo) DeleteUser(ctx context.Context, id string) error {
	return r.exec(ctx, "DELETE FROM users WHERE id=?", id)
}

// exec runs a single-row write and maps "no row matched" to ErrNotFound.
// The DSN sets clientFoundRows so an UPDATE that matches but changes
// nothing still reports one affected row.
func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
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

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
