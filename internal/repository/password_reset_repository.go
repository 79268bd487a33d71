package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
)

// PasswordResetRepo stores one-time codes for the forgot-password flow.
// Only the SHA-256 hash of a code is kept, like refresh tokens.
type PasswordResetRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPasswordResetRepo(db *sql.DB) *PasswordResetRepo {
	return &PasswordResetRepo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// Issue stores a new code for userID.  Earlier unused codes of the
// user are invalidated so only the latest one works.
func (r *PasswordResetRepo) Issue(ctx context.Context, userID uint64, codeHash string, exp time.Time) error {
	return NewTransactor(r.DB).WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE password_resets SET used_at=? WHERE user_id=? AND used_at IS NULL",
			r.now(), userID); err != nil {
			return errors.Wrap(err, "invalidate password resets")
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO password_resets (user_id, code_hash, expires_at) VALUES (?,?,?)",
			userID, codeHash, exp)
		return errors.Wrap(err, "store password reset")
	})
}

// Check reports whether codeHash is a live code of userID.  Unknown,
// used and expired codes yield ErrOTPInvalid.
func (r *PasswordResetRepo) Check(ctx context.Context, userID uint64, codeHash string) error {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM password_resets WHERE user_id=? AND code_hash=? AND used_at IS NULL AND expires_at > ? LIMIT 1",
		userID, codeHash, r.now()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOTPInvalid
	}
	return errors.Wrap(err, "check password reset")
}

// Reset consumes the code and replaces the user's password hash in one
// transaction, revoking every refresh token of the user.  A code that
// is not live yields ErrOTPInvalid and nothing changes.
func (r *PasswordResetRepo) Reset(ctx context.Context, userID uint64, codeHash, passwordHash string) error {
	return NewTransactor(r.DB).WithTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		res, err := tx.ExecContext(ctx,
			"UPDATE password_resets SET used_at=? WHERE user_id=? AND code_hash=? AND used_at IS NULL AND expires_at > ?",
			now, userID, codeHash, now)
		if err != nil {
			return errors.Wrap(err, "consume password reset")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if n == 0 {
			return ErrOTPInvalid
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", passwordHash, userID); err != nil {
			return errors.Wrap(err, "update password")
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL", now, userID)
		return errors.Wrap(err, "revoke user refresh tokens")
	})
}
