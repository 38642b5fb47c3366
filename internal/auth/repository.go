// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

// errAlreadyRotated is returned by Rotate when another request rotated the
// session first.
var errAlreadyRotated = errors.New("session already rotated")

type Repository interface {
	Insert(ctx context.Context, s *Session) error
	ByTokenHash(ctx context.Context, hash string) (*Session, error)
	ByID(ctx context.Context, id string) (*Session, error)
	// Rotate retires current and stores next in one transaction.
	Rotate(ctx context.Context, currentID string, next *Session) error
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeUser(ctx context.Context, userID string) error
	ListActive(ctx context.Context, userID string, now time.Time) ([]Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func insertSession(ctx context.Context, db core.DBTX, s *Session) error {
	const query = `
		INSERT INTO sessions (
			id, user_id, token_hash, family_id, user_agent, ip_address, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return db.GetContext(ctx, &s.CreatedAt, query,
		s.ID, s.UserID, s.TokenHash, s.FamilyID, s.UserAgent, s.IPAddress, s.ExpiresAt,
	)
}

func (r *repository) Insert(ctx context.Context, s *Session) error {
	if err := insertSession(ctx, r.db, s); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *repository) getOne(ctx context.Context, op, where string, arg any) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM sessions WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

func (r *repository) ByTokenHash(ctx context.Context, hash string) (*Session, error) {
	return r.getOne(ctx, "session by token", "token_hash = $1", hash)
}

func (r *repository) ByID(ctx context.Context, id string) (*Session, error) {
	return r.getOne(ctx, "session by id", "id = $1", id)
}

func (r *repository) Rotate(ctx context.Context, currentID string, next *Session) error {
	err := core.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions
			SET rotated_at = NOW(), replaced_by_id = $2
			WHERE id = $1 AND rotated_at IS NULL AND revoked_at IS NULL`,
			currentID, next.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errAlreadyRotated
		}
		return insertSession(ctx, tx, next)
	})
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

func (r *repository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE family_id = $1 AND revoked_at IS NULL`,
		familyID,
	); err != nil {
		return fmt.Errorf("revoke session family: %w", err)
	}
	return nil
}

func (r *repository) RevokeUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (r *repository) ListActive(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND rotated_at IS NULL
			AND expires_at > $2
		ORDER BY created_at DESC`

	sessions := []Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, now); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteExpired drops sessions that expired more than a day ago.
func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`,
		time.Now().Add(-24*time.Hour),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
