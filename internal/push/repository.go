// AngelaMos | 2026
// repository.go

package push

import (
	"context"
	"fmt"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, sub *Subscription) error
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) error
	DeleteByID(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]Subscription, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert registers a device. An endpoint already known under another
// account moves to the current one, since a browser belongs to whoever is
// signed in on it now.
func (r *repository) Upsert(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    p256dh = EXCLUDED.p256dh,
		    auth = EXCLUDED.auth,
		    user_agent = EXCLUDED.user_agent,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		sub.UserAgent,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}

	return nil
}

func (r *repository) DeleteByEndpoint(
	ctx context.Context,
	userID, endpoint string,
) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`

	result, err := r.db.ExecContext(ctx, query, userID, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete push subscription: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM push_subscriptions WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}

	return nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at`

	subs := []Subscription{}
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}

	return subs, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM push_subscriptions`); err != nil {
		return 0, fmt.Errorf("count push subscriptions: %w", err)
	}
	return total, nil
}
