// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SetStripeCustomerID(ctx context.Context, id string, customerID *string) error
	SetSubscription(ctx context.Context, id string, sub Subscription) error
	SetSubscriptionIfExpired(
		ctx context.Context,
		id string,
		sub Subscription,
		now time.Time,
	) (bool, error)
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	CountActive(ctx context.Context, now time.Time) (ActiveCounts, error)
}

// ActiveCounts feeds the admin stats page.
type ActiveCounts struct {
	Total      int `db:"total"      json:"total"`
	Trialing   int `db:"trialing"   json:"trialing"`
	Subscribed int `db:"subscribed" json:"subscribed"`
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	const q = `
		INSERT INTO users (
			id, email, password_hash, name, role, terms_accepted,
			marketing_accepted, consents_accepted_at, trial_ends_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING token_version, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.TermsAccepted,
		u.MarketingAccepted, u.ConsentsAcceptedAt, u.TrialEndsAt,
	)
	err := row.Scan(&u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case core.IsUniqueViolation(err):
		return fmt.Errorf("insert user: %w", core.ErrDuplicateKey)
	case err != nil:
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, "user by id", "id", id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "user by email", "email", email)
}

func (r *repository) GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	return r.findOne(ctx, "user by customer", "stripe_customer_id", customerID)
}

// findOne loads a live account by a single unique column. column is always
// a literal from this file.
func (r *repository) findOne(ctx context.Context, op, column string, value any) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users
		WHERE ` + column + ` = $1 AND deleted_at IS NULL`

	var u User
	err := r.db.GetContext(ctx, &u, q, value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

func (r *repository) Update(ctx context.Context, u *User) error {
	const q = `
		UPDATE users
		SET name = $2,
		    role = $3,
		    marketing_accepted = $4,
		    consents_accepted_at = $5,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &u.UpdatedAt, q,
		u.ID, u.Name, u.Role, u.MarketingAccepted, u.ConsentsAcceptedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	case err != nil:
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.touch(ctx, "update password", id, "password_hash = $2", passwordHash)
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id string) error {
	return r.touch(ctx, "bump token version", id, "token_version = token_version + 1")
}

func (r *repository) SetStripeCustomerID(ctx context.Context, id string, customerID *string) error {
	return r.touch(ctx, "set stripe customer", id, "stripe_customer_id = $2", customerID)
}

func (r *repository) SetSubscription(ctx context.Context, id string, sub Subscription) error {
	return r.touch(ctx, "set subscription", id, subscriptionSet,
		sub.SubscriptionID, sub.PriceID, sub.PeriodEnd,
	)
}

const subscriptionSet = `stripe_subscription_id = $2,
		    stripe_price_id = $3,
		    stripe_current_period_end = $4`

// SetSubscriptionIfExpired only writes when no period is running, so two
// concurrent code redemptions cannot stack.
func (r *repository) SetSubscriptionIfExpired(
	ctx context.Context,
	id string,
	sub Subscription,
	now time.Time,
) (bool, error) {
	q := `UPDATE users SET ` + subscriptionSet + `, updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND (stripe_current_period_end IS NULL OR stripe_current_period_end <= $5)`

	n, err := r.exec(ctx, q, id, sub.SubscriptionID, sub.PriceID, sub.PeriodEnd, now)
	if err != nil {
		return false, fmt.Errorf("redeem subscription: %w", err)
	}
	return n == 1, nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	return r.touch(ctx, "delete user", id, "deleted_at = NOW()")
}

func (r *repository) List(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	params.Normalize()

	where := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Search != "" {
		p := arg("%" + escapeLike(params.Search) + "%")
		where = append(where, "(email ILIKE "+p+" OR name ILIKE "+p+")")
	}
	if params.Role != "" {
		where = append(where, "role = "+arg(params.Role))
	}
	filter := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE `+filter, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := `SELECT ` + userColumns + ` FROM users WHERE ` + filter +
		` ORDER BY created_at DESC LIMIT ` + arg(params.PageSize) + ` OFFSET ` + arg(params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, page, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *repository) CountActive(ctx context.Context, now time.Time) (ActiveCounts, error) {
	const q = `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE trial_ends_at > $1) AS trialing,
		       COUNT(*) FILTER (WHERE stripe_current_period_end > $1) AS subscribed
		FROM users
		WHERE deleted_at IS NULL`

	var counts ActiveCounts
	if err := r.db.GetContext(ctx, &counts, q, now); err != nil {
		return ActiveCounts{}, fmt.Errorf("count active users: %w", err)
	}
	return counts, nil
}

// touch applies set to one live row, bumping updated_at. Extra args start
// at $2.
func (r *repository) touch(ctx context.Context, op, id, set string, args ...any) error {
	q := `UPDATE users SET ` + set + `, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	n, err := r.exec(ctx, q, append([]any{id}, args...)...)
	switch {
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	case n == 0:
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *repository) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
