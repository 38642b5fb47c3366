// AngelaMos | 2026
// repository.go

package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, userID, id string) (*Entry, error)
	List(ctx context.Context, userID string, params ListParams) ([]Entry, error)
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, userID, id string) error
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO journal_entries (id, user_id, entry_date, content)
		VALUES ($1, $2, $3::date, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.EntryDate,
		entry.Content,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	userID, id string,
) (*Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM journal_entries
		WHERE id = $1 AND user_id = $2`

	var entry Entry
	err := r.db.GetContext(ctx, &entry, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get journal entry: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry: %w", err)
	}

	return &entry, nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Entry, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if params.From != "" {
		args = append(args, params.From)
		conditions = append(conditions, fmt.Sprintf("entry_date >= $%d::date", len(args)))
	}
	if params.To != "" {
		args = append(args, params.To)
		conditions = append(conditions, fmt.Sprintf("entry_date <= $%d::date", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s
		FROM journal_entries
		WHERE %s
		ORDER BY entry_date DESC, created_at ASC`,
		entryColumns, strings.Join(conditions, " AND "))

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}

	return entries, nil
}

func (r *repository) Update(ctx context.Context, entry *Entry) error {
	query := `
		UPDATE journal_entries
		SET entry_date = $3::date, content = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &entry.UpdatedAt, query,
		entry.ID,
		entry.UserID,
		entry.EntryDate,
		entry.Content,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update journal entry: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update journal entry: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete journal entry: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM journal_entries`); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return total, nil
}
