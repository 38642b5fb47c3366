// AngelaMos | 2026
// repository.go

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
)

type Repository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, userID, id string) (*Task, error)
	ListByUser(ctx context.Context, userID string) ([]Task, error)
	Update(ctx context.Context, task *Task, resetNotification bool) error
	Delete(ctx context.Context, userID, id string) error
	ListPendingDeadlines(ctx context.Context, from, to string) ([]Task, error)
	ClaimNotification(ctx context.Context, id string, at time.Time) (bool, error)
	ReleaseNotification(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, task *Task) error {
	query := `
		INSERT INTO assigned_tasks (
			id, user_id, title, description, category, priority,
			completed, deadline, deadline_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Category,
		task.Priority,
		task.Completed,
		task.Deadline,
		task.DeadlineTime,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	userID, id string,
) (*Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM assigned_tasks
		WHERE id = $1 AND user_id = $2`

	var task Task
	err := r.db.GetContext(ctx, &task, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &task, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
) ([]Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM assigned_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC`

	tasks := []Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Update writes every mutable column. The notification marker is only ever
// cleared here, never copied back, so a concurrent dispatcher claim is not
// overwritten by a stale read.
func (r *repository) Update(
	ctx context.Context,
	task *Task,
	resetNotification bool,
) error {
	query := `
		UPDATE assigned_tasks
		SET title = $3,
		    description = $4,
		    category = $5,
		    priority = $6,
		    completed = $7,
		    deadline = $8,
		    deadline_time = $9,
		    notification_sent_at = CASE WHEN $10 THEN NULL ELSE notification_sent_at END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING notification_sent_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Category,
		task.Priority,
		task.Completed,
		task.Deadline,
		task.DeadlineTime,
		resetNotification,
	).Scan(&task.NotificationSentAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update task: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM assigned_tasks WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete task: %w", core.ErrNotFound)
	}

	return nil
}

// ListPendingDeadlines returns incomplete, not yet notified tasks whose
// deadline date falls within [from, to].
func (r *repository) ListPendingDeadlines(
	ctx context.Context,
	from, to string,
) ([]Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM assigned_tasks
		WHERE completed = false
		  AND notification_sent_at IS NULL
		  AND deadline IS NOT NULL
		  AND deadline BETWEEN $1::date AND $2::date
		ORDER BY deadline, deadline_time NULLS LAST`

	tasks := []Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, from, to); err != nil {
		return nil, fmt.Errorf("list pending deadlines: %w", err)
	}

	return tasks, nil
}

// ClaimNotification stamps the marker only if it is still empty. A false
// result means another run already owns this deadline occurrence.
func (r *repository) ClaimNotification(
	ctx context.Context,
	id string,
	at time.Time,
) (bool, error) {
	query := `
		UPDATE assigned_tasks
		SET notification_sent_at = $2
		WHERE id = $1 AND notification_sent_at IS NULL AND completed = false`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ReleaseNotification(
	ctx context.Context,
	id string,
	at time.Time,
) error {
	query := `
		UPDATE assigned_tasks
		SET notification_sent_at = NULL
		WHERE id = $1 AND notification_sent_at = $2`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("release notification: %w", err)
	}

	return nil
}

func (r *repository) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE completed) AS completed,
			COUNT(*) FILTER (WHERE deadline IS NOT NULL) AS with_deadline,
			COUNT(*) FILTER (WHERE notification_sent_at IS NOT NULL) AS notification_sent
		FROM assigned_tasks`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return Stats{}, fmt.Errorf("task stats: %w", err)
	}

	return stats, nil
}
