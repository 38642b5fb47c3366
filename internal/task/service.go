// AngelaMos | 2026
// service.go

package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

// AccessGate rejects writes from accounts without an active trial or
// subscription.
type AccessGate interface {
	Require(ctx context.Context, userID string, now time.Time) error
}

type Service struct {
	repo Repository
	gate AccessGate
}

func NewService(repo Repository, gate AccessGate) *Service {
	return &Service{
		repo: repo,
		gate: gate,
	}
}

func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateTaskRequest,
	source string,
	now time.Time,
) (*Task, error) {
	if err := s.gate.Require(ctx, userID, now); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, core.ValidationError("title is required")
	}

	deadline, deadlineTime, err := normalizeSchedule(req.Deadline, req.DeadlineTime)
	if err != nil {
		return nil, err
	}

	task := &Task{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Description:  trimOptional(req.Description),
		Category:     orDefault(req.Category, CategoryTodo),
		Priority:     orDefault(req.Priority, PriorityMedium),
		Deadline:     deadline,
		DeadlineTime: deadlineTime,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	metrics.TasksCreated.WithLabelValues(source).Inc()

	return task, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Task, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Task, error) {
	return s.repo.GetByID(ctx, userID, id)
}

// Update applies a partial change. Moving the deadline or reopening a
// completed task resets the notification marker so the new occurrence is
// notified again.
func (s *Service) Update(
	ctx context.Context,
	userID, id string,
	req UpdateTaskRequest,
) (*Task, error) {
	task, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	prevDeadline := task.Deadline
	prevTime := task.DeadlineTime
	wasCompleted := task.Completed

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, core.ValidationError("title is required")
		}
		task.Title = title
	}
	if req.Description.Set {
		task.Description = trimOptional(req.Description.Value)
	}
	if req.Category != nil {
		task.Category = *req.Category
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	deadline := task.Deadline
	if req.Deadline.Set {
		deadline = req.Deadline.Value
	}
	deadlineTime := task.DeadlineTime
	if req.DeadlineTime.Set {
		deadlineTime = req.DeadlineTime.Value
	}

	task.Deadline, task.DeadlineTime, err = normalizeSchedule(deadline, deadlineTime)
	if err != nil {
		return nil, err
	}

	reset := !equalOptional(prevDeadline, task.Deadline) ||
		!equalOptional(prevTime, task.DeadlineTime) ||
		(wasCompleted && !task.Completed)

	if err := s.repo.Update(ctx, task, reset); err != nil {
		return nil, err
	}

	return task, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// normalizeSchedule validates the date and time formats and drops a time
// that has no date to attach to.
func normalizeSchedule(deadline, deadlineTime *string) (*string, *string, error) {
	deadline = trimOptional(deadline)
	deadlineTime = trimOptional(deadlineTime)

	if deadline != nil && !core.IsDate(*deadline) {
		return nil, nil, fmt.Errorf(
			"deadline %q must be YYYY-MM-DD: %w",
			*deadline,
			core.ErrInvalidInput,
		)
	}
	if deadlineTime != nil && !core.IsClock(*deadlineTime) {
		return nil, nil, fmt.Errorf(
			"deadline_time %q must be HH:mm: %w",
			*deadlineTime,
			core.ErrInvalidInput,
		)
	}

	if deadline == nil {
		deadlineTime = nil
	}

	return deadline, deadlineTime, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
