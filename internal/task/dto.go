// AngelaMos | 2026
// dto.go

package task

import (
	"bytes"
	"encoding/json"
	"time"
)

type CreateTaskRequest struct {
	Title        string  `json:"title"         validate:"required,max=500"`
	Description  *string `json:"description"   validate:"omitempty,max=5000"`
	Category     string  `json:"category"      validate:"omitempty,oneof=responsibility todo"`
	Priority     string  `json:"priority"      validate:"omitempty,oneof=low medium high"`
	Deadline     *string `json:"deadline"      validate:"omitempty,date"`
	DeadlineTime *string `json:"deadline_time" validate:"omitempty,clock"`
}

// Nullable distinguishes a JSON field that was sent as null from one that
// was omitted, which PATCH needs to clear a deadline.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func Set[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

type UpdateTaskRequest struct {
	Title        *string          `json:"title,omitempty"    validate:"omitempty,max=500"`
	Description  Nullable[string] `json:"description"`
	Category     *string          `json:"category,omitempty" validate:"omitempty,oneof=responsibility todo"`
	Priority     *string          `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Completed    *bool            `json:"completed,omitempty"`
	Deadline     Nullable[string] `json:"deadline"`
	DeadlineTime Nullable[string] `json:"deadline_time"`
}

type TaskResponse struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        *string    `json:"description"`
	Category           string     `json:"category"`
	Priority           string     `json:"priority"`
	Completed          bool       `json:"completed"`
	Deadline           *string    `json:"deadline"`
	DeadlineTime       *string    `json:"deadline_time"`
	NotificationSentAt *time.Time `json:"notification_sent_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func ToTaskResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Category:           t.Category,
		Priority:           t.Priority,
		Completed:          t.Completed,
		Deadline:           t.Deadline,
		DeadlineTime:       t.DeadlineTime,
		NotificationSentAt: t.NotificationSentAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func ToTaskResponseList(tasks []Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, ToTaskResponse(&t))
	}
	return responses
}
