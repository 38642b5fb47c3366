// AngelaMos | 2026
// draft.go

package voice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

// TaskDraft is a structured task extracted from a transcript. It is never
// persisted directly; a draft becomes a task only through task.Service.
type TaskDraft struct {
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Priority     string  `json:"priority"`
	Deadline     *string `json:"deadline"`
	DeadlineTime *string `json:"deadline_time"`
}

func (d TaskDraft) CreateRequest() task.CreateTaskRequest {
	return task.CreateTaskRequest{
		Title:        d.Title,
		Description:  d.Description,
		Category:     task.CategoryTodo,
		Priority:     d.Priority,
		Deadline:     d.Deadline,
		DeadlineTime: d.DeadlineTime,
	}
}

// ParseTaskDraft decodes the model output and coerces every field into the
// shape the task store accepts. Only a missing title is fatal.
func ParseTaskDraft(raw string) (TaskDraft, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return TaskDraft{}, fmt.Errorf("decode task draft: %w: %w", core.ErrUpstream, err)
	}

	draft := TaskDraft{
		Description:  stringField(fields, "description"),
		Deadline:     stringField(fields, "deadline"),
		DeadlineTime: stringField(fields, "deadline_time", "deadlineTime"),
	}

	if title := stringField(fields, "title"); title != nil {
		draft.Title = *title
	}
	if priority := stringField(fields, "priority"); priority != nil {
		draft.Priority = strings.ToLower(*priority)
	}

	return ValidateTaskDraft(draft)
}

func ValidateTaskDraft(d TaskDraft) (TaskDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return TaskDraft{}, fmt.Errorf("task draft has no title: %w", core.ErrUpstream)
	}

	switch d.Priority {
	case task.PriorityLow, task.PriorityMedium, task.PriorityHigh:
	default:
		d.Priority = task.PriorityMedium
	}

	d.Description = cleanOptional(d.Description)

	d.Deadline = cleanOptional(d.Deadline)
	if d.Deadline != nil && !core.IsDate(*d.Deadline) {
		d.Deadline = nil
	}

	d.DeadlineTime = cleanOptional(d.DeadlineTime)
	if d.DeadlineTime != nil && !core.IsClock(*d.DeadlineTime) {
		d.DeadlineTime = nil
	}

	if d.Deadline == nil {
		d.DeadlineTime = nil
	}

	return d, nil
}

// cleanOptional maps blanks and the literal "null" the model sometimes
// emits to nil.
func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}

	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}

	return &v
}

func stringField(fields map[string]any, keys ...string) *string {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}

		if s, ok := value.(string); ok {
			return &s
		}
	}

	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
