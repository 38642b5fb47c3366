// AngelaMos | 2026
// entity.go

package task

import (
	"time"
)

const (
	CategoryResponsibility = "responsibility"
	CategoryTodo           = "todo"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	SourceManual = "manual"
	SourceVoice  = "voice"
)

// Task is an assigned task. Deadline is a calendar date (YYYY-MM-DD) and
// DeadlineTime an HH:mm wall-clock time; a time never exists without a date.
type Task struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	Title              string     `db:"title"`
	Description        *string    `db:"description"`
	Category           string     `db:"category"`
	Priority           string     `db:"priority"`
	Completed          bool       `db:"completed"`
	Deadline           *string    `db:"deadline"`
	DeadlineTime       *string    `db:"deadline_time"`
	NotificationSentAt *time.Time `db:"notification_sent_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (t *Task) HasDeadline() bool {
	return t.Deadline != nil
}

func (t *Task) IsHighPriority() bool {
	return t.Priority == PriorityHigh
}

type Stats struct {
	Total            int `db:"total"             json:"total"`
	Completed        int `db:"completed"         json:"completed"`
	WithDeadline     int `db:"with_deadline"     json:"with_deadline"`
	NotificationSent int `db:"notification_sent" json:"notification_sent"`
}

const taskColumns = `id, user_id, title, description, category, priority, completed,
	to_char(deadline, 'YYYY-MM-DD') AS deadline, deadline_time,
	notification_sent_at, created_at, updated_at`
