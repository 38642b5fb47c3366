// AngelaMos | 2026
// payload.go

package notify

import (
	"fmt"
	"time"

	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

const (
	iconPath  = "/icon-192x192.png"
	badgePath = "/icon-96x96.png"
)

// Payload is the JSON document the service worker turns into a browser
// notification. Field names follow the Notification API options.
type Payload struct {
	Title              string      `json:"title"`
	Body               string      `json:"body"`
	Icon               string      `json:"icon"`
	Badge              string      `json:"badge"`
	Tag                string      `json:"tag"`
	RequireInteraction bool        `json:"requireInteraction"`
	Data               PayloadData `json:"data"`
}

type PayloadData struct {
	URL    string `json:"url"`
	TaskID string `json:"taskId"`
}

// NewPayload builds the reminder for t, whose deadline falls at instant.
// The tag is stable per task so a repeated send replaces the earlier
// notification instead of stacking.
func NewPayload(t task.Task, instant, now time.Time) Payload {
	return Payload{
		Title:              fmt.Sprintf("%s Deadline %s, %s", priorityMarker(t.Priority), when(t), remaining(instant.Sub(now))),
		Body:               t.Title,
		Icon:               iconPath,
		Badge:              badgePath,
		Tag:                "deadline-" + t.ID,
		RequireInteraction: t.IsHighPriority(),
		Data: PayloadData{
			URL:    "/",
			TaskID: t.ID,
		},
	}
}

func priorityMarker(priority string) string {
	switch priority {
	case task.PriorityHigh:
		return "🔴"
	case task.PriorityMedium:
		return "🟡"
	case task.PriorityLow:
		return "🟢"
	default:
		return "📋"
	}
}

func when(t task.Task) string {
	if t.DeadlineTime != nil {
		return "at " + *t.DeadlineTime
	}
	return "at end of day"
}

func remaining(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)

	switch {
	case minutes < 1:
		return "due now"
	case minutes < 60:
		return fmt.Sprintf("in %d min", minutes)
	case minutes%60 == 0:
		return fmt.Sprintf("in %d h", minutes/60)
	default:
		return fmt.Sprintf("in %d h %d min", minutes/60, minutes%60)
	}
}

// DeadlineInstant combines the deadline date with its time of day in loc.
// A task without a time is due at 23:59:59 that day. ok is false when the
// task has no deadline or the stored values do not parse.
func DeadlineInstant(t task.Task, loc *time.Location) (time.Time, bool) {
	if t.Deadline == nil {
		return time.Time{}, false
	}

	day, err := time.ParseInLocation(core.DateLayout, *t.Deadline, loc)
	if err != nil {
		return time.Time{}, false
	}

	if t.DeadlineTime == nil {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc), true
	}

	clock, err := time.Parse("15:04", *t.DeadlineTime)
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(
		day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0,
		loc,
	), true
}

// Window is the lead-time band in which a deadline is due a reminder.
type Window struct {
	MinLead time.Duration
	MaxLead time.Duration
}

// Dates bounds the deadline dates, in loc, that can fall inside the window
// at now.
func (w Window) Dates(now time.Time, loc *time.Location) (from, to string) {
	local := now.In(loc)
	return local.Add(w.MinLead).Format(core.DateLayout), local.Add(w.MaxLead).Format(core.DateLayout)
}

func (w Window) Contains(instant, now time.Time) bool {
	if !instant.After(now) {
		return false
	}

	lead := instant.Sub(now)
	return lead >= w.MinLead && lead <= w.MaxLead
}
