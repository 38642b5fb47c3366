// AngelaMos | 2026
// dto.go

package journal

import (
	"time"
)

type CreateEntryRequest struct {
	Date    string `json:"date"    validate:"required,date"`
	Content string `json:"content" validate:"required,max=20000"`
}

type UpdateEntryRequest struct {
	Date    *string `json:"date,omitempty" validate:"omitempty,date"`
	Content string  `json:"content"        validate:"required,max=20000"`
}

type ListParams struct {
	From string `validate:"omitempty,date"`
	To   string `validate:"omitempty,date"`
}

type EntryResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Day is every entry recorded for one calendar date, oldest first.
type Day struct {
	Date    string          `json:"date"`
	Entries []EntryResponse `json:"entries"`
}

func ToEntryResponse(e *Entry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		Date:      e.EntryDate,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// GroupByDate folds entries, already sorted by date descending and creation
// ascending, into one Day per date.
func GroupByDate(entries []Entry) []Day {
	days := make([]Day, 0)
	for i := range entries {
		e := &entries[i]
		if len(days) == 0 || days[len(days)-1].Date != e.EntryDate {
			days = append(days, Day{Date: e.EntryDate})
		}
		last := &days[len(days)-1]
		last.Entries = append(last.Entries, ToEntryResponse(e))
	}
	return days
}
