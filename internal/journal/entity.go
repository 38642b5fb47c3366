// AngelaMos | 2026
// entity.go

package journal

import (
	"time"
)

const (
	SourceManual = "manual"
	SourceVoice  = "voice"
)

type Entry struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	EntryDate string    `db:"entry_date"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const entryColumns = `id, user_id, to_char(entry_date, 'YYYY-MM-DD') AS entry_date,
	content, created_at, updated_at`
