// AngelaMos | 2026
// entity.go

package push

import (
	"time"
)

type Subscription struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Endpoint  string    `db:"endpoint"`
	P256dh    string    `db:"p256dh"`
	Auth      string    `db:"auth"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const subscriptionColumns = `id, user_id, endpoint, p256dh, auth, user_agent, created_at, updated_at`
