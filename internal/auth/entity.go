// AngelaMos | 2026
// entity.go

package auth

import (
	"strings"
	"time"
)

// Session is one signed-in device. Each refresh rotates it: the old row is
// stamped rotated_at and a new row with the same FamilyID takes over.
type Session struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	RotatedAt    *time.Time `db:"rotated_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	RevokedAt    *time.Time `db:"revoked_at"`
}

const sessionColumns = `id, user_id, token_hash, family_id, user_agent,
	ip_address, created_at, expires_at, rotated_at, replaced_by_id, revoked_at`

func (s *Session) Rotated() bool {
	return s.RotatedAt != nil
}

func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Device is a short human label for the session list, such as
// "Chrome on Android".
func (s *Session) Device() string {
	ua := s.UserAgent
	if ua == "" {
		return "Unknown device"
	}

	browser := firstMatch(ua, browsers, "Browser")
	platform := firstMatch(ua, platforms, "")
	if platform == "" {
		return browser
	}
	return browser + " on " + platform
}

type uaHint struct {
	token string
	label string
}

// Order matters: Edge and Opera also advertise Chrome, Chrome advertises
// Safari, Android advertises Linux.
var (
	browsers = []uaHint{
		{"Edg/", "Edge"},
		{"OPR/", "Opera"},
		{"Firefox/", "Firefox"},
		{"Chrome/", "Chrome"},
		{"Safari/", "Safari"},
	}
	platforms = []uaHint{
		{"Android", "Android"},
		{"iPhone", "iOS"},
		{"iPad", "iPadOS"},
		{"Windows", "Windows"},
		{"Mac OS X", "macOS"},
		{"Linux", "Linux"},
	}
)

func firstMatch(ua string, hints []uaHint, fallback string) string {
	for _, h := range hints {
		if strings.Contains(ua, h.token) {
			return h.label
		}
	}
	return fallback
}
