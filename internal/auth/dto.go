// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterRequest carries the consent flags shown on the signup form; the
// terms checkbox is mandatory, marketing is opt-in.
type RegisterRequest struct {
	Email             string `json:"email"              validate:"required,email,max=255"`
	Password          string `json:"password"           validate:"required,min=6,max=128"`
	Name              string `json:"name"               validate:"required,min=1,max=100"`
	TermsAccepted     bool   `json:"terms_accepted"     validate:"eq=true"`
	MarketingAccepted bool   `json:"marketing_accepted"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=6,max=128"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		TrialEndsAt: u.TrialEndsAt,
		CreatedAt:   u.CreatedAt,
	}
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	Device    string    `json:"device"`
	IPAddress string    `json:"ip_address"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
