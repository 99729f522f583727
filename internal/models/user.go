package models

// User is the authenticated account record returned by the auth API.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	IsActive         bool   `json:"is_active"`
	IsVerified       bool   `json:"is_verified"`
	SubscriptionType string `json:"subscription_type,omitempty"`
	CreditsBalance   int    `json:"credits_balance"`
	DailyCredits     int    `json:"daily_credits"`
	CreatedAt        string `json:"created_at,omitempty"`
	LastLogin        string `json:"last_login,omitempty"`
}

// DisplayName returns the friendliest non-empty identifier for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}
