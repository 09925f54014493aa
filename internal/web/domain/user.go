package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC string or bcrypt digest
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the subset of a User that is safe to hand to templates.
type Profile struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
