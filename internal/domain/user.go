package domain

import "time"

// User is the platform-side account. It never leaves the server with its hash.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash string
	Score        int
	CreatedAt    time.Time
}

// Identity projects the account onto the wire identity, without a token.
func (u User) Identity() Identity {
	return Identity{
		ID:          u.ID,
		DisplayName: u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Score:       u.Score,
	}
}
