package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Profile is created empty alongside every user.
type Profile struct {
	UserID              string  `json:"-"`
	Country             string  `json:"country"`
	Budget              *string `json:"budget"` // decimal, up to 10 digits with 2 decimals
	PreferredActivities string  `json:"preferred_activities"`
}

type Store interface {
	// Create inserts the user and its empty profile together.
	Create(ctx context.Context, username string, passwordHash []byte) (User, error)
	ByUsername(ctx context.Context, username string) (User, error)
	Profile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}
