package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique column (such as a user's email) is already taken.
var ErrDuplicate = errors.New("already exists")

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Interaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	Message     string    `json:"message"`
	Reply       string    `json:"reply"`
	Language    string    `json:"language"`
	Temperature float64   `json:"temperature"`
	Tier        string    `json:"tier,omitempty"`
	Model       string    `json:"model,omitempty"`
}
