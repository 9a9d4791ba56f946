package types

import "time"

// User represents an account in the system.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's unique sign-in address, stored lowercased.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"lastName" db:"last_name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses and never holds the
	// plaintext secret once the account exists.
	PasswordHash string `json:"-" db:"password_hash"`

	// Optional profile fields. All default to the empty string.
	Birthday    string `json:"birthday" db:"birthday"`
	Sex         string `json:"sex" db:"sex"`
	Phone       string `json:"phone" db:"phone"`
	Address     string `json:"address" db:"address"`
	Occupation  string `json:"occupation" db:"occupation"`
	Description string `json:"description" db:"description"`

	// AvatarKey is the object-storage key of the user's avatar, or empty.
	AvatarKey string `json:"-" db:"avatar_key"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName is the name shown on posts and comments authored by the user.
func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}
