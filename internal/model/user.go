// Package model defines the domain models.
package model

import "time"

// User is a registered account. PasswordHash holds the bcrypt hash and is
// never serialized into API responses.
type User struct {
	ID           string
	Email        string
	Nom          string
	Prenom       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is an authenticated login session. The ID is an opaque
// cryptographically random token handed to the client as an HTTP-only cookie.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Administrateur is a membership record granting access to the admin area.
// Its ID is the user ID of the principal; there is no finer-grained scoping.
type Administrateur struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
