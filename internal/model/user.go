// Package model defines the data structures shared by the client core and the
// development backend.
package model

import "time"

// Identity is the signed-in principal as the client sees it.
//
// This is also the exact JSON shape of GET/PUT /users/me and of the "user"
// object in the signup/login responses:
//
//	{"userId":"cv37rs3pp9olc6atsptg","email":"a@b.com","fullName":"Ann"}
//
// WHY omitempty ON UserID AND FullName?
// Both are optional until the profile has been saved (or the server assigned
// an ID). An empty value is a normal state, not an error.
type Identity struct {
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// AuthResponse is returned by POST /auth/signup and POST /auth/login.
type AuthResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// User is the backend's stored account record.
//
// PasswordHash has the `json:"-"` tag so it can never be serialised into a
// response by accident, even if a handler writes the whole struct.
type User struct {
	ID           string    `json:"userId"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity projects the stored record onto the public profile shape.
func (u *User) Identity() Identity {
	return Identity{
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
	}
}
