// Package model defines domain entities used by the store and services.
package model

import "time"

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"` // access token expiry (for diagnostics)
}

// Person is a single user record. Values are copied in and out of the store.
type Person struct {
	Login    string `json:"login"`    // unique, letters and digits
	Password string `json:"password"` // complexity policy applies
	Username string `json:"username"` // display name, not unique
	Metadata string `json:"metadata"` // free form, defaults to ""
}

// PersonChanges carries optional new field values for an update.
// An empty string means "leave unchanged", so a field cannot be cleared via update.
type PersonChanges struct {
	Login    string
	Password string
	Username string
	Metadata string
}

// IsEmpty reports whether no field would be modified.
func (c PersonChanges) IsEmpty() bool {
	return c.Login == "" && c.Password == "" && c.Username == "" && c.Metadata == ""
}
