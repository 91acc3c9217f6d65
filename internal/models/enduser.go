package models

import "time"

// EndUser is an anonymous sender who has messaged through the relay.
// Created lazily on first contact, never deleted. Profile fields are
// advisory display data only; identity is the stable external sender id.
type EndUser struct {
	ID        int64     `json:"id"`
	Identity  int64     `json:"identity"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the best human-readable label for the user without
// exposing the numeric identity.
func (u *EndUser) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Handle != "":
		return "@" + u.Handle
	}
	return "Anonymous"
}
