// Package user mirrors the identity provider's user records that dashboards list.
package user

import "time"

// Type is the platform role of a user.
type Type string

const (
	TypeStudent    Type = "student"
	TypeInstructor Type = "instructor"
	TypeAdmin      Type = "admin"
)

// IsValid checks if the type is known.
func (t Type) IsValid() bool {
	return t == TypeStudent || t == TypeInstructor || t == TypeAdmin
}

// User is a read-only mirror of an identity record.
type User struct {
	ID        string
	Type      Type
	FirstName string
	LastName  string
	Email     string
	JoinedAt  time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
