package models

import "time"

// User is a person known to the system. ID is the stable id handed over by
// the external identity resolver.
type User struct {
	ID           string
	Name         string
	Email        string
	Active       bool
	RegisteredAt time.Time
}
