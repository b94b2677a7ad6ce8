package domain

import "time"

// ProjectSession groups jobs and images under a named workspace.
type ProjectSession struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	IsTemporary bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s ProjectSession) Owner() string { return s.OwnerID }
