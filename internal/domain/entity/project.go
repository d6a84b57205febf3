package entity

import "time"

// Project is owned by exactly one Identity. Public projects are readable
// by any active identity; every mutation stays owner-only.
type Project struct {
	ID          int64
	OwnerID     int64
	Name        string
	Description string
	IsPublic    bool
	Language    string
	Framework   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectFile belongs to a single Project.
type ProjectFile struct {
	ID        int64
	ProjectID int64
	Name      string
	Path      string
	Content   string
	FileType  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
