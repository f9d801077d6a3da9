package domain

import "time"

type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnerOf resuelve el campo de propiedad usado por los chequeos de ownership.
func (p Post) OwnerOf(field string) (string, bool) {
	switch field {
	case "author_id", "author":
		return p.AuthorID, true
	}
	return "", false
}
