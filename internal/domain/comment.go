package domain

import "time"

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (c Comment) OwnerOf(field string) (string, bool) {
	switch field {
	case "author_id", "author":
		return c.AuthorID, true
	}
	return "", false
}
