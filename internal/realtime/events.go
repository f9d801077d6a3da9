package realtime

import (
	"blog-platform/internal/domain"
)

type commentPayload struct {
	Comment domain.Comment `json:"comment"`
	Author  authorPayload  `json:"author"`
}

type authorPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type notificationPayload struct {
	PostID    string        `json:"post_id"`
	PostTitle string        `json:"post_title"`
	CommentID string        `json:"comment_id"`
	Author    authorPayload `json:"author"`
}

// CommentEvents traduce comentarios nuevos a eventos del hub.
type CommentEvents struct {
	hub *Hub
}

func NewCommentEvents(hub *Hub) *CommentEvents {
	return &CommentEvents{hub: hub}
}

// CommentCreated emite new_comment a la sala del post y, si comenta otra
// persona, comment_notification a la sala privada del autor del post.
func (e *CommentEvents) CommentCreated(post domain.Post, comment domain.Comment, author domain.User) {
	who := authorPayload{ID: author.ID, Name: author.Name}
	e.hub.Emit(PostRoom(post.ID), "new_comment", commentPayload{Comment: comment, Author: who})
	if post.AuthorID == author.ID {
		return
	}
	e.hub.Emit(UserRoom(post.AuthorID), "comment_notification", notificationPayload{
		PostID:    post.ID,
		PostTitle: post.Title,
		CommentID: comment.ID,
		Author:    who,
	})
}
