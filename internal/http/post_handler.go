package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/service"
)

// PostHandler expone los endpoints mínimos de posts y comentarios.
type PostHandler struct {
	logger *zap.Logger
	posts  *service.PostService
}

func NewPostHandler(logger *zap.Logger, posts *service.PostService) *PostHandler {
	return &PostHandler{logger: logger, posts: posts}
}

// LoadPost es el ResourceLoader usado por CheckOwnership.
func (h *PostHandler) LoadPost(ctx context.Context, id string) (OwnedResource, error) {
	post, err := h.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// GetPost maneja GET /api/posts/:id.
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "get post", err)
		return
	}
	comments, err := h.posts.Comments(c.Request.Context(), post.ID)
	if err != nil {
		writeServiceError(c, h.logger, "list comments", err)
		return
	}

	isOwner := false
	if user, ok := CurrentUser(c); ok {
		isOwner = user.ID == post.AuthorID
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "comments": comments, "is_owner": isOwner})
}

// CreatePost maneja POST /api/posts.
func (h *PostHandler) CreatePost(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create post request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), user.ID, service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeServiceError(c, h.logger, "create post", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// DeletePost maneja DELETE /api/posts/:id; corre detrás de CheckOwnership.
func (h *PostHandler) DeletePost(c *gin.Context) {
	val, ok := c.Get(ownedResourceKey)
	post, isPost := val.(domain.Post)
	if !ok || !isPost {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := h.posts.Delete(c.Request.Context(), post.ID); err != nil {
		writeServiceError(c, h.logger, "delete post", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

// AddComment maneja POST /api/posts/:id/comments.
func (h *PostHandler) AddComment(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid comment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	comment, err := h.posts.AddComment(c.Request.Context(), c.Param("id"), user, req.Content)
	if err != nil {
		writeServiceError(c, h.logger, "add comment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
