package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/repository"
)

// CommentEvents publica la creación de comentarios hacia el canal realtime.
type CommentEvents interface {
	CommentCreated(post domain.Post, comment domain.Comment, author domain.User)
}

type PostService struct {
	logger   *zap.Logger
	posts    repository.PostRepository
	comments repository.CommentRepository
	events   CommentEvents
	now      func() time.Time
}

func NewPostService(logger *zap.Logger, posts repository.PostRepository, comments repository.CommentRepository, events CommentEvents) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		logger:   logger,
		posts:    posts,
		comments: comments,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreatePostInput struct {
	Title   string
	Content string
}

func (in CreatePostInput) Validate() error {
	return toValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&in.Content, validation.Required, validation.Length(1, 50000)),
	))
}

func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (domain.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := in.Validate(); err != nil {
		return domain.Post{}, err
	}

	now := s.now()
	id := uuid.New()
	post := domain.Post{
		ID:        id.String(),
		AuthorID:  authorID,
		Title:     in.Title,
		Slug:      slugify(in.Title) + "-" + id.String()[:8],
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (s *PostService) Get(ctx context.Context, id string) (domain.Post, error) {
	if !isUUID(id) {
		return domain.Post{}, ErrPostNotFound
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Post{}, ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

func (s *PostService) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	comments, err := s.comments.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}

// AddComment guarda el comentario y avisa a la sala del post y al autor.
func (s *PostService) AddComment(ctx context.Context, postID string, author domain.User, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if err := toValidationError(validation.Errors{
		"content": validation.Validate(content, validation.Required, validation.Length(1, 2000)),
	}.Filter()); err != nil {
		return domain.Comment{}, err
	}

	post, err := s.Get(ctx, postID)
	if err != nil {
		return domain.Comment{}, err
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		AuthorID:  author.ID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return domain.Comment{}, err
	}

	if s.events != nil {
		s.events.CommentCreated(post, comment, author)
	}
	return comment, nil
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		slug = "post"
	}
	return slug
}
