package note

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxTitleLength = 100

var (
	ErrNotFound   = errors.New("note not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	List(ctx context.Context, owner uuid.UUID) ([]*Note, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*Note, error)
	Create(ctx context.Context, n *Note) error
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, owner, id uuid.UUID) error
}

// CreateInput carries the fields of a new note
type CreateInput struct {
	Title   string
	Content string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title   *string
	Content *string
}

// Service implements note operations on behalf of an authenticated owner
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]*Note, error) {
	return s.store.List(ctx, owner)
}

func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*Note, error) {
	return s.store.Get(ctx, owner, id)
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, in CreateInput) (*Note, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	n := &Note{
		ID:        uuid.New(),
		UserID:    owner,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	return n, nil
}

// Update applies the fields present in in and always bumps UpdatedAt.
func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, in UpdateInput) (*Note, error) {
	n, err := s.store.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if n.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if n.Content, err = validateContent(*in.Content); err != nil {
			return nil, err
		}
	}

	n.UpdatedAt = s.timestamp()

	if err := s.store.Update(ctx, n); err != nil {
		return nil, err
	}

	return n, nil
}

func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	return s.store.Delete(ctx, owner, id)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", &ValidationError{Field: "title", Message: "title must be at most 100 characters"}
	}
	return title, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: "content", Message: "content is required"}
	}
	return content, nil
}
