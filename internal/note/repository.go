package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-notes-api/internal/database"
)

// Repository handles note persistence. Every query is scoped by owner.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// List returns the owner's notes, most recently updated first.
func (r *Repository) List(ctx context.Context, owner uuid.UUID) ([]*Note, error) {
	var rows []database.Note
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", owner).
		Order("updated_at DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*Note, 0, len(rows))
	for i := range rows {
		notes = append(notes, mapDBNoteToModel(&rows[i]))
	}

	return notes, nil
}

// Get returns ErrNotFound when the note does not exist or belongs to someone else.
func (r *Repository) Get(ctx context.Context, owner, id uuid.UUID) (*Note, error) {
	row := new(database.Note)
	err := r.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Where("user_id = ?", owner).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return mapDBNoteToModel(row), nil
}

func (r *Repository) Create(ctx context.Context, n *Note) error {
	if _, err := r.db.NewInsert().Model(mapModelToDBNote(n)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// Update writes title, content and updated_at of n.
func (r *Repository) Update(ctx context.Context, n *Note) error {
	res, err := r.db.NewUpdate().
		Model(mapModelToDBNote(n)).
		Column("title", "content", "updated_at").
		Where("id = ?", n.ID).
		Where("user_id = ?", n.UserID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	return requireOneRow(res)
}

func (r *Repository) Delete(ctx context.Context, owner, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*database.Note)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBNoteToModel(row *database.Note) *Note {
	return &Note{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapModelToDBNote(n *Note) *database.Note {
	return &database.Note{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
