package notes

import (
	"context"

	"github.com/khanghh/mcpauth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NoteRepository interface {
	WithTx(tx *gorm.DB) NoteRepository
	FindReadable(ctx context.Context, orgID uint, userID uint, noteID uint) (*model.Note, error)
	FindRecentReadable(ctx context.Context, orgID uint, userID uint, limit int) ([]model.Note, error)
}

type noteRepository struct {
	db *gorm.DB
}

func (r *noteRepository) WithTx(tx *gorm.DB) NoteRepository {
	return NewNoteRepository(tx)
}

// noteColumn qualifies a column with the note table as the statement names it,
// so configured table prefixes carry through.
func noteColumn(name string) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: name}
}

// readable restricts a query to notes of orgID that userID may read: public
// notes, notes the user wrote, and notes shared with the user.
func (r *noteRepository) readable(ctx context.Context, orgID uint, userID uint) *gorm.DB {
	shared := r.db.Model(&model.NoteShare{}).Select("note_id").Where("user_id = ?", userID)
	return r.db.WithContext(ctx).
		Preload("Author").
		Where("? = ?", noteColumn("organization_id"), orgID).
		Where(r.db.Where("? = ?", noteColumn("public"), true).
			Or("? = ?", noteColumn("author_id"), userID).
			Or("? IN (?)", noteColumn("id"), shared))
}

func (r *noteRepository) FindReadable(ctx context.Context, orgID uint, userID uint, noteID uint) (*model.Note, error) {
	var note model.Note
	if err := r.readable(ctx, orgID, userID).Where("? = ?", noteColumn("id"), noteID).First(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) FindRecentReadable(ctx context.Context, orgID uint, userID uint, limit int) ([]model.Note, error) {
	var notes []model.Note
	err := r.readable(ctx, orgID, userID).
		Order(clause.OrderByColumn{Column: noteColumn("created_at"), Desc: true}).
		Order(clause.OrderByColumn{Column: noteColumn("id"), Desc: true}).
		Limit(limit).
		Find(&notes).Error
	return notes, err
}

func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db}
}
