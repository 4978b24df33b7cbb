// Package notes serves the notes application's data to tools. Every query is
// scoped to one organization.
package notes

import (
	"context"
	"errors"

	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"gorm.io/gorm"
)

type NoteService struct {
	noteRepo NoteRepository
}

// GetNote returns a note readable by userID inside orgID. Notes in other
// organizations are reported exactly like missing ones.
func (s *NoteService) GetNote(ctx context.Context, orgID uint, userID uint, noteID uint) (*model.Note, error) {
	note, err := s.noteRepo.FindReadable(ctx, orgID, userID, noteID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	return note, err
}

// ListRecentNotes returns at most params.RecentNotesLimit readable notes, newest first.
func (s *NoteService) ListRecentNotes(ctx context.Context, orgID uint, userID uint) ([]model.Note, error) {
	return s.noteRepo.FindRecentReadable(ctx, orgID, userID, params.RecentNotesLimit)
}

func NewNoteService(noteRepo NoteRepository) *NoteService {
	return &NoteService{noteRepo: noteRepo}
}
