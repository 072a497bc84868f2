package service

import (
	"context"
	"strings"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"

	"github.com/google/uuid"
)

// NoteService is the local editing surface behind the bundled CLI
// commands. It never talks to the remote store.
type NoteService interface {
	Add(ctx context.Context, title, body, origin string) (*domain.Note, error)
	List(ctx context.Context) ([]domain.Note, error)
	Remove(ctx context.Context, localID string) error
}

type noteService struct {
	editor domain.NoteEditor
}

// NewNoteService creates NoteService instance
func NewNoteService(editor domain.NoteEditor) NoteService {
	return &noteService{editor: editor}
}

func (s *noteService) Add(ctx context.Context, title, body, origin string) (*domain.Note, error) {
	now := time.Now().Unix()
	if title == "" {
		title = deriveTitle(body)
	}
	n := &domain.Note{
		ID:         uuid.NewString(),
		Title:      title,
		Body:       body,
		CreatedAt:  now,
		ModifiedAt: now,
		Origin:     origin,
	}
	if err := s.editor.NoteCreate(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *noteService) List(ctx context.Context) ([]domain.Note, error) {
	notes, err := s.editor.NoteList(ctx)
	if err != nil {
		return nil, err
	}
	visible := notes[:0]
	for _, n := range notes {
		if !n.Deleted {
			visible = append(visible, n)
		}
	}
	return visible, nil
}

func (s *noteService) Remove(ctx context.Context, localID string) error {
	return s.editor.NoteMarkDeleted(ctx, localID, time.Now().Unix())
}

// deriveTitle takes the first line of the body, truncated.
func deriveTitle(body string) string {
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}
