package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrEmptyNote    = errors.New("note must have a title or content")
)

const noteColumns = `id, conversation_id, title, content, pinned, author_id, is_user_note, created_at, updated_at`

// NoteService manages the shared notepad of a conversation. Notes are
// visible to every member; there is no per-note ownership beyond the
// author attribution.
type NoteService struct {
	db            DB
	conversations *ConversationService
}

func NewNoteService(db DB, conversations *ConversationService) *NoteService {
	return &NoteService{db: db, conversations: conversations}
}

// List returns pinned notes first, newest first within each group.
func (s *NoteService) List(ctx context.Context, callerID, conversationID uuid.UUID) ([]models.Note, error) {
	if err := s.requireMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE conversation_id = $1
		 ORDER BY pinned DESC, updated_at DESC, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(scanNoteDest(&n)...); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) Create(ctx context.Context, callerID, conversationID uuid.UUID, title, content string) (*models.Note, error) {
	if err := s.requireMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptyNote
		}
		title = "Untitled Note"
	}

	note := &models.Note{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO notes (conversation_id, title, content, author_id, is_user_note)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING `+noteColumns,
		conversationID, title, content, callerID,
	).Scan(scanNoteDest(note)...)
	if err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}
	return note, nil
}

// createAssistantNote records an assistant answer in the notepad. Called
// from the assistant bridge, never from a handler.
func (s *NoteService) createAssistantNote(ctx context.Context, conversationID uuid.UUID, title, content string) (*models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Note"
	}

	note := &models.Note{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO notes (conversation_id, title, content, author_id, is_user_note)
		 VALUES ($1, $2, $3, NULL, false)
		 RETURNING `+noteColumns,
		conversationID, title, content,
	).Scan(scanNoteDest(note)...)
	if err != nil {
		return nil, fmt.Errorf("creating assistant note: %w", err)
	}
	return note, nil
}

func (s *NoteService) Update(ctx context.Context, callerID, conversationID, noteID uuid.UUID, patch models.NotePatch) (*models.Note, error) {
	if err := s.requireMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		fallback := "Untitled Note"
		patch.Title = &fallback
	}

	note := &models.Note{}
	err := s.db.QueryRow(ctx,
		`UPDATE notes
		 SET title = COALESCE($3, title),
		     content = COALESCE($4, content),
		     pinned = COALESCE($5, pinned),
		     updated_at = NOW()
		 WHERE id = $1 AND conversation_id = $2
		 RETURNING `+noteColumns,
		noteID, conversationID, patch.Title, patch.Content, patch.Pinned,
	).Scan(scanNoteDest(note)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating note: %w", err)
	}
	return note, nil
}

func (s *NoteService) TogglePin(ctx context.Context, callerID, conversationID, noteID uuid.UUID) (*models.Note, error) {
	if err := s.requireMember(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	note := &models.Note{}
	err := s.db.QueryRow(ctx,
		`UPDATE notes
		 SET pinned = NOT pinned, updated_at = NOW()
		 WHERE id = $1 AND conversation_id = $2
		 RETURNING `+noteColumns,
		noteID, conversationID,
	).Scan(scanNoteDest(note)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggling note pin: %w", err)
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, callerID, conversationID, noteID uuid.UUID) error {
	if err := s.requireMember(ctx, callerID, conversationID); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`DELETE FROM notes WHERE id = $1 AND conversation_id = $2`,
		noteID, conversationID,
	)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (s *NoteService) requireMember(ctx context.Context, callerID, conversationID uuid.UUID) error {
	isMember, err := s.conversations.isMember(ctx, conversationID, callerID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrConversationNotFound
	}
	return nil
}

func scanNoteDest(n *models.Note) []any {
	return []any{&n.ID, &n.ConversationID, &n.Title, &n.Content, &n.Pinned, &n.AuthorID, &n.IsUserNote, &n.CreatedAt, &n.UpdatedAt}
}
