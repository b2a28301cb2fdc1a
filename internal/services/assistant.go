package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/logging"
	"github.com/wanderlyst/tripmatch/internal/services/ai"
)

const (
	assistantTrigger     = "@gemini"
	assistantHistorySize = 30
	assistantTimeout     = 90 * time.Second
	assistantApology     = "Sorry, I couldn't reach my travel brain just now. Please try again in a moment."
)

// AssistantService bridges conversations to the travel assistant. A
// message starting with the trigger spawns an answer in the same
// conversation, attributed to the assistant account, plus a notepad entry
// holding the exchange.
type AssistantService struct {
	users         *UserService
	conversations *ConversationService
	notes         *NoteService
	assistant     ai.TravelAssistant

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
	wg       sync.WaitGroup
}

func NewAssistantService(users *UserService, conversations *ConversationService, notes *NoteService, assistant ai.TravelAssistant) *AssistantService {
	return &AssistantService{
		users:         users,
		conversations: conversations,
		notes:         notes,
		assistant:     assistant,
		inFlight:      make(map[uuid.UUID]bool),
	}
}

// ParseTrigger extracts the question from a trigger message. The trigger
// is case-insensitive, must start the message, and must be followed by
// whitespace and a non-empty remainder.
func ParseTrigger(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= len(assistantTrigger) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(assistantTrigger)], assistantTrigger) {
		return "", false
	}
	rest := trimmed[len(assistantTrigger):]
	if !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}
	question := strings.TrimSpace(rest)
	if question == "" {
		return "", false
	}
	return question, true
}

// HandleMessage inspects a just-sent message and, when it triggers the
// assistant, answers in the background. At most one answer per
// conversation is produced at a time; triggers arriving while one is in
// flight are dropped.
func (s *AssistantService) HandleMessage(ctx context.Context, conversationID uuid.UUID, text string) {
	question, ok := ParseTrigger(text)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.inFlight[conversationID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[conversationID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, conversationID)
			s.mu.Unlock()
		}()

		// Detached from the request context: the answer outlives the
		// HTTP call that triggered it.
		invokeCtx, cancel := context.WithTimeout(context.Background(), assistantTimeout)
		defer cancel()
		if err := s.Invoke(invokeCtx, conversationID, question); err != nil {
			logging.Error("assistant invoke failed", map[string]interface{}{
				"conversation_id": conversationID.String(),
				"error":           err.Error(),
			})
		}
	}()
}

// Invoke answers a question with the conversation's recent history and
// notepad as context. On success the answer lands as an assistant message
// and a notepad entry; on provider failure an apology message is posted
// and no note is written.
func (s *AssistantService) Invoke(ctx context.Context, conversationID uuid.UUID, question string) error {
	assistantUser, err := s.users.GetAssistant(ctx)
	if err != nil {
		return err
	}

	req, err := s.buildRequest(ctx, conversationID, question)
	if err != nil {
		return err
	}

	answer, askErr := s.assistant.Ask(ctx, *req)
	if askErr != nil {
		if _, sendErr := s.conversations.SendMessage(ctx, assistantUser.ID, conversationID, assistantApology); sendErr != nil {
			return sendErr
		}
		return askErr
	}

	if _, err := s.conversations.SendMessage(ctx, assistantUser.ID, conversationID, answer); err != nil {
		return err
	}
	if _, err := s.notes.createAssistantNote(ctx, conversationID, noteTitleFor(question), answer); err != nil {
		return err
	}
	return nil
}

// Wait blocks until background answers finish. Used on shutdown and in
// tests.
func (s *AssistantService) Wait() {
	s.wg.Wait()
}

func (s *AssistantService) buildRequest(ctx context.Context, conversationID uuid.UUID, question string) (*ai.AskRequest, error) {
	messages, err := s.conversations.recentMessages(ctx, conversationID, assistantHistorySize)
	if err != nil {
		return nil, err
	}

	names := map[uuid.UUID]string{}
	history := make([]ai.ChatMessage, 0, len(messages))
	for _, m := range messages {
		name, ok := names[m.SenderID]
		if !ok {
			sender, err := s.users.GetByID(ctx, m.SenderID)
			if err != nil {
				name = "Someone"
			} else {
				name = sender.FirstName()
			}
			names[m.SenderID] = name
		}
		history = append(history, ai.ChatMessage{Name: name, Text: m.Text})
	}

	rows, err := s.notes.db.Query(ctx,
		`SELECT title, content FROM notes
		 WHERE conversation_id = $1
		 ORDER BY pinned DESC, updated_at DESC, id`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []ai.NotepadEntry{}
	for rows.Next() {
		var e ai.NotepadEntry
		if err := rows.Scan(&e.Title, &e.Content); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ai.AskRequest{
		Question:       question,
		ChatHistory:    history,
		NotepadEntries: entries,
	}, nil
}

func noteTitleFor(question string) string {
	title := strings.TrimSpace(question)
	if len(title) > 80 {
		title = strings.TrimSpace(truncateOnRune(title, 77)) + "..."
	}
	return title
}
