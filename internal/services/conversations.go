package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAMember           = errors.New("not a conversation member")
	ErrMemberNotFriend      = errors.New("member is not a friend")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrTooFewMembers        = errors.New("conversation needs another member")
)

const maxMessageLen = 4000

// truncateOnRune caps s at limit bytes, backing up so a multi-byte rune
// is never split.
func truncateOnRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

type ConversationService struct {
	db            DB
	users         *UserService
	friends       *FriendService
	notifications NotificationServiceInterface
}

func NewConversationService(db DB, users *UserService, friends *FriendService, notifications NotificationServiceInterface) *ConversationService {
	return &ConversationService{
		db:            db,
		users:         users,
		friends:       friends,
		notifications: notifications,
	}
}

// Create opens a conversation between the creator and the given members.
// Every human member must be a friend of the creator. Group conversations
// always carry the assistant as a member; the assistant is derived, never
// passed in. When a conversation with the exact same member set already
// exists, it is returned instead of a duplicate.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (*models.Conversation, error) {
	assistant, err := s.users.GetAssistant(ctx)
	if err != nil {
		return nil, err
	}

	humans := dedupeMembers(creatorID, memberIDs, assistant.ID)
	if len(humans) < 2 {
		return nil, ErrTooFewMembers
	}

	for _, id := range humans {
		if id == creatorID {
			continue
		}
		friends, err := s.friends.IsFriend(ctx, creatorID, id)
		if err != nil {
			return nil, err
		}
		if !friends {
			return nil, ErrMemberNotFriend
		}
	}

	name = strings.TrimSpace(name)
	convType := models.ConversationTypeDM
	members := humans
	if len(humans) > 2 || name != "" {
		convType = models.ConversationTypeGroup
		members = append(append([]uuid.UUID{}, humans...), assistant.ID)
		if name == "" {
			name = "Group Chat"
		}
	}

	if existing, err := s.findByMemberSet(ctx, members); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	conv := &models.Conversation{}
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (name, type, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, type, created_by, last_message_text, last_message_sender, last_message_at, created_at`,
		name, convType, creatorID,
	).Scan(&conv.ID, &conv.Name, &conv.Type, &conv.CreatedBy,
		&conv.LastMessageText, &conv.LastMessageSender, &conv.LastMessageAt, &conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	for _, id := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, id,
		); err != nil {
			return nil, fmt.Errorf("adding conversation member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	conv.MemberIDs = members
	conv.DisplayName = conv.Name
	s.notifyNewGroupMembers(ctx, conv, creatorID, members, []uuid.UUID{creatorID, assistant.ID})
	return conv, nil
}

// UpdateMembers replaces the member set of a group conversation. The
// caller must already be a member and stays one. The assistant is
// re-derived after the edit, so dropping it from the list has no effect.
// Members added by the edit are notified.
func (s *ConversationService) UpdateMembers(ctx context.Context, callerID, conversationID uuid.UUID, memberIDs []uuid.UUID) (*models.Conversation, error) {
	conv, err := s.GetConversation(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Type != models.ConversationTypeGroup {
		return nil, ErrConversationNotFound
	}

	assistant, err := s.users.GetAssistant(ctx)
	if err != nil {
		return nil, err
	}

	humans := dedupeMembers(callerID, memberIDs, assistant.ID)
	for _, id := range humans {
		if id == callerID {
			continue
		}
		if containsID(conv.MemberIDs, id) {
			continue
		}
		friends, err := s.friends.IsFriend(ctx, callerID, id)
		if err != nil {
			return nil, err
		}
		if !friends {
			return nil, ErrMemberNotFriend
		}
	}
	members := append(append([]uuid.UUID{}, humans...), assistant.ID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	if _, err := tx.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1`,
		conversationID,
	); err != nil {
		return nil, fmt.Errorf("clearing conversation members: %w", err)
	}
	for _, id := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
			conversationID, id,
		); err != nil {
			return nil, fmt.Errorf("adding conversation member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	previous := conv.MemberIDs
	conv.MemberIDs = members
	s.notifyNewGroupMembers(ctx, conv, callerID, members, append(previous, assistant.ID))
	return conv, nil
}

func (s *ConversationService) UpdateName(ctx context.Context, callerID, conversationID uuid.UUID, name string) error {
	if _, err := s.GetConversation(ctx, callerID, conversationID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET name = $2 WHERE id = $1`,
		conversationID, strings.TrimSpace(name),
	); err != nil {
		return fmt.Errorf("renaming conversation: %w", err)
	}
	return nil
}

// Leave removes only the caller. The conversation and its history stay,
// even when the last human member walks away.
func (s *ConversationService) Leave(ctx context.Context, callerID, conversationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM conversation_members
		 WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, callerID,
	)
	if err != nil {
		return fmt.Errorf("leaving conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAMember
	}
	return nil
}

// List returns the caller's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.name, c.type, c.created_by,
		        c.last_message_text, c.last_message_sender, c.last_message_at, c.created_at
		 FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy,
			&c.LastMessageText, &c.LastMessageSender, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}

	for i := range conversations {
		if err := s.decorate(ctx, userID, &conversations[i]); err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

// GetConversation loads a conversation the caller belongs to. Non-members
// get ErrConversationNotFound rather than a membership hint.
func (s *ConversationService) GetConversation(ctx context.Context, callerID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRow(ctx,
		`SELECT c.id, c.name, c.type, c.created_by,
		        c.last_message_text, c.last_message_sender, c.last_message_at, c.created_at
		 FROM conversations c
		 JOIN conversation_members cm ON cm.conversation_id = c.id
		 WHERE c.id = $1 AND cm.user_id = $2`,
		conversationID, callerID,
	).Scan(&conv.ID, &conv.Name, &conv.Type, &conv.CreatedBy,
		&conv.LastMessageText, &conv.LastMessageSender, &conv.LastMessageAt, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	if err := s.decorate(ctx, callerID, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// SendMessage appends a message and advances the conversation's last
// message snapshot in the same transaction.
func (s *ConversationService) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	text = truncateOnRune(text, maxMessageLen)

	isMember, err := s.isMember(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrConversationNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	msg := &models.Message{}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, text)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, sender_id, text, created_at`,
		conversationID, senderID, text,
	).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations
		 SET last_message_text = $2, last_message_sender = $3, last_message_at = $4
		 WHERE id = $1`,
		conversationID, msg.Text, msg.SenderID, msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("updating last message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return msg, nil
}

// ListMessages returns messages oldest first. A zero limit means the
// whole history.
func (s *ConversationService) ListMessages(ctx context.Context, callerID, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	isMember, err := s.isMember(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrConversationNotFound
	}
	return s.recentMessages(ctx, conversationID, limit)
}

func (s *ConversationService) recentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, text, created_at
	 FROM messages WHERE conversation_id = $1
	 ORDER BY created_at, id`
	args := []any{conversationID}
	if limit > 0 {
		// Last N messages, still returned oldest first.
		query = `SELECT id, conversation_id, sender_id, text, created_at FROM (
		   SELECT id, conversation_id, sender_id, text, created_at
		   FROM messages WHERE conversation_id = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT $2
		 ) recent ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return messages, nil
}

func (s *ConversationService) isMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM conversation_members
		   WHERE conversation_id = $1 AND user_id = $2
		 )`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return exists, nil
}

type conversationMember struct {
	ID   uuid.UUID
	Name string
}

func (s *ConversationService) loadMembers(ctx context.Context, conversationID uuid.UUID) ([]conversationMember, error) {
	rows, err := s.db.Query(ctx,
		`SELECT cm.user_id, u.name
		 FROM conversation_members cm
		 JOIN users u ON u.id = cm.user_id
		 WHERE cm.conversation_id = $1
		 ORDER BY cm.user_id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	members := []conversationMember{}
	for rows.Next() {
		var m conversationMember
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading members: %w", err)
	}
	return members, nil
}

// decorate fills in member ids and the name the viewer should render: a
// DM shows the other member's name, a group shows its stored name.
func (s *ConversationService) decorate(ctx context.Context, viewerID uuid.UUID, conv *models.Conversation) error {
	members, err := s.loadMembers(ctx, conv.ID)
	if err != nil {
		return err
	}
	conv.MemberIDs = make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		conv.MemberIDs = append(conv.MemberIDs, m.ID)
	}

	conv.DisplayName = conv.Name
	if conv.Type == models.ConversationTypeDM {
		for _, m := range members {
			if m.ID != viewerID {
				conv.DisplayName = m.Name
				break
			}
		}
	}
	return nil
}

// findByMemberSet looks for a conversation whose member set exactly equals
// the given ids.
func (s *ConversationService) findByMemberSet(ctx context.Context, memberIDs []uuid.UUID) (*models.Conversation, error) {
	sorted := append([]uuid.UUID{}, memberIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	keys := make([]string, len(sorted))
	for i, id := range sorted {
		keys[i] = id.String()
	}
	setKey := strings.Join(keys, ",")

	var conversationID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT conversation_id FROM (
		   SELECT conversation_id, STRING_AGG(user_id::text, ',' ORDER BY user_id::text) AS member_set
		   FROM conversation_members
		   GROUP BY conversation_id
		 ) sets
		 WHERE member_set = $1
		 LIMIT 1`,
		setKey,
	).Scan(&conversationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding conversation by members: %w", err)
	}

	return s.GetConversation(ctx, memberIDs[0], conversationID)
}

// notifyNewGroupMembers alerts members who were not in the previous set.
// Failures are best effort only.
func (s *ConversationService) notifyNewGroupMembers(ctx context.Context, conv *models.Conversation, actorID uuid.UUID, members, previous []uuid.UUID) {
	if s.notifications == nil || conv.Type != models.ConversationTypeGroup {
		return
	}
	for _, id := range members {
		if id == actorID || containsID(previous, id) {
			continue
		}
		if err := s.notifications.NotifyGroupAdded(ctx, id, actorID, conv.ID); err != nil {
			continue
		}
	}
}

// dedupeMembers returns the unique human member set, always including the
// creator and never the assistant.
func dedupeMembers(creatorID uuid.UUID, memberIDs []uuid.UUID, assistantID uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{creatorID: true}
	members := []uuid.UUID{creatorID}
	for _, id := range memberIDs {
		if id == uuid.Nil || id == assistantID || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
