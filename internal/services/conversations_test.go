package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/models"
)

func assistantUserRow(id uuid.UUID) Row {
	now := time.Now()
	return rowFromValues(id, "gemini@google.com", nil, "Gemini", "", "Your AI travel planning assistant.", true, now, now)
}

func TestDedupeMembers(t *testing.T) {
	creator := uuid.New()
	assistant := uuid.New()
	friend := uuid.New()

	members := dedupeMembers(creator, []uuid.UUID{friend, friend, creator, assistant, uuid.Nil}, assistant)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %+v", len(members), members)
	}
	if members[0] != creator || members[1] != friend {
		t.Fatalf("unexpected member set: %+v", members)
	}
}

func TestCreate_RequiresAnotherMember(t *testing.T) {
	creator := uuid.New()
	assistantID := uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return assistantUserRow(assistantID)
		},
	}
	users := NewUserService(db)
	svc := NewConversationService(db, users, NewFriendService(db, nil, ""), nil)

	_, err := svc.Create(context.Background(), creator, "", []uuid.UUID{creator, assistantID})
	if !errors.Is(err, ErrTooFewMembers) {
		t.Fatalf("expected ErrTooFewMembers, got %v", err)
	}
}

func TestCreate_RejectsNonFriendMember(t *testing.T) {
	creator := uuid.New()
	assistantID := uuid.New()
	stranger := uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "is_assistant = true") {
				return assistantUserRow(assistantID)
			}
			return rowFromValues(false)
		},
	}
	users := NewUserService(db)
	svc := NewConversationService(db, users, NewFriendService(db, nil, ""), nil)

	_, err := svc.Create(context.Background(), creator, "", []uuid.UUID{stranger})
	if !errors.Is(err, ErrMemberNotFriend) {
		t.Fatalf("expected ErrMemberNotFriend, got %v", err)
	}
}

// Creating a conversation whose member set already exists returns the
// existing one instead of inserting a duplicate.
func TestCreate_ReturnsExistingForSameMemberSet(t *testing.T) {
	creator := uuid.New()
	friend := uuid.New()
	assistantID := uuid.New()
	existingID := uuid.New()
	now := time.Now()

	inserted := false
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "is_assistant = true"):
				return assistantUserRow(assistantID)
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(true)
			case strings.Contains(sql, "member_set"):
				return rowFromValues(existingID)
			case strings.Contains(sql, "FROM conversations c"):
				return rowFromValues(existingID, "", models.ConversationTypeDM, creator, nil, nil, nil, now)
			default:
				t.Fatalf("unexpected sql: %q", sql)
				return nil
			}
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return &fakeRows{rows: [][]any{{creator, "Avery"}, {friend, "Blair"}}}, nil
		},
		BeginFunc: func(ctx context.Context) (Tx, error) {
			inserted = true
			return &fakeTx{}, nil
		},
	}
	users := NewUserService(db)
	svc := NewConversationService(db, users, NewFriendService(db, nil, ""), nil)

	conv, err := svc.Create(context.Background(), creator, "", []uuid.UUID{friend})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != existingID {
		t.Fatalf("expected existing conversation, got %s", conv.ID)
	}
	if inserted {
		t.Fatal("expected no insert for duplicate member set")
	}
}

// A group create always carries the assistant, and founding members other
// than the creator get a group-added notification.
func TestCreate_GroupAddsAssistantAndNotifies(t *testing.T) {
	creator := uuid.New()
	friend := uuid.New()
	assistantID := uuid.New()
	convID := uuid.New()
	now := time.Now()

	var memberInserts []uuid.UUID
	var notified []uuid.UUID
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "is_assistant = true"):
				return assistantUserRow(assistantID)
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(true)
			case strings.Contains(sql, "member_set"):
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			default:
				t.Fatalf("unexpected sql: %q", sql)
				return nil
			}
		},
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					return rowFromValues(convID, args[0], models.ConversationTypeGroup, creator, nil, nil, nil, now)
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					memberInserts = append(memberInserts, args[1].(uuid.UUID))
					return fakeCommandTag{rowsAffected: 1}, nil
				},
			}, nil
		},
	}
	notifications := &stubNotificationService{
		NotifyGroupAddedFunc: func(ctx context.Context, userID, actorID, conversationID uuid.UUID) error {
			notified = append(notified, userID)
			return nil
		},
	}
	users := NewUserService(db)
	svc := NewConversationService(db, users, NewFriendService(db, nil, ""), notifications)

	conv, err := svc.Create(context.Background(), creator, "Lisbon crew", []uuid.UUID{friend, assistantID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Type != models.ConversationTypeGroup {
		t.Fatalf("expected group conversation, got %s", conv.Type)
	}
	if len(memberInserts) != 3 {
		t.Fatalf("expected creator, friend and assistant rows, got %+v", memberInserts)
	}
	if memberInserts[2] != assistantID {
		t.Fatalf("expected assistant appended, got %+v", memberInserts)
	}
	if len(notified) != 1 || notified[0] != friend {
		t.Fatalf("expected only the friend notified, got %+v", notified)
	}
}

func TestCreate_GroupDefaultsName(t *testing.T) {
	creator := uuid.New()
	friendA := uuid.New()
	friendB := uuid.New()
	assistantID := uuid.New()
	convID := uuid.New()
	now := time.Now()

	var insertedName string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "is_assistant = true"):
				return assistantUserRow(assistantID)
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(true)
			case strings.Contains(sql, "member_set"):
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			default:
				t.Fatalf("unexpected sql: %q", sql)
				return nil
			}
		},
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					insertedName = args[0].(string)
					return rowFromValues(convID, args[0], models.ConversationTypeGroup, creator, nil, nil, nil, now)
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					return fakeCommandTag{rowsAffected: 1}, nil
				},
			}, nil
		},
	}
	users := NewUserService(db)
	svc := NewConversationService(db, users, NewFriendService(db, nil, ""), nil)

	conv, err := svc.Create(context.Background(), creator, "   ", []uuid.UUID{friendA, friendB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insertedName != "Group Chat" {
		t.Fatalf("expected default group name, stored %q", insertedName)
	}
	if conv.DisplayName != "Group Chat" {
		t.Fatalf("expected display name %q, got %q", "Group Chat", conv.DisplayName)
	}
}

func TestGetConversation_DMShowsOtherMemberName(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	convID := uuid.New()
	now := time.Now()

	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(convID, "", models.ConversationTypeDM, viewer, nil, nil, nil, now)
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if !strings.Contains(sql, "JOIN users u") {
				t.Fatalf("expected member names to be loaded, got:\n%s", sql)
			}
			return &fakeRows{rows: [][]any{
				{viewer, "Avery"},
				{other, "Blair"},
			}}, nil
		},
	}

	svc := NewConversationService(db, nil, nil, nil)
	conv, err := svc.GetConversation(context.Background(), viewer, convID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.DisplayName != "Blair" {
		t.Fatalf("expected DM display name %q, got %q", "Blair", conv.DisplayName)
	}
	if len(conv.MemberIDs) != 2 {
		t.Fatalf("expected 2 member ids, got %+v", conv.MemberIDs)
	}
}

func TestList_GroupKeepsStoredName(t *testing.T) {
	viewer := uuid.New()
	other := uuid.New()
	convID := uuid.New()
	now := time.Now()

	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if strings.Contains(sql, "FROM conversations c") {
				return &fakeRows{rows: [][]any{
					{convID, "Trip Crew", models.ConversationTypeGroup, viewer, nil, nil, nil, now},
				}}, nil
			}
			return &fakeRows{rows: [][]any{
				{viewer, "Avery"},
				{other, "Blair"},
			}}, nil
		},
	}

	svc := NewConversationService(db, nil, nil, nil)
	conversations, err := svc.List(context.Background(), viewer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(conversations))
	}
	if conversations[0].DisplayName != "Trip Crew" {
		t.Fatalf("expected group display name %q, got %q", "Trip Crew", conversations[0].DisplayName)
	}
}

func TestTruncateOnRune_NeverSplitsARune(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncateOnRune(s, 5)
	if got != strings.Repeat("é", 2) {
		t.Fatalf("expected cut before the split rune, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if truncateOnRune("abc", 10) != "abc" {
		t.Fatal("expected short strings untouched")
	}
}

func TestSendMessage_RejectsEmptyText(t *testing.T) {
	svc := NewConversationService(&fakeDB{}, nil, nil, nil)

	_, err := svc.SendMessage(context.Background(), uuid.New(), uuid.New(), "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendMessage_NonMember(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(false)
		},
	}
	svc := NewConversationService(db, nil, nil, nil)

	_, err := svc.SendMessage(context.Background(), uuid.New(), uuid.New(), "hi")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSendMessage_UpdatesLastMessageInSameTx(t *testing.T) {
	senderID := uuid.New()
	convID := uuid.New()
	msgID := uuid.New()
	now := time.Now()

	var updatedLast bool
	committed := false
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(true)
		},
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					return rowFromValues(msgID, convID, senderID, args[2], now)
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					if strings.Contains(sql, "last_message_text") {
						if committed {
							t.Fatal("last message updated after commit")
						}
						updatedLast = true
					}
					return fakeCommandTag{rowsAffected: 1}, nil
				},
				CommitFunc: func(ctx context.Context) error {
					committed = true
					return nil
				},
			}, nil
		},
	}
	svc := NewConversationService(db, nil, nil, nil)

	msg, err := svc.SendMessage(context.Background(), senderID, convID, "  beach or mountains?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "beach or mountains?" {
		t.Fatalf("expected trimmed text, got %q", msg.Text)
	}
	if !updatedLast || !committed {
		t.Fatalf("expected last message update and commit, got %v, %v", updatedLast, committed)
	}
}

func TestLeave_NotAMember(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}
	svc := NewConversationService(db, nil, nil, nil)

	if err := svc.Leave(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

// Leaving removes only the caller's membership row; the conversation
// itself is never deleted, even for the last human member.
func TestLeave_OnlyRemovesCaller(t *testing.T) {
	callerID := uuid.New()
	convID := uuid.New()

	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "DELETE FROM conversation_members") {
				t.Fatalf("unexpected sql: %q", sql)
			}
			if args[0].(uuid.UUID) != convID || args[1].(uuid.UUID) != callerID {
				t.Fatalf("unexpected args: %+v", args)
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	svc := NewConversationService(db, nil, nil, nil)

	if err := svc.Leave(context.Background(), callerID, convID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
