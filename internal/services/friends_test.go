package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
)

type recordedEmail struct {
	To      string
	Subject string
}

type stubEmailService struct {
	sent []recordedEmail
	err  error
}

func (s *stubEmailService) SendNotificationEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.sent = append(s.sent, recordedEmail{To: to, Subject: subject})
	return s.err
}

func TestSendRequest_RejectsSelf(t *testing.T) {
	svc := NewFriendService(&fakeDB{}, nil, "https://example.com")
	id := uuid.New()

	_, err := svc.SendRequest(context.Background(), id, id)
	if !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
}

// friendRequestTx builds a fakeTx that walks SendRequest through its
// lock, lookup and existence checks.
func friendRequestTx(t *testing.T, from, to uuid.UUID, alreadyFriends, pendingExists bool) *fakeTx {
	t.Helper()
	now := time.Now()
	return &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "FOR UPDATE"):
				return rowFromValues(args[0])
			case strings.Contains(sql, "is_assistant"):
				return rowFromValues("Blake", "blake@example.com", false)
			case strings.Contains(sql, "SELECT name FROM users"):
				return rowFromValues("Avery")
			case strings.Contains(sql, "FROM friendships"):
				return rowFromValues(alreadyFriends)
			case strings.Contains(sql, "FROM friend_requests"):
				if strings.Contains(sql, "EXISTS") {
					return rowFromValues(pendingExists)
				}
				return rowFromValues(uuid.New(), from, to, models.FriendRequestStatusPending, now, nil)
			case strings.Contains(sql, "INSERT INTO friend_requests"):
				return rowFromValues(uuid.New(), from, to, models.FriendRequestStatusPending, now, nil)
			default:
				t.Fatalf("unexpected sql: %q", sql)
				return nil
			}
		},
	}
}

func TestSendRequest_CreatesPendingAndEmails(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	email := &stubEmailService{}
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return friendRequestTx(t, from, to, false, false), nil
		},
	}

	svc := NewFriendService(db, email, "https://example.com")
	request, err := svc.SendRequest(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != models.FriendRequestStatusPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if len(email.sent) != 1 || email.sent[0].To != "blake@example.com" {
		t.Fatalf("expected one email to recipient, got %+v", email.sent)
	}
}

func TestSendRequest_BlocksExistingFriendship(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return friendRequestTx(t, from, to, true, false), nil
		},
	}

	svc := NewFriendService(db, nil, "")
	if _, err := svc.SendRequest(context.Background(), from, to); !errors.Is(err, ErrFriendshipExists) {
		t.Fatalf("expected ErrFriendshipExists, got %v", err)
	}
}

func TestSendRequest_BlocksPendingEitherDirection(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return friendRequestTx(t, from, to, false, true), nil
		},
	}

	svc := NewFriendService(db, nil, "")
	if _, err := svc.SendRequest(context.Background(), from, to); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}
}

func TestAcceptRequest_WrongRecipient(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	requestID := uuid.New()
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					return rowFromValues(requestID, from, to, models.FriendRequestStatusPending, time.Now(), nil)
				},
			}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	err := svc.AcceptRequest(context.Background(), uuid.New(), requestID)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestAcceptRequest_AlreadyResolved(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	requestID := uuid.New()
	respondedAt := time.Now()
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					return rowFromValues(requestID, from, to, models.FriendRequestStatusDenied, time.Now(), &respondedAt)
				},
			}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	err := svc.AcceptRequest(context.Background(), to, requestID)
	if !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("expected ErrRequestNotPending, got %v", err)
	}
}

func TestAcceptRequest_WritesOrderedEdgeAndEmails(t *testing.T) {
	from := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	to := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	requestID := uuid.New()
	email := &stubEmailService{}

	var edgeArgs []any
	committed := false
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					switch {
					case strings.Contains(sql, "FROM friend_requests"):
						return rowFromValues(requestID, from, to, models.FriendRequestStatusPending, time.Now(), nil)
					case strings.Contains(sql, "FOR UPDATE"):
						return rowFromValues(args[0])
					default:
						return rowFromValues("sender@example.com", "Sender", "Accepter")
					}
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					if strings.Contains(sql, "INSERT INTO friendships") {
						edgeArgs = args
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

	svc := NewFriendService(db, email, "https://example.com")
	if err := svc.AcceptRequest(context.Background(), to, requestID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !committed {
		t.Fatal("expected commit")
	}
	if len(edgeArgs) != 2 || edgeArgs[0].(uuid.UUID) != to || edgeArgs[1].(uuid.UUID) != from {
		t.Fatalf("expected edge stored in bytewise order, got %+v", edgeArgs)
	}
	if len(email.sent) != 1 || email.sent[0].To != "sender@example.com" {
		t.Fatalf("expected acceptance email to sender, got %+v", email.sent)
	}
}

func TestCancelRequest_NotFound(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	err := svc.CancelRequest(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestRemoveFriend_ClearsEdgeAndRequests(t *testing.T) {
	userA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	userB := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	var deletes []string
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return &fakeTx{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					return rowFromValues(args[0])
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					deletes = append(deletes, sql)
					return fakeCommandTag{}, nil
				},
			}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	if err := svc.RemoveFriend(context.Background(), userA, userB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deletes) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(deletes))
	}
	if !strings.Contains(deletes[0], "friendships") || !strings.Contains(deletes[1], "friend_requests") {
		t.Fatalf("unexpected delete order: %+v", deletes)
	}
}

func TestSuggestions_ScansRankedRows(t *testing.T) {
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if args[1].(int) != 5 {
				t.Fatalf("expected default limit 5, got %v", args[1])
			}
			return &fakeRows{rows: [][]any{
				{first, "Casey", "casey@example.com", "", 3},
				{second, "Drew", "drew@example.com", "", 1},
			}}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	suggestions, err := svc.Suggestions(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	if suggestions[0].ID != first || suggestions[0].MutualCount != 3 {
		t.Fatalf("unexpected first suggestion: %+v", suggestions[0])
	}
}

func TestSuggestions_IncludesZeroMutualUsers(t *testing.T) {
	userID := uuid.New()
	popular := uuid.New()
	stranger := uuid.New()
	var gotSQL string
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			gotSQL = sql
			return &fakeRows{rows: [][]any{
				{popular, "Casey", "casey@example.com", "", 3},
				{stranger, "Drew", "drew@example.com", "", 0},
			}}, nil
		},
	}

	svc := NewFriendService(db, nil, "")
	suggestions, err := svc.Suggestions(context.Background(), userID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Candidates come from the users table itself, not from friendship
	// edges, so a user with no mutual friends still ranks (at the bottom).
	if !strings.Contains(gotSQL, "FROM users u") || !strings.Contains(gotSQL, "LEFT JOIN mutuals") {
		t.Fatalf("expected suggestions to scan all users with an outer mutual join, got:\n%s", gotSQL)
	}
	if !strings.Contains(gotSQL, "COALESCE(m.mutual_count, 0)") {
		t.Fatalf("expected zero-mutual users to count as 0, got:\n%s", gotSQL)
	}
	if !strings.Contains(gotSQL, "ORDER BY mutual_count DESC, u.created_at, u.id") {
		t.Fatalf("expected ranking to break ties on creation order, got:\n%s", gotSQL)
	}
	if len(suggestions) != 2 || suggestions[1].ID != stranger || suggestions[1].MutualCount != 0 {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
}

func TestOrderedPair_Stable(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	a1, b1 := orderedPair(low, high)
	a2, b2 := orderedPair(high, low)
	if a1 != a2 || b1 != b2 {
		t.Fatal("expected same order regardless of argument order")
	}
	if a1 != low || b1 != high {
		t.Fatalf("expected bytewise order, got %s, %s", a1, b1)
	}
}
