package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRecordMatch_NotifiesBothSidesOnce(t *testing.T) {
	userA := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	userB := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	destID := uuid.New()

	var notified []uuid.UUID
	notifications := &stubNotificationService{
		NotifyTripMatchFunc: func(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
			if destinationID != destID {
				t.Fatalf("unexpected destination: %s", destinationID)
			}
			notified = append(notified, userID)
			return nil
		},
	}
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if args[0].(uuid.UUID) != userA || args[1].(uuid.UUID) != userB {
				t.Fatalf("expected ordered pair, got %v, %v", args[0], args[1])
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}

	svc := NewMatchService(db, notifications)
	if err := svc.recordMatch(context.Background(), userB, userA, destID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notified) != 2 || notified[0] != userA || notified[1] != userB {
		t.Fatalf("expected both sides notified, got %+v", notified)
	}
}

func TestRecordMatch_DuplicateIsSilent(t *testing.T) {
	notifications := &stubNotificationService{
		NotifyTripMatchFunc: func(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
			t.Fatal("duplicate match must not notify")
			return nil
		},
	}
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}

	svc := NewMatchService(db, notifications)
	if err := svc.recordMatch(context.Background(), uuid.New(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDetectForSwipe_RecordsEachMatchingFriend(t *testing.T) {
	userID := uuid.New()
	friendA := uuid.New()
	friendB := uuid.New()
	destID := uuid.New()

	var recorded int
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return &fakeRows{rows: [][]any{{friendA}, {friendB}}}, nil
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			recorded++
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}

	svc := NewMatchService(db, &stubNotificationService{})
	if err := svc.DetectForSwipe(context.Background(), userID, destID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded != 2 {
		t.Fatalf("expected 2 ledger writes, got %d", recorded)
	}
}
