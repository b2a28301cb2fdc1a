package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNotificationList_DefaultsAndFilters(t *testing.T) {
	userID := uuid.New()
	before := time.Now().Add(-time.Hour)

	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if !strings.Contains(sql, "dismissed_at IS NULL") {
				t.Fatalf("expected undismissed filter, got %q", sql)
			}
			if !strings.Contains(sql, "created_at < $2") {
				t.Fatalf("expected before filter, got %q", sql)
			}
			if len(args) != 3 || args[2].(int) != 50 {
				t.Fatalf("expected default limit 50, got %+v", args)
			}
			return &fakeRows{rows: [][]any{
				{uuid.New(), userID, "trip_match", nil, nil, nil, nil, nil, nil, nil, time.Now()},
			}}, nil
		},
	}
	svc := NewNotificationService(db)

	notifications, err := svc.List(context.Background(), userID, NotificationListParams{
		Before:          &before,
		UndismissedOnly: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
}

func TestDismiss_NotFound(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}
	svc := NewNotificationService(db)

	err := svc.Dismiss(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestDismiss_ScopedToOwner(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "user_id = $2") {
				t.Fatalf("expected owner scoping, got %q", sql)
			}
			if args[0].(uuid.UUID) != notificationID || args[1].(uuid.UUID) != userID {
				t.Fatalf("unexpected args: %+v", args)
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	svc := NewNotificationService(db)

	if err := svc.Dismiss(context.Background(), userID, notificationID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCleanupOld_OnlyDismissedRows(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "dismissed_at IS NOT NULL") {
				t.Fatalf("expected dismissed-only cleanup, got %q", sql)
			}
			return fakeCommandTag{rowsAffected: 7}, nil
		},
	}
	svc := NewNotificationService(db)

	removed, err := svc.CleanupOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 7 {
		t.Fatalf("expected 7 removed, got %d", removed)
	}
}
