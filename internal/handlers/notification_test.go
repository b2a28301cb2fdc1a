package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
	"github.com/wanderlyst/tripmatch/internal/services"
)

type mockNotificationService struct {
	ListFunc             func(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error)
	DismissFunc          func(ctx context.Context, userID, notificationID uuid.UUID) error
	DismissAllFunc       func(ctx context.Context, userID uuid.UUID) error
	UndismissedCountFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error) {
	return m.ListFunc(ctx, userID, params)
}

func (m *mockNotificationService) Dismiss(ctx context.Context, userID, notificationID uuid.UUID) error {
	return m.DismissFunc(ctx, userID, notificationID)
}

func (m *mockNotificationService) DismissAll(ctx context.Context, userID uuid.UUID) error {
	return m.DismissAllFunc(ctx, userID)
}

func (m *mockNotificationService) UndismissedCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.UndismissedCountFunc(ctx, userID)
}

func (m *mockNotificationService) NotifyTripMatch(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
	return nil
}

func (m *mockNotificationService) NotifyGroupAdded(ctx context.Context, userID, actorID, conversationID uuid.UUID) error {
	return nil
}

func TestNotificationHandler_List_RequiresAuth(t *testing.T) {
	handler := NewNotificationHandler(&mockNotificationService{})
	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	rr := httptest.NewRecorder()

	handler.List(rr, req)
	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestNotificationHandler_List_PassesQueryParams(t *testing.T) {
	userID := uuid.New()
	var gotParams services.NotificationListParams
	handler := NewNotificationHandler(&mockNotificationService{
		ListFunc: func(ctx context.Context, gotUserID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error) {
			if gotUserID != userID {
				t.Fatalf("expected userID %v, got %v", userID, gotUserID)
			}
			gotParams = params
			return []models.Notification{}, nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/notifications?limit=10&undismissed=1", nil), &models.User{ID: userID})
	rr := httptest.NewRecorder()

	handler.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotParams.Limit != 10 || !gotParams.UndismissedOnly {
		t.Fatalf("unexpected params: %+v", gotParams)
	}
}

func TestNotificationHandler_List_InvalidBefore(t *testing.T) {
	handler := NewNotificationHandler(&mockNotificationService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/notifications?before=yesterday", nil), &models.User{ID: uuid.New()})
	rr := httptest.NewRecorder()

	handler.List(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid before timestamp")
}

func TestNotificationHandler_Dismiss_NotOwned(t *testing.T) {
	notificationID := uuid.New()
	handler := NewNotificationHandler(&mockNotificationService{
		DismissFunc: func(ctx context.Context, userID, gotNotificationID uuid.UUID) error {
			return services.ErrNotificationNotFound
		},
	})

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/"+notificationID.String()+"/dismiss", nil), &models.User{ID: uuid.New()})
	req.SetPathValue("id", notificationID.String())
	rr := httptest.NewRecorder()

	handler.Dismiss(rr, req)
	assertErrorResponse(t, rr, http.StatusNotFound, "Notification not found")
}

func TestNotificationHandler_UndismissedCount(t *testing.T) {
	handler := NewNotificationHandler(&mockNotificationService{
		UndismissedCountFunc: func(ctx context.Context, userID uuid.UUID) (int, error) {
			return 3, nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/notifications/count", nil), &models.User{ID: uuid.New()})
	rr := httptest.NewRecorder()

	handler.UndismissedCount(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var response NotificationCountResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Count != 3 {
		t.Fatalf("expected count 3, got %d", response.Count)
	}
}
