package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wanderlyst/tripmatch/internal/models"
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantMessage string) {
	t.Helper()
	if rr.Code != wantStatus {
		t.Fatalf("expected status %d, got %d (body %s)", wantStatus, rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if body["error"] != wantMessage {
		t.Fatalf("expected error %q, got %q", wantMessage, body["error"])
	}
}

func withUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}
