package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wanderlyst/tripmatch/internal/middleware"
	"github.com/wanderlyst/tripmatch/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func GetUserFromContext(ctx context.Context) *models.User {
	return middleware.GetUserFromContext(ctx)
}

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return middleware.SetUserInContext(ctx, user)
}
