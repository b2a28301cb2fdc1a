package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/wanderlyst/tripmatch/internal/models"
	"github.com/wanderlyst/tripmatch/internal/services"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthNonceCookieName = "oauth_nonce"
	oauthCookieMaxAge    = 10 * 60 // 10 minutes
)

type ProviderUserService interface {
	UpsertFromProvider(ctx context.Context, claims services.IdentityClaims) (*models.User, error)
}

type ProviderAuthHandler struct {
	users       ProviderUserService
	authService AuthServiceInterface
	providers   map[string]services.OAuthProvider
	secure      bool
}

func NewProviderAuthHandler(users ProviderUserService, authService AuthServiceInterface, providers map[services.Provider]services.OAuthProvider, secure bool) *ProviderAuthHandler {
	normalized := make(map[string]services.OAuthProvider, len(providers))
	for key, provider := range providers {
		normalized[strings.ToLower(string(key))] = provider
	}

	return &ProviderAuthHandler{
		users:       users,
		authService: authService,
		providers:   normalized,
		secure:      secure,
	}
}

func (h *ProviderAuthHandler) ProviderStart(w http.ResponseWriter, r *http.Request) {
	provider := h.getProvider(r)
	if provider == nil {
		http.NotFound(w, r)
		return
	}

	state, err := generateSecureToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start provider auth")
		return
	}
	nonce, err := generateSecureToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start provider auth")
		return
	}

	h.setOAuthCookie(w, oauthStateCookieName, state)
	h.setOAuthCookie(w, oauthNonceCookieName, nonce)

	http.Redirect(w, r, provider.AuthCodeURL(state, nonce), http.StatusFound)
}

func (h *ProviderAuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := h.getProvider(r)
	if provider == nil {
		http.NotFound(w, r)
		return
	}

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		h.redirectToLoginError(w, r, providerErr)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.redirectToLoginError(w, r, "oauth_missing")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || !secureCompare(stateCookie.Value, state) {
		h.redirectToLoginError(w, r, "oauth_invalid")
		return
	}

	nonceCookie, err := r.Cookie(oauthNonceCookieName)
	if err != nil || nonceCookie.Value == "" {
		h.redirectToLoginError(w, r, "oauth_invalid")
		return
	}

	claims, err := provider.ExchangeAndVerify(r.Context(), code, nonceCookie.Value)
	if err != nil {
		log.Printf("Provider exchange failed: %v", err)
		h.redirectToLoginError(w, r, "oauth_exchange")
		return
	}

	user, err := h.users.UpsertFromProvider(r.Context(), claims)
	if err != nil {
		if errors.Is(err, services.ErrProviderEmailUnverified) {
			h.redirectToLoginError(w, r, "oauth_unverified")
			return
		}
		log.Printf("Provider link failed: %v", err)
		h.redirectToLoginError(w, r, "oauth_link")
		return
	}

	h.clearOAuthCookie(w, oauthStateCookieName)
	h.clearOAuthCookie(w, oauthNonceCookieName)

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Provider session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *ProviderAuthHandler) getProvider(r *http.Request) services.OAuthProvider {
	providerKey := strings.ToLower(r.PathValue("provider"))
	if providerKey == "" {
		return nil
	}
	return h.providers[providerKey]
}

func (h *ProviderAuthHandler) setOAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   oauthCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ProviderAuthHandler) clearOAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

func (h *ProviderAuthHandler) redirectToLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/#login?error="+sanitizeErrorParam(code), http.StatusFound)
}

func generateSecureToken(size int) (string, error) {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func secureCompare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func sanitizeErrorParam(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "oauth_error"
	}
	if len(value) > 60 {
		value = value[:60]
	}
	for _, r := range value {
		if !isAllowedErrorRune(r) {
			return "oauth_error"
		}
	}
	return value
}

func isAllowedErrorRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
