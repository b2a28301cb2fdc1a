package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrEmailAlreadyExists      = errors.New("email already exists")
	ErrAssistantMissing        = errors.New("assistant account not provisioned")
	ErrInvalidProviderClaims   = errors.New("invalid provider claims")
	ErrProviderEmailUnverified = errors.New("provider email not verified")
)

const userColumns = `id, email, password_hash, name, avatar_url, bio, is_assistant, created_at, updated_at`

type UserService struct {
	db DB
}

func NewUserService(db DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))", params.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	user := &models.User{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name, avatar_url, bio)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.Name, params.AvatarURL, params.Bio,
	).Scan(scanUserDest(user)...)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(scanUserDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(scanUserDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	return user, nil
}

// GetAssistant returns the synthetic assistant account.
func (s *UserService) GetAssistant(ctx context.Context) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_assistant = true LIMIT 1`,
	).Scan(scanUserDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssistantMissing
	}
	if err != nil {
		return nil, fmt.Errorf("getting assistant user: %w", err)
	}

	return user, nil
}

// Search matches on name or email substring, excluding the caller and the
// assistant account. Queries shorter than two characters return nothing.
func (s *UserService) Search(ctx context.Context, callerID uuid.UUID, query string, limit int) ([]models.UserSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []models.UserSummary{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(ctx,
		`SELECT id, name, email, avatar_url
		 FROM users
		 WHERE id != $1
		   AND is_assistant = false
		   AND (name ILIKE $2 OR email ILIKE $2)
		 ORDER BY name, id
		 LIMIT $3`,
		callerID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	results := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	return results, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch models.UserProfilePatch) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name),
		     avatar_url = COALESCE($3, avatar_url),
		     bio = COALESCE($4, bio),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, patch.Name, patch.AvatarURL, patch.Bio,
	).Scan(scanUserDest(user)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	return user, nil
}

// UpsertFromProvider records a provider sign-in: create the directory entry
// on first sight, otherwise refresh name, email and avatar. Bio and friend
// edges are never clobbered by a provider merge.
func (s *UserService) UpsertFromProvider(ctx context.Context, claims IdentityClaims) (*models.User, error) {
	if strings.TrimSpace(string(claims.Provider)) == "" || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidProviderClaims
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" || !claims.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting provider upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	var userID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM user_identities WHERE provider = $1 AND subject = $2`,
		string(claims.Provider), claims.Subject,
	).Scan(&userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("looking up provider identity: %w", err)
	}

	user := &models.User{}
	if err == nil {
		err = tx.QueryRow(ctx,
			`UPDATE users
			 SET name = CASE WHEN $2 != '' THEN $2 ELSE name END,
			     email = $3,
			     avatar_url = CASE WHEN $4 != '' THEN $4 ELSE avatar_url END,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			userID, claims.Name, email, claims.AvatarURL,
		).Scan(scanUserDest(user)...)
		if err != nil {
			return nil, fmt.Errorf("refreshing provider user: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("committing provider upsert: %w", err)
		}
		return user, nil
	}

	// First sight of this identity; attach to an existing account with the
	// same email, or create a fresh one.
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			`INSERT INTO users (email, password_hash, name, avatar_url, bio)
			 VALUES ($1, NULL, $2, $3, '')
			 RETURNING `+userColumns,
			email, claims.Name, claims.AvatarURL,
		).Scan(scanUserDest(user)...)
		if err != nil {
			return nil, fmt.Errorf("creating provider user: %w", err)
		}
		userID = user.ID
	} else if err != nil {
		return nil, fmt.Errorf("looking up user by email: %w", err)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE users
			 SET name = CASE WHEN $2 != '' THEN $2 ELSE name END,
			     avatar_url = CASE WHEN $3 != '' THEN $3 ELSE avatar_url END,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			userID, claims.Name, claims.AvatarURL,
		).Scan(scanUserDest(user)...)
		if err != nil {
			return nil, fmt.Errorf("merging provider user: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_identities (user_id, provider, subject, email_at_link_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (provider, subject) DO NOTHING`,
		userID, string(claims.Provider), claims.Subject, email,
	)
	if err != nil {
		return nil, fmt.Errorf("linking provider identity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing provider upsert: %w", err)
	}
	return user, nil
}

func scanUserDest(u *models.User) []any {
	return []any{&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.AvatarURL, &u.Bio, &u.IsAssistant, &u.CreatedAt, &u.UpdatedAt}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
