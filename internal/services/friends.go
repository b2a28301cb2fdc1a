package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/logging"
	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrCannotFriendSelf   = errors.New("cannot friend yourself")
	ErrRequestPending     = errors.New("friend request already pending")
	ErrFriendshipExists   = errors.New("already friends")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrRequestNotPending  = errors.New("friend request already resolved")
	ErrCannotFriendAssist = errors.New("cannot friend the assistant")
)

type FriendService struct {
	db      DB
	email   EmailServiceInterface
	baseURL string
}

func NewFriendService(db DB, email EmailServiceInterface, baseURL string) *FriendService {
	return &FriendService{db: db, email: email, baseURL: baseURL}
}

// SendRequest opens a pending friend request from one user to another.
// A pending request in either direction, or an existing friendship,
// blocks a new one.
func (s *FriendService) SendRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	if err := lockUserPairForUpdate(ctx, tx, fromUserID, toUserID); err != nil {
		return nil, err
	}

	var recipientName, recipientEmail, senderName string
	var recipientIsAssistant bool
	err = tx.QueryRow(ctx,
		`SELECT name, email, is_assistant FROM users WHERE id = $1`,
		toUserID,
	).Scan(&recipientName, &recipientEmail, &recipientIsAssistant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading recipient: %w", err)
	}
	if recipientIsAssistant {
		return nil, ErrCannotFriendAssist
	}

	if err := tx.QueryRow(ctx,
		`SELECT name FROM users WHERE id = $1`,
		fromUserID,
	).Scan(&senderName); err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}

	friends, err := areFriends(ctx, tx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, ErrFriendshipExists
	}

	var pendingExists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM friend_requests
		   WHERE status = 'pending'
		     AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		 )`,
		fromUserID, toUserID,
	).Scan(&pendingExists)
	if err != nil {
		return nil, fmt.Errorf("checking pending request: %w", err)
	}
	if pendingExists {
		return nil, ErrRequestPending
	}

	request := &models.FriendRequest{}
	err = tx.QueryRow(ctx,
		`INSERT INTO friend_requests (from_user_id, to_user_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING id, from_user_id, to_user_id, status, created_at, responded_at`,
		fromUserID, toUserID,
	).Scan(&request.ID, &request.FromUserID, &request.ToUserID, &request.Status, &request.CreatedAt, &request.RespondedAt)
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	if s.email != nil {
		subject, htmlBody, text := buildFriendRequestEmail(friendEmailParams{
			RecipientName: recipientName,
			ActorName:     senderName,
			BaseURL:       s.baseURL,
		})
		if err := s.email.SendNotificationEmail(ctx, recipientEmail, subject, htmlBody, text); err != nil {
			logging.Warn("friend request email failed", map[string]interface{}{
				"request_id": request.ID.String(),
				"error":      err.Error(),
			})
		}
	}

	return request, nil
}

// AcceptRequest resolves a pending request addressed to userID and writes
// the friendship edge. Both sides see the new friendship at once.
func (s *FriendService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	request, err := getRequestForUpdate(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if request.ToUserID != userID {
		return ErrRequestNotFound
	}
	if request.Status != models.FriendRequestStatusPending {
		return ErrRequestNotPending
	}

	if err := lockUserPairForUpdate(ctx, tx, request.FromUserID, request.ToUserID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE friend_requests
		 SET status = 'accepted', responded_at = NOW()
		 WHERE id = $1`,
		requestID,
	); err != nil {
		return fmt.Errorf("accepting friend request: %w", err)
	}

	a, b := orderedPair(request.FromUserID, request.ToUserID)
	if _, err := tx.Exec(ctx,
		`INSERT INTO friendships (user_a, user_b)
		 VALUES ($1, $2)
		 ON CONFLICT (user_a, user_b) DO NOTHING`,
		a, b,
	); err != nil {
		return fmt.Errorf("creating friendship: %w", err)
	}

	var senderEmail, senderName, accepterName string
	if err := tx.QueryRow(ctx,
		`SELECT s.email, s.name, a.name
		 FROM users s, users a
		 WHERE s.id = $1 AND a.id = $2`,
		request.FromUserID, request.ToUserID,
	).Scan(&senderEmail, &senderName, &accepterName); err != nil {
		return fmt.Errorf("loading request users: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	if s.email != nil {
		subject, htmlBody, text := buildFriendAcceptedEmail(friendEmailParams{
			RecipientName: senderName,
			ActorName:     accepterName,
			BaseURL:       s.baseURL,
		})
		if err := s.email.SendNotificationEmail(ctx, senderEmail, subject, htmlBody, text); err != nil {
			logging.Warn("friend accepted email failed", map[string]interface{}{
				"request_id": requestID.String(),
				"error":      err.Error(),
			})
		}
	}

	return nil
}

// DenyRequest resolves a pending request addressed to userID without
// creating an edge. The sender may request again later.
func (s *FriendService) DenyRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	request, err := getRequestForUpdate(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if request.ToUserID != userID {
		return ErrRequestNotFound
	}
	if request.Status != models.FriendRequestStatusPending {
		return ErrRequestNotPending
	}

	if _, err := tx.Exec(ctx,
		`UPDATE friend_requests
		 SET status = 'denied', responded_at = NOW()
		 WHERE id = $1`,
		requestID,
	); err != nil {
		return fmt.Errorf("denying friend request: %w", err)
	}

	return tx.Commit(ctx)
}

// CancelRequest withdraws a pending request the caller sent.
func (s *FriendService) CancelRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM friend_requests
		 WHERE id = $1 AND from_user_id = $2 AND status = 'pending'`,
		requestID, userID,
	)
	if err != nil {
		return fmt.Errorf("cancelling friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// RemoveFriend deletes the friendship edge for both sides. Removing a
// non-friend is a no-op.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is a no-op after commit

	if err := lockUserPairForUpdate(ctx, tx, userID, friendID); err != nil {
		return err
	}

	a, b := orderedPair(userID, friendID)
	if _, err := tx.Exec(ctx,
		`DELETE FROM friendships WHERE user_a = $1 AND user_b = $2`,
		a, b,
	); err != nil {
		return fmt.Errorf("removing friendship: %w", err)
	}

	// Clear resolved requests between the pair so a fresh request is
	// possible after removal.
	if _, err := tx.Exec(ctx,
		`DELETE FROM friend_requests
		 WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)`,
		userID, friendID,
	); err != nil {
		return fmt.Errorf("clearing friend requests: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.name, u.email, u.avatar_url
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		 WHERE f.user_a = $1 OR f.user_b = $1
		 ORDER BY u.name, u.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading friends: %w", err)
	}
	return friends, nil
}

func (s *FriendService) ListIncomingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx, userID, true)
}

func (s *FriendService) ListOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx, userID, false)
}

func (s *FriendService) listRequests(ctx context.Context, userID uuid.UUID, incoming bool) ([]models.FriendRequestWithUser, error) {
	ownColumn, otherColumn := "to_user_id", "from_user_id"
	if !incoming {
		ownColumn, otherColumn = "from_user_id", "to_user_id"
	}

	rows, err := s.db.Query(ctx,
		`SELECT fr.id, fr.from_user_id, fr.to_user_id, fr.status, fr.created_at, fr.responded_at,
		        u.name, u.email, u.avatar_url
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.`+otherColumn+`
		 WHERE fr.`+ownColumn+` = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC, fr.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequestWithUser{}
	for rows.Next() {
		var r models.FriendRequestWithUser
		if err := rows.Scan(&r.ID, &r.FromUserID, &r.ToUserID, &r.Status, &r.CreatedAt, &r.RespondedAt,
			&r.UserName, &r.UserEmail, &r.UserAvatarURL); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading friend requests: %w", err)
	}
	return requests, nil
}

// Suggestions ranks every addable user by mutual friend count, so users
// sharing no friends with the caller still appear at the bottom of the
// list. Existing friends, users with a pending request in either
// direction, the caller and the assistant never appear. Ties break on
// account creation order so the ranking is stable.
func (s *FriendService) Suggestions(ctx context.Context, userID uuid.UUID, limit int) ([]models.FriendSuggestion, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`WITH my_friends AS (
		   SELECT CASE WHEN user_a = $1 THEN user_b ELSE user_a END AS friend_id
		   FROM friendships
		   WHERE user_a = $1 OR user_b = $1
		 ),
		 mutuals AS (
		   SELECT CASE WHEN f.user_a = mf.friend_id THEN f.user_b ELSE f.user_a END AS candidate_id,
		          COUNT(*) AS mutual_count
		   FROM friendships f
		   JOIN my_friends mf ON f.user_a = mf.friend_id OR f.user_b = mf.friend_id
		   GROUP BY 1
		 )
		 SELECT u.id, u.name, u.email, u.avatar_url, COALESCE(m.mutual_count, 0) AS mutual_count
		 FROM users u
		 LEFT JOIN mutuals m ON m.candidate_id = u.id
		 WHERE u.id != $1
		   AND u.is_assistant = false
		   AND u.id NOT IN (SELECT friend_id FROM my_friends)
		   AND NOT EXISTS (
		     SELECT 1 FROM friend_requests fr
		     WHERE fr.status = 'pending'
		       AND ((fr.from_user_id = $1 AND fr.to_user_id = u.id)
		         OR (fr.from_user_id = u.id AND fr.to_user_id = $1))
		   )
		 ORDER BY mutual_count DESC, u.created_at, u.id
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []models.FriendSuggestion{}
	for rows.Next() {
		var sg models.FriendSuggestion
		if err := rows.Scan(&sg.ID, &sg.Name, &sg.Email, &sg.AvatarURL, &sg.MutualCount); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading suggestions: %w", err)
	}
	return suggestions, nil
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	return areFriends(ctx, s.db, userID, otherID)
}

func areFriends(ctx context.Context, q DBConn, userID, otherID uuid.UUID) (bool, error) {
	a, b := orderedPair(userID, otherID)
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE user_a = $1 AND user_b = $2)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return exists, nil
}

func getRequestForUpdate(ctx context.Context, tx Tx, requestID uuid.UUID) (*models.FriendRequest, error) {
	request := &models.FriendRequest{}
	err := tx.QueryRow(ctx,
		`SELECT id, from_user_id, to_user_id, status, created_at, responded_at
		 FROM friend_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&request.ID, &request.FromUserID, &request.ToUserID, &request.Status, &request.CreatedAt, &request.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading friend request: %w", err)
	}
	return request, nil
}

// orderedPair returns the two ids in stable bytewise order, matching the
// (user_a, user_b) storage convention for friendships.
func orderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return a, b
			}
			return b, a
		}
	}
	return a, b
}
