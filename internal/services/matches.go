package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/logging"
	"github.com/wanderlyst/tripmatch/internal/models"
)

// MatchService finds friend pairs that both right-swiped the same
// destination. The trip_matches ledger keys on the ordered pair plus the
// destination, so each pair is announced exactly once no matter how many
// times detection runs over it.
type MatchService struct {
	db            DB
	notifications NotificationServiceInterface
}

func NewMatchService(db DB, notifications NotificationServiceInterface) *MatchService {
	return &MatchService{db: db, notifications: notifications}
}

// DetectForSwipe runs eagerly after a right swipe: it checks only the
// swiper's friends against the one destination.
func (s *MatchService) DetectForSwipe(ctx context.Context, userID, destinationID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		 FROM friendships f
		 JOIN swipes s ON s.user_id = CASE WHEN f.user_a = $1 THEN f.user_b ELSE f.user_a END
		 WHERE (f.user_a = $1 OR f.user_b = $1)
		   AND s.destination_id = $2
		   AND s.direction = 'right'`,
		userID, destinationID,
	)
	if err != nil {
		return fmt.Errorf("finding matching friends: %w", err)
	}
	defer rows.Close()

	friendIDs := []uuid.UUID{}
	for rows.Next() {
		var friendID uuid.UUID
		if err := rows.Scan(&friendID); err != nil {
			return fmt.Errorf("scanning matching friend: %w", err)
		}
		friendIDs = append(friendIDs, friendID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading matching friends: %w", err)
	}

	for _, friendID := range friendIDs {
		if err := s.recordMatch(ctx, userID, friendID, destinationID); err != nil {
			return err
		}
	}
	return nil
}

// Sweep re-derives every matched pair from current swipes and friendships,
// announcing anything the eager path missed. Safe to run repeatedly.
func (s *MatchService) Sweep(ctx context.Context) error {
	rows, err := s.db.Query(ctx,
		`SELECT f.user_a, f.user_b, sa.destination_id
		 FROM friendships f
		 JOIN swipes sa ON sa.user_id = f.user_a AND sa.direction = 'right'
		 JOIN swipes sb ON sb.user_id = f.user_b AND sb.direction = 'right'
		            AND sb.destination_id = sa.destination_id
		 WHERE NOT EXISTS (
		   SELECT 1 FROM trip_matches tm
		   WHERE tm.user_a = f.user_a AND tm.user_b = f.user_b
		     AND tm.destination_id = sa.destination_id
		 )`,
	)
	if err != nil {
		return fmt.Errorf("sweeping matches: %w", err)
	}
	defer rows.Close()

	type pairMatch struct {
		userA, userB, destinationID uuid.UUID
	}
	pending := []pairMatch{}
	for rows.Next() {
		var m pairMatch
		if err := rows.Scan(&m.userA, &m.userB, &m.destinationID); err != nil {
			return fmt.Errorf("scanning swept match: %w", err)
		}
		pending = append(pending, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading swept matches: %w", err)
	}

	for _, m := range pending {
		if err := s.recordMatch(ctx, m.userA, m.userB, m.destinationID); err != nil {
			logging.Warn("match sweep record failed", map[string]interface{}{
				"destination_id": m.destinationID.String(),
				"error":          err.Error(),
			})
		}
	}
	return nil
}

// recordMatch writes the ledger row and, only if this call inserted it,
// notifies both sides.
func (s *MatchService) recordMatch(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
	a, b := orderedPair(userID, friendID)
	tag, err := s.db.Exec(ctx,
		`INSERT INTO trip_matches (user_a, user_b, destination_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_a, user_b, destination_id) DO NOTHING`,
		a, b, destinationID,
	)
	if err != nil {
		return fmt.Errorf("recording trip match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if s.notifications != nil {
		if err := s.notifications.NotifyTripMatch(ctx, a, b, destinationID); err != nil {
			return err
		}
		if err := s.notifications.NotifyTripMatch(ctx, b, a, destinationID); err != nil {
			return err
		}
	}
	return nil
}

// ListMatches returns the caller's matches, newest first, with the friend
// and destination resolved for display.
func (s *MatchService) ListMatches(ctx context.Context, userID uuid.UUID) ([]models.TripMatch, error) {
	rows, err := s.db.Query(ctx,
		`SELECT CASE WHEN tm.user_a = $1 THEN tm.user_a ELSE tm.user_b END,
		        CASE WHEN tm.user_a = $1 THEN tm.user_b ELSE tm.user_a END,
		        tm.destination_id, tm.created_at
		 FROM trip_matches tm
		 WHERE tm.user_a = $1 OR tm.user_b = $1
		 ORDER BY tm.created_at DESC, tm.destination_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing trip matches: %w", err)
	}
	defer rows.Close()

	matches := []models.TripMatch{}
	for rows.Next() {
		var m models.TripMatch
		if err := rows.Scan(&m.UserID, &m.FriendID, &m.DestinationID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning trip match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading trip matches: %w", err)
	}
	return matches, nil
}
