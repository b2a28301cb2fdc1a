package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Dismissed notifications older than this are swept by the background
// cleanup.
const notificationRetention = 90 * 24 * time.Hour

type NotificationServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error)
	Dismiss(ctx context.Context, userID, notificationID uuid.UUID) error
	DismissAll(ctx context.Context, userID uuid.UUID) error
	UndismissedCount(ctx context.Context, userID uuid.UUID) (int, error)
	NotifyTripMatch(ctx context.Context, userID, friendID, destinationID uuid.UUID) error
	NotifyGroupAdded(ctx context.Context, userID, actorID, conversationID uuid.UUID) error
}

type NotificationListParams struct {
	Limit           int
	Before          *time.Time
	UndismissedOnly bool
}

type NotificationService struct {
	db DB
}

func NewNotificationService(db DB) *NotificationService {
	return &NotificationService{db: db}
}

const notificationSelect = `
	SELECT n.id, n.user_id, n.type, n.actor_user_id, actor.name,
	       n.destination_id, d.name, n.conversation_id, c.name,
	       n.dismissed_at, n.created_at
	FROM notifications n
	LEFT JOIN users actor ON actor.id = n.actor_user_id
	LEFT JOIN destinations d ON d.id = n.destination_id
	LEFT JOIN conversations c ON c.id = n.conversation_id`

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := notificationSelect + `
	WHERE n.user_id = $1`
	args := []any{userID}

	if params.UndismissedOnly {
		query += ` AND n.dismissed_at IS NULL`
	}
	if params.Before != nil {
		args = append(args, *params.Before)
		query += fmt.Sprintf(` AND n.created_at < $%d`, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY n.created_at DESC, n.id LIMIT $%d`, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.ActorUserID, &n.ActorName,
			&n.DestinationID, &n.DestinationName, &n.ConversationID, &n.GroupName,
			&n.DismissedAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) Dismiss(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications
		 SET dismissed_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND dismissed_at IS NULL`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("dismissing notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) DismissAll(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE notifications
		 SET dismissed_at = NOW()
		 WHERE user_id = $1 AND dismissed_at IS NULL`,
		userID,
	); err != nil {
		return fmt.Errorf("dismissing notifications: %w", err)
	}
	return nil
}

func (s *NotificationService) UndismissedCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND dismissed_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// NotifyTripMatch records a match alert for one side of a matched pair.
func (s *NotificationService) NotifyTripMatch(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO notifications (user_id, type, actor_user_id, destination_id)
		 VALUES ($1, $2, $3, $4)`,
		userID, models.NotificationTypeTripMatch, friendID, destinationID,
	); err != nil {
		return fmt.Errorf("creating trip match notification: %w", err)
	}
	return nil
}

// NotifyGroupAdded alerts a user that actorID put them in a group chat.
func (s *NotificationService) NotifyGroupAdded(ctx context.Context, userID, actorID, conversationID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO notifications (user_id, type, actor_user_id, conversation_id)
		 VALUES ($1, $2, $3, $4)`,
		userID, models.NotificationTypeGroupAdded, actorID, conversationID,
	); err != nil {
		return fmt.Errorf("creating group added notification: %w", err)
	}
	return nil
}

// CleanupOld deletes dismissed notifications past the retention window and
// returns the number removed. Undismissed notifications are kept
// indefinitely.
func (s *NotificationService) CleanupOld(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM notifications
		 WHERE dismissed_at IS NOT NULL AND dismissed_at < NOW() - $1::interval`,
		fmt.Sprintf("%d hours", int(notificationRetention.Hours())),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
