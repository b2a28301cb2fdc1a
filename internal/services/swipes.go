package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrDestinationNotFound = errors.New("destination not found")
	ErrInvalidDirection    = errors.New("invalid swipe direction")
)

const destinationColumns = `id, slug, name, description, image_url, tags, rating, price, duration, position`

type SwipeService struct {
	db DB
}

func NewSwipeService(db DB) *SwipeService {
	return &SwipeService{db: db}
}

func (s *SwipeService) ListDestinations(ctx context.Context) ([]models.Destination, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+destinationColumns+` FROM destinations ORDER BY position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()
	return scanDestinations(rows)
}

func (s *SwipeService) GetDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	d := &models.Destination{}
	err := s.db.QueryRow(ctx,
		`SELECT `+destinationColumns+` FROM destinations WHERE id = $1`,
		id,
	).Scan(scanDestinationDest(d)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDestinationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting destination: %w", err)
	}
	return d, nil
}

// SaveSwipe records a verdict on a destination, replacing any earlier
// verdict for the same destination.
func (s *SwipeService) SaveSwipe(ctx context.Context, userID, destinationID uuid.UUID, direction models.SwipeDirection) (*models.Swipe, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM destinations WHERE id = $1)",
		destinationID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking destination: %w", err)
	}
	if !exists {
		return nil, ErrDestinationNotFound
	}

	swipe := &models.Swipe{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO swipes (user_id, destination_id, direction)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, destination_id)
		 DO UPDATE SET direction = EXCLUDED.direction, updated_at = NOW()
		 RETURNING user_id, destination_id, direction, created_at, updated_at`,
		userID, destinationID, direction,
	).Scan(&swipe.UserID, &swipe.DestinationID, &swipe.Direction, &swipe.CreatedAt, &swipe.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving swipe: %w", err)
	}
	return swipe, nil
}

// RemoveSwipe clears a verdict so the destination re-enters the queue.
// Removing an absent swipe is a no-op.
func (s *SwipeService) RemoveSwipe(ctx context.Context, userID, destinationID uuid.UUID) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM swipes WHERE user_id = $1 AND destination_id = $2`,
		userID, destinationID,
	); err != nil {
		return fmt.Errorf("removing swipe: %w", err)
	}
	return nil
}

func (s *SwipeService) ListSwipes(ctx context.Context, userID uuid.UUID) ([]models.Swipe, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, destination_id, direction, created_at, updated_at
		 FROM swipes WHERE user_id = $1
		 ORDER BY updated_at DESC, destination_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing swipes: %w", err)
	}
	defer rows.Close()

	swipes := []models.Swipe{}
	for rows.Next() {
		var sw models.Swipe
		if err := rows.Scan(&sw.UserID, &sw.DestinationID, &sw.Direction, &sw.CreatedAt, &sw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning swipe: %w", err)
		}
		swipes = append(swipes, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading swipes: %w", err)
	}
	return swipes, nil
}

// Queue recomputes the deck for a user from scratch. The pointer lands on
// the first destination, in curated order, without any verdict. When every
// destination has a verdict, the earliest left-swiped destination is
// recycled so the deck never runs dry while passes remain.
func (s *SwipeService) Queue(ctx context.Context, userID uuid.UUID) (*models.SwipeQueue, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.slug, d.name, d.description, d.image_url, d.tags, d.rating, d.price, d.duration, d.position,
		        s.direction
		 FROM destinations d
		 LEFT JOIN swipes s ON s.destination_id = d.id AND s.user_id = $1
		 ORDER BY d.position, d.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading queue: %w", err)
	}
	defer rows.Close()

	type deckEntry struct {
		dest      models.Destination
		direction *models.SwipeDirection
	}
	deck := []deckEntry{}
	for rows.Next() {
		var e deckEntry
		dests := scanDestinationDest(&e.dest)
		dests = append(dests, &e.direction)
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scanning queue row: %w", err)
		}
		deck = append(deck, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	queue := &models.SwipeQueue{Total: len(deck)}
	for i, e := range deck {
		if e.direction == nil {
			dest := e.dest
			queue.Next = &dest
			queue.Index = i
			return queue, nil
		}
	}
	for i, e := range deck {
		if e.direction != nil && *e.direction == models.SwipeLeft {
			dest := e.dest
			queue.Next = &dest
			queue.Index = i
			queue.Recycled = true
			return queue, nil
		}
	}

	queue.Index = len(deck)
	return queue, nil
}

// FriendRightSwipes lists destinations a friend has right-swiped, for the
// shared wishlist view. Callers must verify friendship first.
func (s *SwipeService) FriendRightSwipes(ctx context.Context, friendID uuid.UUID) ([]models.Destination, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.slug, d.name, d.description, d.image_url, d.tags, d.rating, d.price, d.duration, d.position
		 FROM swipes s
		 JOIN destinations d ON d.id = s.destination_id
		 WHERE s.user_id = $1 AND s.direction = 'right'
		 ORDER BY s.updated_at DESC, d.id`,
		friendID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend right swipes: %w", err)
	}
	defer rows.Close()
	return scanDestinations(rows)
}

func scanDestinations(rows Rows) ([]models.Destination, error) {
	destinations := []models.Destination{}
	for rows.Next() {
		var d models.Destination
		if err := rows.Scan(scanDestinationDest(&d)...); err != nil {
			return nil, fmt.Errorf("scanning destination: %w", err)
		}
		destinations = append(destinations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading destinations: %w", err)
	}
	return destinations, nil
}

func scanDestinationDest(d *models.Destination) []any {
	return []any{&d.ID, &d.Slug, &d.Name, &d.Description, &d.ImageURL, &d.Tags, &d.Rating, &d.Price, &d.Duration, &d.Position}
}
