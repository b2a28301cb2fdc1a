package services

import (
	"context"
	"fmt"

	"github.com/wanderlyst/tripmatch/internal/logging"
)

type seedUser struct {
	Name      string
	Email     string
	AvatarURL string
	Bio       string
}

// Demo accounts inserted when SEED_DEMO_USERS is set. They are plain
// directory entries with no password, so nobody can log in as them.
var demoUsers = []seedUser{
	{
		Name:      "Sarah Chen",
		Email:     "sarah.chen@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=SarahChen&backgroundColor=b6e3f4",
		Bio:       "Beach lover and foodie. Always planning the next getaway!",
	},
	{
		Name:      "Marcus Johnson",
		Email:     "marcus.j@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=MarcusJ&backgroundColor=c0aede",
		Bio:       "Adventure seeker. Mountains over beaches any day.",
	},
	{
		Name:      "Emily Rivera",
		Email:     "emily.rivera@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=EmilyR&backgroundColor=ffd5dc",
		Bio:       "Culture enthusiast and history nerd. Love exploring old cities.",
	},
	{
		Name:      "Jake Thompson",
		Email:     "jake.t@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=JakeT&backgroundColor=d1f4d9",
		Bio:       "Budget traveler. Proving you can see the world without breaking the bank.",
	},
	{
		Name:      "Priya Patel",
		Email:     "priya.patel@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=PriyaP&backgroundColor=ffe4b5",
		Bio:       "Luxury travel lover. Life is too short for bad hotels.",
	},
	{
		Name:      "Alex Kim",
		Email:     "alex.kim@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=AlexK&backgroundColor=bde0fe",
		Bio:       "Photographer and solo traveler. Chasing golden hours worldwide.",
	},
	{
		Name:      "Jordan Williams",
		Email:     "jordan.w@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=JordanW&backgroundColor=e2cfea",
		Bio:       "Road trip fanatic. Give me a car and an open road.",
	},
	{
		Name:      "Mia Santos",
		Email:     "mia.santos@gmail.com",
		AvatarURL: "https://api.dicebear.com/9.x/adventurer/svg?seed=MiaS&backgroundColor=fbc4ab",
		Bio:       "Scuba diver and island hopper. Happiest underwater.",
	},
}

type SeedService struct {
	db DB
}

func NewSeedService(db DB) *SeedService {
	return &SeedService{db: db}
}

// EnsureAssistant provisions the assistant account on startup. It runs on
// every boot and is a no-op once the account exists.
func (s *SeedService) EnsureAssistant(ctx context.Context) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO users (email, password_hash, name, avatar_url, bio, is_assistant)
		 SELECT $1, NULL, $2, $3, $4, true
		 WHERE NOT EXISTS (SELECT 1 FROM users WHERE is_assistant = true)`,
		"gemini@google.com",
		"Gemini",
		"https://api.dicebear.com/9.x/bottts/svg?seed=gemini&backgroundColor=4285f4",
		"Your AI travel planning assistant.",
	)
	if err != nil {
		return fmt.Errorf("ensuring assistant account: %w", err)
	}
	if tag.RowsAffected() > 0 {
		logging.Info("assistant account provisioned", nil)
	}
	return nil
}

// SeedDemoUsers inserts the demo directory entries, skipping any email
// already present.
func (s *SeedService) SeedDemoUsers(ctx context.Context) error {
	inserted := 0
	for _, u := range demoUsers {
		tag, err := s.db.Exec(ctx,
			`INSERT INTO users (email, password_hash, name, avatar_url, bio)
			 SELECT $1, NULL, $2, $3, $4
			 WHERE NOT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`,
			u.Email, u.Name, u.AvatarURL, u.Bio,
		)
		if err != nil {
			return fmt.Errorf("seeding demo user %s: %w", u.Email, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if inserted > 0 {
		logging.Info("demo users seeded", map[string]interface{}{"count": inserted})
	}
	return nil
}
