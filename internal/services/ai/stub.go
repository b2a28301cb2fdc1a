package ai

import (
	"context"
	"fmt"
	"strings"
)

// StubAssistant answers locally without calling a provider. Used when
// AI_STUB is set, so the rest of the app can be exercised offline.
type StubAssistant struct{}

func NewStubAssistant() *StubAssistant {
	return &StubAssistant{}
}

func (s *StubAssistant) Ask(ctx context.Context, req AskRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", ErrInvalidInput
	}
	return fmt.Sprintf(
		"Here is a quick take on %q: pick shoulder season for better rates, book intercity transit about six weeks out, and keep one unplanned day per destination. Ask me for a day-by-day itinerary when your dates are fixed.",
		question,
	), nil
}
