package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/wanderlyst/tripmatch/internal/config"
	"github.com/wanderlyst/tripmatch/internal/logging"
)

type EmailServiceInterface interface {
	SendNotificationEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// EmailService delivers through resend, or logs to stdout when the
// provider is "console" (local development).
type EmailService struct {
	cfg    *config.EmailConfig
	client *resend.Client
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	if cfg.Provider == "resend" && cfg.ResendAPIKey != "" {
		s.client = resend.NewClient(cfg.ResendAPIKey)
	}
	return s
}

func (s *EmailService) SendNotificationEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.client == nil {
		logging.Info("email (console)", map[string]interface{}{
			"to":      to,
			"subject": subject,
			"text":    textBody,
		})
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		To:      []string{to},
		Subject: sanitizeSubject(subject),
		Html:    htmlBody,
		Text:    textBody,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

type friendEmailParams struct {
	RecipientName string
	ActorName     string
	BaseURL       string
}

func buildFriendRequestEmail(params friendEmailParams) (string, string, string) {
	subject := fmt.Sprintf("%s wants to travel with you", params.ActorName)
	friendsURL := fmt.Sprintf("%s/#friends", params.BaseURL)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">TripMatch</h1>
  <p style="font-size: 16px;">Hi %s,</p>
  <p style="font-size: 16px;"><strong>%s</strong> sent you a friend request.</p>
  <p>
    <a href="%s" style="display: inline-block; background: #2563eb; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">View request</a>
  </p>
  <p style="color: #999; font-size: 12px;">TripMatch - plan trips with friends</p>
</body>
</html>`,
		templateEscape(params.RecipientName),
		templateEscape(params.ActorName),
		templateEscape(friendsURL),
	)

	text := fmt.Sprintf(`Hi %s,

%s sent you a friend request.

View request: %s

--
TripMatch`,
		params.RecipientName,
		params.ActorName,
		friendsURL,
	)

	return subject, htmlBody, text
}

func buildFriendAcceptedEmail(params friendEmailParams) (string, string, string) {
	subject := fmt.Sprintf("%s accepted your friend request", params.ActorName)
	swipeURL := fmt.Sprintf("%s/#swipe", params.BaseURL)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">TripMatch</h1>
  <p style="font-size: 16px;">Hi %s,</p>
  <p style="font-size: 16px;"><strong>%s</strong> accepted your friend request. Start swiping destinations to find a trip you both want.</p>
  <p>
    <a href="%s" style="display: inline-block; background: #2563eb; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">Start swiping</a>
  </p>
  <p style="color: #999; font-size: 12px;">TripMatch - plan trips with friends</p>
</body>
</html>`,
		templateEscape(params.RecipientName),
		templateEscape(params.ActorName),
		templateEscape(swipeURL),
	)

	text := fmt.Sprintf(`Hi %s,

%s accepted your friend request. Start swiping destinations to find a trip you both want.

Start swiping: %s

--
TripMatch`,
		params.RecipientName,
		params.ActorName,
		swipeURL,
	)

	return subject, htmlBody, text
}

func templateEscape(s string) string {
	return html.EscapeString(s)
}

func sanitizeSubject(subject string) string {
	cleaned := strings.ReplaceAll(subject, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 120 {
		cleaned = cleaned[:117] + "..."
	}
	return cleaned
}
