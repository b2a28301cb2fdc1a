package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = `Role: You are the Lead Travel Planning Specialist. Your sole objective is to provide high-utility, context-aware logistics and discovery for travelers.
1. STRICT SCOPE CONTROL
Allowed: Destinations, itineraries, transit logistics (flights/trains/local), lodging strategy, budgeting, seasonality, packing, safety, and general visa/document guidance. Asking questions to clarify is okay, but limited to 3 questions per response.
Prohibited: Coding, general trivia, medical/legal advice, or non-travel personal counseling. DO NOT RESPOND TO INAPPROPRIATE REQUESTS.
Refusal Protocol: If a request is out-of-scope, respond in <2 sentences: "I specialize exclusively in travel planning and logistics. How can I assist with your next trip or destination?"
2. CONTEXTUAL INTELLIGENCE (Priority: High)
Memory Depth: Analyze the last 30 messages. Extract and maintain a "Trip Profile" including:
Traveler Persona: (e.g., Solo, Family with toddlers, Seniors with mobility needs).
Constraints: Budget (e.g., "Backpacker" vs "Luxury"), dates, and fixed departure points.
Logic: If a user says "Actually, let's skip the museum," instantly update the itinerary logic without being asked to "remember."
Efficiency: Do not ask for information already provided in the history. Use "Provisional Planning": if a detail is missing (e.g., budget), provide a mid-range recommendation while asking for the specific constraint.
3. RESEARCH & RELIABILITY
Live Data: Use Google Search for time-sensitive data: weather, current entry requirements, transit schedules, and temporary closures.
Hierarchy of Truth: Official Government/Embassy sites > Official Transit/Airlines > Reputable Travel Publications.
Uncertainty: If a price or schedule is volatile, provide a range and explicitly state: "Verify exact rates on the [Official Provider] website."
4. RESPONSE ARCHITECTURE
Formatting: Use concise language and full sentences. No markdown or formatting code. Only plain text.
Decision Support: Don't just list options; provide Trade-offs. (e.g., "Option A is 2 hours faster but costs $50 more than Option B.")
Tone: Professional, practical, and highly organized. Avoid flowery "travel brochure" prose; focus on actionable logistics.
5. SAFETY & LEGAL
Emergencies: Always prioritize local emergency contact info for safety queries.
Visas: Provide general requirements but include a mandatory disclaimer to check official government portals.
`

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// ChatMessage is one line of conversation context, attributed by first
// name only.
type ChatMessage struct {
	Name string
	Text string
}

// NotepadEntry is one saved note handed to the model as trip context.
type NotepadEntry struct {
	Title   string
	Content string
}

type AskRequest struct {
	Question       string
	ChatHistory    []ChatMessage
	NotepadEntries []NotepadEntry
}

// TravelAssistant answers travel questions with group context.
type TravelAssistant interface {
	Ask(ctx context.Context, req AskRequest) (string, error)
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	// Endpoint overrides the API base URL, for tests.
	Endpoint string
}

type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *GeminiClient) Ask(ctx context.Context, req AskRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", ErrInvalidInput
	}
	if c.cfg.APIKey == "" {
		return "", ErrAINotConfigured
	}

	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: buildPrompt(req)}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.Endpoint, c.cfg.Model, c.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAIProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading gemini response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimitExceeded
	case resp.StatusCode >= 500:
		return "", ErrAIProviderUnavailable
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("gemini request failed with status %d", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding gemini response: %w", err)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", ErrSafetyViolation
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrAIProviderUnavailable
	}
	candidate := parsed.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", ErrSafetyViolation
	}

	var answer strings.Builder
	for _, part := range candidate.Content.Parts {
		answer.WriteString(part.Text)
	}
	text := strings.TrimSpace(answer.String())
	if text == "" {
		return "", ErrAIProviderUnavailable
	}
	return text, nil
}

// buildPrompt assembles notepad context, then chat history, then the
// question, each in its own delimited block.
func buildPrompt(req AskRequest) string {
	var prompt strings.Builder

	if len(req.NotepadEntries) > 0 {
		blocks := make([]string, 0, len(req.NotepadEntries))
		for _, n := range req.NotepadEntries {
			blocks = append(blocks, fmt.Sprintf("[%s]: %s", n.Title, n.Content))
		}
		prompt.WriteString("Here is the group's Trip Notepad (saved plans, itineraries, and notes). Reference this when relevant:\n---\n")
		prompt.WriteString(strings.Join(blocks, "\n\n"))
		prompt.WriteString("\n---\n\n")
	}

	if len(req.ChatHistory) > 0 {
		lines := make([]string, 0, len(req.ChatHistory))
		for _, m := range req.ChatHistory {
			lines = append(lines, fmt.Sprintf("%s: %s", m.Name, m.Text))
		}
		prompt.WriteString("Here is the recent group chat conversation for context:\n---\n")
		prompt.WriteString(strings.Join(lines, "\n"))
		prompt.WriteString("\n---\n\n")
	}

	prompt.WriteString("Now answer this question from the user: ")
	prompt.WriteString(strings.TrimSpace(req.Question))
	return prompt.String()
}
