package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewGeminiClient(GeminiConfig{
		APIKey:          "test-key",
		Model:           "gemini-2.5-flash",
		Temperature:     0.8,
		MaxOutputTokens: 4096,
		Endpoint:        server.URL,
	})
	return client, server
}

func candidateResponse(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + mustJSON(text) + `}]},"finishReason":"STOP"}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestAsk_BuildsPromptWithContextBlocks(t *testing.T) {
	var captured geminiRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Fatal("missing api key")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(candidateResponse("Go in late March.")))
	})

	answer, err := client.Ask(context.Background(), AskRequest{
		Question: "best month for Japan?",
		ChatHistory: []ChatMessage{
			{Name: "Sarah", Text: "thinking Tokyo or Kyoto"},
		},
		NotepadEntries: []NotepadEntry{
			{Title: "Budget", Content: "Keep it under $2k each"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Go in late March." {
		t.Fatalf("unexpected answer: %q", answer)
	}

	if captured.SystemInstruction == nil || !strings.Contains(captured.SystemInstruction.Parts[0].Text, "Lead Travel Planning Specialist") {
		t.Fatal("expected travel persona system instruction")
	}
	prompt := captured.Contents[0].Parts[0].Text
	notesIdx := strings.Index(prompt, "[Budget]: Keep it under $2k each")
	historyIdx := strings.Index(prompt, "Sarah: thinking Tokyo or Kyoto")
	questionIdx := strings.Index(prompt, "Now answer this question from the user: best month for Japan?")
	if notesIdx < 0 || historyIdx < 0 || questionIdx < 0 {
		t.Fatalf("prompt missing blocks:\n%s", prompt)
	}
	if !(notesIdx < historyIdx && historyIdx < questionIdx) {
		t.Fatalf("prompt blocks out of order:\n%s", prompt)
	}
	if captured.GenerationConfig.Temperature != 0.8 || captured.GenerationConfig.MaxOutputTokens != 4096 {
		t.Fatalf("unexpected generation config: %+v", captured.GenerationConfig)
	}
}

func TestAsk_OmitsEmptyContextBlocks(t *testing.T) {
	var captured geminiRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(candidateResponse("ok")))
	})

	if _, err := client.Ask(context.Background(), AskRequest{Question: "where to?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := captured.Contents[0].Parts[0].Text
	if strings.Contains(prompt, "Trip Notepad") || strings.Contains(prompt, "group chat conversation") {
		t.Fatalf("expected bare question prompt, got:\n%s", prompt)
	}
	if prompt != "Now answer this question from the user: where to?" {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{APIKey: "k", Model: "m"})

	if _, err := client.Ask(context.Background(), AskRequest{Question: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAsk_MissingAPIKey(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{Model: "m"})

	if _, err := client.Ask(context.Background(), AskRequest{Question: "where to?"}); !errors.Is(err, ErrAINotConfigured) {
		t.Fatalf("expected ErrAINotConfigured, got %v", err)
	}
}

func TestAsk_MapsProviderStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimitExceeded},
		{"server error", http.StatusBadGateway, ErrAIProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			if _, err := client.Ask(context.Background(), AskRequest{Question: "q"}); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAsk_SafetyBlock(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	if _, err := client.Ask(context.Background(), AskRequest{Question: "q"}); !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("expected ErrSafetyViolation, got %v", err)
	}
}

func TestStubAssistant_AnswersOffline(t *testing.T) {
	stub := NewStubAssistant()

	answer, err := stub.Ask(context.Background(), AskRequest{Question: "weekend in Porto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "weekend in Porto") {
		t.Fatalf("expected echo of question, got %q", answer)
	}
}
