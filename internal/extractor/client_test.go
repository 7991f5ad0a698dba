package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func completionResponse(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestExtract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Authorization header, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, completionResponse(`{"type":"interview","company_name":"Acme Corp","position":"Backend Engineer","confidence":0.92}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 5*time.Second)

	extraction, err := client.Extract(context.Background(), "recruiting@acme.com", "Interview invite", "We would like to interview you.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if extraction.Category != "interview" {
		t.Errorf("expected category interview, got %s", extraction.Category)
	}
	if extraction.CompanyName != "Acme Corp" {
		t.Errorf("expected company Acme Corp, got %q", extraction.CompanyName)
	}
	if extraction.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", extraction.Confidence)
	}
}

func TestExtract_MarkdownFencedJSON(t *testing.T) {
	content := "Here is the result:\n```json\n{\"type\":\"offer\",\"company_name\":\"Initech\",\"confidence\":0.8}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionResponse(content))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "", 5*time.Second)

	extraction, err := client.Extract(context.Background(), "hr@initech.com", "Offer", "body")
	if err != nil {
		t.Fatalf("expected fenced JSON to parse, got %v", err)
	}
	if extraction.Category != "offer" {
		t.Errorf("expected category offer, got %s", extraction.Category)
	}
}

func TestExtract_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"type":"offer","confidence":1.7}`, 1},
		{`{"type":"offer","confidence":-0.3}`, 0},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, completionResponse(tt.raw))
		}))

		client := NewClient(server.URL, "k", "", 5*time.Second)
		extraction, err := client.Extract(context.Background(), "a@b.com", "s", "b")
		server.Close()

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if extraction.Confidence != tt.want {
			t.Errorf("expected confidence clamped to %f, got %f", tt.want, extraction.Confidence)
		}
	}
}

func TestExtract_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "", 5*time.Second)

	_, err := client.Extract(context.Background(), "a@b.com", "s", "b")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtract_NoJSONInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionResponse("I could not determine anything useful."))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "", 5*time.Second)

	_, err := client.Extract(context.Background(), "a@b.com", "s", "b")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtract_BreakerOpensAfterFailures(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "", 5*time.Second)

	for i := 0; i < 10; i++ {
		_, err := client.Extract(context.Background(), "a@b.com", "s", "b")
		if !errors.Is(err, ErrExtractionFailed) {
			t.Fatalf("expected ErrExtractionFailed, got %v", err)
		}
	}

	// After 5 consecutive failures the breaker opens and stops hitting the
	// endpoint.
	if requests >= 10 {
		t.Errorf("expected circuit breaker to stop requests, server saw %d", requests)
	}
}

func TestExtract_ModelIncludedInRequest(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if m, ok := body["model"].(string); ok {
			gotModel = m
		}
		fmt.Fprint(w, completionResponse(`{"type":"other","confidence":0.5}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "my-model", 5*time.Second)
	if _, err := client.Extract(context.Background(), "a@b.com", "s", "b"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotModel != "my-model" {
		t.Errorf("expected model my-model in request, got %q", gotModel)
	}
}

func TestBuildPrompt_TruncatesBody(t *testing.T) {
	client := NewClient("http://example.com", "k", "", time.Second)

	longBody := strings.Repeat("a", maxBodyChars+500)
	prompt := client.buildPrompt("a@b.com", "subject", longBody)

	if strings.Contains(prompt, strings.Repeat("a", maxBodyChars+1)) {
		t.Error("expected body to be truncated in prompt")
	}
	if !strings.Contains(prompt, "subject") {
		t.Error("expected subject in prompt")
	}
}

func TestBuildPrompt_TruncatesAtRuneBoundary(t *testing.T) {
	client := NewClient("http://example.com", "k", "", time.Second)

	// A 3-byte rune straddling the truncation point must be dropped whole.
	body := strings.Repeat("a", maxBodyChars-1) + "日本語"
	prompt := client.buildPrompt("a@b.com", "subject", body)

	if !utf8.ValidString(prompt) {
		t.Error("expected truncated prompt to remain valid UTF-8")
	}
	if strings.ContainsRune(prompt, '�') {
		t.Error("expected no replacement characters in truncated prompt")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{
			name:    "bare object",
			content: `{"type":"offer"}`,
			want:    `{"type":"offer"}`,
			ok:      true,
		},
		{
			name:    "surrounded by prose",
			content: "Sure! Here you go: {\"type\":\"offer\"} Hope that helps.",
			want:    `{"type":"offer"}`,
			ok:      true,
		},
		{
			name:    "markdown fence",
			content: "```json\n{\"type\":\"offer\"}\n```",
			want:    `{"type":"offer"}`,
			ok:      true,
		},
		{
			name:    "nested object",
			content: `{"a":{"b":1},"c":2}`,
			want:    `{"a":{"b":1},"c":2}`,
			ok:      true,
		},
		{
			name:    "brace inside string",
			content: `{"note":"use { carefully"}`,
			want:    `{"note":"use { carefully"}`,
			ok:      true,
		},
		{
			name:    "escaped quote inside string",
			content: `{"note":"she said \"hi\""}`,
			want:    `{"note":"she said \"hi\""}`,
			ok:      true,
		},
		{
			name:    "no object",
			content: "nothing here",
			ok:      false,
		},
		{
			name:    "unbalanced",
			content: `{"a":`,
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.content)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
