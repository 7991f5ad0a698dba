package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
)

// DefaultEndpoint is an OpenAI-compatible chat completions URL.
const DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// maxBodyChars bounds the prompt size; long emails carry their signal early.
const maxBodyChars = 2000

// ErrExtractionFailed is returned for every extractor failure mode: HTTP
// errors, timeouts, an open circuit breaker, or a response with no parseable
// JSON object. Callers degrade to the pattern classifier result.
var ErrExtractionFailed = errors.New("ai extraction failed")

// Extraction is the structured field set the model is asked to return.
type Extraction struct {
	Category     string  `json:"type"`
	CompanyName  string  `json:"company_name"`
	Position     string  `json:"position"`
	Stack        string  `json:"stack"`
	WhereApplied string  `json:"where_applied"`
	AppliedDate  string  `json:"applied_date"`
	ContactEmail string  `json:"email"`
	ContactPhone string  `json:"phone_number"`
	SalaryRange  string  `json:"salary_range"`
	Confidence   float64 `json:"confidence"`
}

// Client calls an external completion model to classify emails the pattern
// stage could not. The response is untrusted text; a circuit breaker guards
// the endpoint so a flapping model does not stall whole sync batches.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a Client. model may be empty to use the provider default.
// timeout applies per call.
func NewClient(endpoint, apiKey, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ai-extractor",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Extract sends one email to the model and parses the structured result.
// Numeric confidence is clamped to [0,1].
func (c *Client) Extract(ctx context.Context, sender, subject, body string) (*Extraction, error) {
	content, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, c.buildPrompt(sender, subject, body))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	raw, ok := extractJSONObject(content.(string))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrExtractionFailed)
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if extraction.Confidence < 0 {
		extraction.Confidence = 0
	} else if extraction.Confidence > 1 {
		extraction.Confidence = 1
	}

	return &extraction, nil
}

// complete performs the raw completion call and returns the model's text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.1,
		"max_tokens":  500,
	}
	if c.model != "" {
		reqBody["model"] = c.model
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return apiResp.Choices[0].Message.Content, nil
}

const systemPrompt = `You are an expert at analyzing job search emails.
Extract structured data from emails including the email type, company name,
position title, contact details, salary range and where the user applied.
Include a confidence score (0.0-1.0) based on how certain you are about the
classification. Always return valid JSON. Be precise and accurate.`

func (c *Client) buildPrompt(sender, subject, body string) string {
	if len(body) > maxBodyChars {
		cut := maxBodyChars
		// Back off to a rune boundary so the cut never splits a UTF-8
		// sequence.
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	return fmt.Sprintf(`Analyze this job search email and extract structured data.

Subject: %s
From: %s
Body: %s

Classify and extract JSON:
{
    "type": "application|interview|offer|rejection|assessment|other",
    "company_name": "...",
    "position": "...",
    "stack": "...",
    "where_applied": "...",
    "applied_date": "YYYY-MM-DD or empty",
    "email": "...",
    "phone_number": "...",
    "salary_range": "...",
    "confidence": 0.0
}

Use empty strings for fields not present in the email.
Return only valid JSON, no additional text.`, subject, sender, body)
}

// extractJSONObject locates the first brace-matched, syntactically valid JSON
// object substring in content, tolerating markdown fences and surrounding
// prose. Braces inside JSON strings are accounted for.
func extractJSONObject(content string) (string, bool) {
	for start := 0; start < len(content); start++ {
		if content[start] != '{' {
			continue
		}

		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(content); i++ {
			ch := content[i]
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = inString
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						candidate := content[start : i+1]
						if json.Valid([]byte(candidate)) {
							return candidate, true
						}
						i = len(content) // abandon this start position
					}
				}
			}
		}
	}
	return "", false
}
