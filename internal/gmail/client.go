package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jobtrail/jobtrail-worker/internal/service"
)

// initialSyncWindow is how far back the first sync of an account reaches
// when there is no checkpoint yet.
const initialSyncWindow = 365 * 24 * time.Hour

// Client implements service.MailSource against the Gmail API. The checkpoint
// is the RFC3339 received time of the newest message in the last completed
// batch; fetching with the same checkpoint is an idempotent read.
type Client struct {
	clientID     string
	clientSecret string
	log          zerolog.Logger
}

func NewClient(clientID, clientSecret string, log zerolog.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          log,
	}
}

// FetchMessages fetches up to maxCount inbox messages received after the
// checkpoint, oldest-first so a resumed sync makes forward progress.
func (c *Client) FetchMessages(ctx context.Context, accessToken, sinceCheckpoint string, maxCount int) (*service.FetchResult, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	since := checkpointTime(sinceCheckpoint)
	query := fmt.Sprintf("in:inbox -in:spam after:%s", since.Format("2006/01/02"))

	// List pages newest-first, so a single page would hold the newest head of
	// the window and advancing the checkpoint past it would strand everything
	// older. Page through the whole window (ids only) and keep the oldest
	// maxCount; anything dropped is newer than the resulting checkpoint and
	// stays fetchable on the next run.
	var ids []string
	pageToken := ""
	for {
		listCall := svc.Users.Messages.List("me").Q(query).MaxResults(int64(maxCount))
		if pageToken != "" {
			listCall = listCall.PageToken(pageToken)
		}
		listResp, err := listCall.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, msg := range listResp.Messages {
			ids = append(ids, msg.Id)
		}
		if listResp.NextPageToken == "" {
			break
		}
		pageToken = listResp.NextPageToken
	}
	ids = oldestIDs(ids, maxCount)

	c.log.Debug().Int("count", len(ids)).Str("query", query).Msg("gmail list returned")

	messages := make([]service.RawMessage, 0, len(ids))
	for _, id := range ids {
		fullMsg, err := svc.Users.Messages.Get("me", id).Format("full").Do()
		if err != nil {
			c.log.Warn().Str("message_id", id).Err(err).Msg("failed to get message, skipping")
			continue
		}

		raw := c.parseMessage(fullMsg)

		// The after: query is date-granular; drop anything at or before the
		// exact checkpoint instant.
		if !raw.ReceivedAt.After(since) {
			continue
		}
		messages = append(messages, raw)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})

	result := &service.FetchResult{Messages: messages}
	if len(messages) > 0 {
		result.NextCheckpoint = messages[len(messages)-1].ReceivedAt.UTC().Format(time.RFC3339Nano)
	}
	return result, nil
}

// oldestIDs keeps the last max entries of a newest-first id listing, which
// are the oldest messages in the window.
func oldestIDs(ids []string, max int) []string {
	if len(ids) <= max {
		return ids
	}
	return ids[len(ids)-max:]
}

// checkpointTime decodes the opaque checkpoint, falling back to the initial
// sync window when it is missing or unreadable.
func checkpointTime(checkpoint string) time.Time {
	if checkpoint != "" {
		if t, err := time.Parse(time.RFC3339Nano, checkpoint); err == nil {
			return t
		}
	}
	return time.Now().Add(-initialSyncWindow)
}

// parseMessage converts a Gmail API message into a RawMessage.
func (c *Client) parseMessage(msg *gmail.Message) service.RawMessage {
	raw := service.RawMessage{ID: msg.Id}

	if msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			raw.Subject = header.Value
		case "From":
			raw.From = extractAddress(header.Value)
		case "Date":
			if raw.ReceivedAt.IsZero() {
				if t, err := parseEmailDate(header.Value); err == nil {
					raw.ReceivedAt = t
				}
			}
		}
	}

	raw.BodyText, raw.BodyHTML = extractBodies(msg.Payload)
	return raw
}

// extractAddress pulls the bare address out of `Name <addr@domain>`.
func extractAddress(from string) string {
	if start := strings.Index(from, "<"); start != -1 {
		if end := strings.Index(from[start:], ">"); end != -1 {
			return from[start+1 : start+end]
		}
	}
	return from
}

// extractBodies extracts both text and HTML bodies from the payload,
// including nested multipart messages.
func extractBodies(payload *gmail.MessagePart) (string, string) {
	var textPlain, textHTML string

	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			switch payload.MimeType {
			case "text/plain":
				textPlain = string(decoded)
			case "text/html":
				textHTML = string(decoded)
			}
		}
	}

	extractBodiesFromParts(payload.Parts, &textPlain, &textHTML)
	return textPlain, textHTML
}

func extractBodiesFromParts(parts []*gmail.MessagePart, textPlain, textHTML *string) {
	for _, part := range parts {
		if part.Body != nil && part.Body.Data != "" {
			if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
				if part.MimeType == "text/plain" && *textPlain == "" {
					*textPlain = string(decoded)
				} else if part.MimeType == "text/html" && *textHTML == "" {
					*textHTML = string(decoded)
				}
			}
		}
		if len(part.Parts) > 0 {
			extractBodiesFromParts(part.Parts, textPlain, textHTML)
		}
	}
}

// RefreshAccessToken refreshes the OAuth2 access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*service.TokenRefreshResult, error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	tokenSource := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	result := &service.TokenRefreshResult{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}

	// The provider occasionally rotates the refresh token.
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		result.RefreshToken = newToken.RefreshToken
	} else {
		result.RefreshToken = refreshToken
	}

	c.log.Debug().Time("expires_at", result.ExpiresAt).Msg("token refreshed")
	return result, nil
}

// parseEmailDate parses the common email Date header formats.
func parseEmailDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC3339,
	}

	dateStr = strings.TrimSpace(dateStr)

	// Drop a trailing timezone name in parentheses, e.g. "(UTC)".
	if idx := strings.Index(dateStr, " ("); idx != -1 {
		dateStr = dateStr[:idx]
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
