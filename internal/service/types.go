package service

import (
	"context"
	"errors"
	"time"

	"github.com/jobtrail/jobtrail-worker/internal/extractor"
	"github.com/jobtrail/jobtrail-worker/internal/models"
)

// Pipeline error taxonomy. Only these cross the component boundary;
// per-message classification and extraction issues are absorbed internally
// and expressed through the persisted confidence score.
var (
	// ErrFetchFailed wraps a transient mail-source failure. The batch is
	// aborted before any write and the checkpoint is untouched, so the
	// account is safely resumable.
	ErrFetchFailed = errors.New("mail fetch failed")

	// ErrInvalidState is returned by review actions on a non-pending
	// detection.
	ErrInvalidState = errors.New("detection is not pending")

	// ErrApplicationNotFound is returned when a merge target does not exist
	// or is not owned by the requesting user.
	ErrApplicationNotFound = errors.New("application not found")
)

// RawMessage is a message as delivered by the mail source. It is transient:
// the pipeline consumes it and persists only derived fields, never the raw
// body.
type RawMessage struct {
	ID         string
	From       string
	Subject    string
	ReceivedAt time.Time
	BodyText   string
	BodyHTML   string
}

// FetchResult is one bounded, oldest-first batch of messages plus the
// checkpoint to record once the whole batch has been processed.
type FetchResult struct {
	Messages       []RawMessage
	NextCheckpoint string
}

// TokenRefreshResult carries refreshed OAuth credentials.
type TokenRefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// MailSource abstracts the mailbox provider. Fetching with the same
// checkpoint must be an idempotent read.
type MailSource interface {
	FetchMessages(ctx context.Context, accessToken, sinceCheckpoint string, maxCount int) (*FetchResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error)
}

// AccountStore is the persistence surface the sync orchestrator needs for
// mail accounts.
type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (*models.MailAccount, error)
	UpdateTokens(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateCheckpoint(ctx context.Context, accountID, checkpoint string, syncedAt time.Time) error
}

// DetectionStore is the persistence surface for detection candidates.
// Create must be conflict-safe on (account_id, email_message_id) and report
// whether a row was actually inserted.
type DetectionStore interface {
	Exists(ctx context.Context, accountID, messageID string) (bool, error)
	Create(ctx context.Context, detection *models.Detection) (bool, error)
}

// ApplicationFinder answers the one question the orchestrator asks about
// committed applications: does this user already track this company.
type ApplicationFinder interface {
	ExistsForCompany(ctx context.Context, userID, companyName string) (bool, error)
}

// Extractor is the AI tier. Implementations convert every failure to an
// error wrapping extractor.ErrExtractionFailed.
type Extractor interface {
	Extract(ctx context.Context, sender, subject, body string) (*extractor.Extraction, error)
}
