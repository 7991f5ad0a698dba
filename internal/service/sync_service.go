package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jobtrail/jobtrail-worker/internal/classifier"
	"github.com/jobtrail/jobtrail-worker/internal/detect"
	"github.com/jobtrail/jobtrail-worker/internal/extractor"
	"github.com/jobtrail/jobtrail-worker/internal/models"
	"github.com/jobtrail/jobtrail-worker/internal/normalizer"
)

const (
	// AIConfidenceThreshold: below this heuristic confidence the AI
	// extractor runs even when the rule stage resolved a category.
	AIConfidenceThreshold = 0.7

	// MinDetectionConfidence: merged results below this are not persisted.
	MinDetectionConfidence = 0.6

	// DefaultBatchSize bounds one sync batch.
	DefaultBatchSize = 50

	// DefaultAIConcurrency caps in-flight AI extractor calls per sync.
	DefaultAIConcurrency = 3
)

// Company-name values the model and the rule stage sometimes produce that
// are never real employers. A detection without a plausible company is noise
// in the review queue, so these are dropped.
var invalidCompanyNames = map[string]struct{}{
	"":                {},
	"unknown":         {},
	"unknown company": {},
	"n/a":             {},
	"none":            {},
	"congratulations": {},
	"thank you":       {},
	"thanks":          {},
	"hi":              {},
	"dear":            {},
	"hello":           {},
	"greetings":       {},
	"application":     {},
	"job":             {},
	"position":        {},
	"role":            {},
	"opportunity":     {},
	"company":         {},
	"employer":        {},
}

// SyncResult reports what one sync run did.
type SyncResult struct {
	Processed        int
	Created          int
	SkippedDuplicate int
}

// SyncService drives the end-to-end detection pipeline for one mail account:
// fetch a bounded batch since the checkpoint, run each message through
// normalizer -> classifier -> (conditionally) extractor -> merger,
// deduplicate, persist pending detections, then advance the checkpoint.
type SyncService struct {
	accounts     AccountStore
	detections   DetectionStore
	applications ApplicationFinder
	source       MailSource
	extractor    Extractor
	norm         *normalizer.Normalizer
	cls          *classifier.Classifier
	log          zerolog.Logger

	batchSize     int
	aiConcurrency int
}

// NewSyncService wires the pipeline. batchSize and aiConcurrency fall back to
// defaults when zero.
func NewSyncService(
	accounts AccountStore,
	detections DetectionStore,
	applications ApplicationFinder,
	source MailSource,
	ext Extractor,
	log zerolog.Logger,
	batchSize int,
	aiConcurrency int,
) *SyncService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if aiConcurrency <= 0 {
		aiConcurrency = DefaultAIConcurrency
	}
	return &SyncService{
		accounts:      accounts,
		detections:    detections,
		applications:  applications,
		source:        source,
		extractor:     ext,
		norm:          normalizer.New(),
		cls:           classifier.New(),
		log:           log,
		batchSize:     batchSize,
		aiConcurrency: aiConcurrency,
	}
}

// RunSync processes one batch for the account. Safe to invoke repeatedly: an
// aborted or repeated run re-processes the same range and the (account,
// message id) uniqueness makes already-persisted detections a no-op. The
// checkpoint advances only after the whole batch is accounted for.
func (s *SyncService) RunSync(ctx context.Context, accountID string) (*SyncResult, error) {
	log := s.log.With().Str("account_id", accountID).Logger()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.IsActive {
		log.Info().Msg("account is inactive, skipping sync")
		return &SyncResult{}, nil
	}

	accessToken := account.AccessToken
	if tokenExpired(account.TokenExpiresAt) {
		log.Info().Msg("access token expired, refreshing")
		accessToken, err = s.refreshToken(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
	}

	fetched, err := s.source.FetchMessages(ctx, accessToken, account.LastSyncCheckpoint, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	log.Info().Int("count", len(fetched.Messages)).Msg("fetched messages")

	type outcome struct {
		detection *models.Detection
		duplicate bool
	}
	outcomes := make([]outcome, len(fetched.Messages))

	// Normalizer and classifier are pure; the AI call is the only
	// network-bound step, so the limit caps in-flight extractor work.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.aiConcurrency)
	for i, msg := range fetched.Messages {
		i, msg := i, msg
		g.Go(func() error {
			dup, err := s.detections.Exists(gctx, account.ID, msg.ID)
			if err != nil {
				return fmt.Errorf("failed to check for duplicate: %w", err)
			}
			if dup {
				outcomes[i].duplicate = true
				return nil
			}
			outcomes[i].detection = s.processMessage(gctx, log, account, msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Storage failure mid-batch: abort with the checkpoint untouched.
		return nil, err
	}

	result := &SyncResult{Processed: len(fetched.Messages)}
	for _, o := range outcomes {
		if o.duplicate {
			result.SkippedDuplicate++
			continue
		}
		if o.detection == nil {
			continue
		}
		created, err := s.detections.Create(ctx, o.detection)
		if err != nil {
			return nil, fmt.Errorf("failed to persist detection: %w", err)
		}
		if created {
			result.Created++
		} else {
			// Lost an insert race with a concurrent run; same invariant.
			result.SkippedDuplicate++
		}
	}

	now := time.Now()
	if fetched.NextCheckpoint != "" {
		if err := s.accounts.UpdateCheckpoint(ctx, account.ID, fetched.NextCheckpoint, now); err != nil {
			return nil, fmt.Errorf("failed to advance checkpoint: %w", err)
		}
	} else if err := s.accounts.UpdateCheckpoint(ctx, account.ID, account.LastSyncCheckpoint, now); err != nil {
		return nil, fmt.Errorf("failed to record sync time: %w", err)
	}

	log.Info().
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("skipped_duplicate", result.SkippedDuplicate).
		Msg("sync completed")

	return result, nil
}

// processMessage runs the per-message pipeline and returns a pending
// detection, or nil when the message yields nothing worth reviewing. AI
// failures are absorbed here: the result degrades to the rule-stage guess.
func (s *SyncService) processMessage(ctx context.Context, log zerolog.Logger, account *models.MailAccount, msg RawMessage) *models.Detection {
	text := s.norm.Normalize(msg.BodyText, msg.BodyHTML)

	pattern := s.cls.Classify(msg.From, msg.Subject, text)

	var ai *extractor.Extraction
	if !pattern.Resolved || pattern.Confidence < AIConfidenceThreshold {
		ext, err := s.extractor.Extract(ctx, msg.From, msg.Subject, text)
		if err != nil {
			log.Debug().Str("message_id", msg.ID).Err(err).Msg("extraction failed, using pattern result")
		} else {
			ai = ext
		}
	}

	merged := detect.Merge(pattern, ai)

	if !classifier.JobRelated(merged.Category) {
		return nil
	}
	if merged.Confidence < MinDetectionConfidence {
		return nil
	}

	company := strings.TrimSpace(merged.CompanyName)
	if _, invalid := invalidCompanyNames[strings.ToLower(company)]; invalid || len(company) < 2 {
		return nil
	}

	// Rejections are only useful against an application the user already
	// tracks; a rejection from an unknown company is not actionable.
	if merged.Category == classifier.CategoryRejection {
		exists, err := s.applications.ExistsForCompany(ctx, account.UserID, company)
		if err != nil {
			log.Warn().Str("message_id", msg.ID).Err(err).Msg("application lookup failed, keeping rejection")
		} else if !exists {
			return nil
		}
	}

	appliedDate := parseAppliedDate(merged.AppliedDate, msg.ReceivedAt)

	return &models.Detection{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		EmailMessageID: msg.ID,
		Category:       string(merged.Category),
		CompanyName:    company,
		Position:       merged.Position,
		Stack:          merged.Stack,
		WhereApplied:   merged.WhereApplied,
		AppliedDate:    appliedDate,
		ContactEmail:   merged.ContactEmail,
		ContactPhone:   merged.ContactPhone,
		SalaryRange:    merged.SalaryRange,
		Confidence:     merged.Confidence,
		Status:         models.DetectionStatusPending,
		DetectedAt:     msg.ReceivedAt,
	}
}

// refreshToken refreshes the access token and persists the new credentials.
func (s *SyncService) refreshToken(ctx context.Context, account *models.MailAccount) (string, error) {
	if account.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token available")
	}

	result, err := s.source.RefreshAccessToken(ctx, account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.accounts.UpdateTokens(ctx, account.ID, result.AccessToken, result.RefreshToken, result.ExpiresAt); err != nil {
		return "", fmt.Errorf("failed to update tokens: %w", err)
	}

	return result.AccessToken, nil
}

// tokenExpired reports whether a recorded expiry is past or within 5
// minutes. With no recorded expiry the current token is used as-is; if it is
// in fact stale the fetch fails and the sync retries on the next pass.
func tokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return time.Now().Add(5 * time.Minute).After(*expiresAt)
}

// parseAppliedDate parses the extracted date, falling back to the message's
// received date.
func parseAppliedDate(extracted string, receivedAt time.Time) *time.Time {
	if extracted != "" {
		if t, err := time.Parse("2006-01-02", extracted); err == nil {
			return &t
		}
	}
	if receivedAt.IsZero() {
		return nil
	}
	day := receivedAt.Truncate(24 * time.Hour)
	return &day
}
