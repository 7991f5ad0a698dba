// Package detect reconciles the pattern classifier and AI extractor outputs
// into one canonical detection, applying field-level precedence rules.
package detect

import (
	"github.com/jobtrail/jobtrail-worker/internal/classifier"
	"github.com/jobtrail/jobtrail-worker/internal/extractor"
)

// Detection is the merged, canonical result for one message.
type Detection struct {
	Category     classifier.Category
	Confidence   float64
	CompanyName  string
	Position     string
	Stack        string
	WhereApplied string
	AppliedDate  string
	ContactEmail string
	ContactPhone string
	SalaryRange  string
}

// Merge combines the two tiers. ai is nil when the extractor was skipped or
// failed. Precedence: an AI field wins when the extractor ran and succeeded
// (it saw more context); otherwise the classifier's partial fields are used;
// fields absent from both stay empty. Final confidence is the AI confidence
// when the extractor succeeded, else the heuristic confidence, else 0.
func Merge(pattern classifier.Result, ai *extractor.Extraction) Detection {
	merged := Detection{
		Category:     pattern.Category,
		Confidence:   pattern.Confidence,
		CompanyName:  pattern.Fields.CompanyName,
		Position:     pattern.Fields.Position,
		WhereApplied: pattern.Fields.WhereApplied,
	}

	if ai != nil {
		merged.Confidence = ai.Confidence
		if cat := normalizeCategory(ai.Category); cat != "" {
			merged.Category = cat
		}
		merged.CompanyName = firstNonEmpty(ai.CompanyName, merged.CompanyName)
		merged.Position = firstNonEmpty(ai.Position, merged.Position)
		merged.Stack = firstNonEmpty(ai.Stack, merged.Stack)
		merged.WhereApplied = firstNonEmpty(ai.WhereApplied, merged.WhereApplied)
		merged.AppliedDate = firstNonEmpty(ai.AppliedDate, merged.AppliedDate)
		merged.ContactEmail = firstNonEmpty(ai.ContactEmail, merged.ContactEmail)
		merged.ContactPhone = firstNonEmpty(ai.ContactPhone, merged.ContactPhone)
		merged.SalaryRange = firstNonEmpty(ai.SalaryRange, merged.SalaryRange)
	}

	// Nothing resolved anywhere: the message carries no job signal.
	if merged.Category == classifier.CategoryUnknown {
		merged.Category = classifier.CategoryNotJobRelated
		merged.Confidence = 0
	}

	return merged
}

// normalizeCategory maps model output onto the canonical category set. The
// model sometimes answers "application_confirmation" for a confirmation
// email; anything outside the known set means no usable category.
func normalizeCategory(raw string) classifier.Category {
	switch raw {
	case "application", "application_confirmation":
		return classifier.CategoryApplication
	case "interview", "interview_request":
		return classifier.CategoryInterview
	case "offer":
		return classifier.CategoryOffer
	case "rejection":
		return classifier.CategoryRejection
	case "assessment":
		return classifier.CategoryAssessment
	case "other", "not_job_related":
		return classifier.CategoryNotJobRelated
	}
	return ""
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
