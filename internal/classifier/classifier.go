package classifier

import (
	"regexp"
	"strings"
)

// Category of a classified email message.
type Category string

const (
	CategoryApplication   Category = "application"
	CategoryInterview     Category = "interview"
	CategoryOffer         Category = "offer"
	CategoryRejection     Category = "rejection"
	CategoryAssessment    Category = "assessment"
	CategoryUnknown       Category = "unknown"
	CategoryNotJobRelated Category = "not_job_related"
)

// JobRelated reports whether a category should produce a detection.
func JobRelated(c Category) bool {
	switch c {
	case CategoryApplication, CategoryInterview, CategoryOffer, CategoryRejection, CategoryAssessment:
		return true
	}
	return false
}

// Fields holds the partial fields the rule stage can pre-extract when
// patterns are unambiguous. Missing values are empty strings.
type Fields struct {
	CompanyName  string
	Position     string
	WhereApplied string
}

// Result is the classifier output. Resolved=false means the rules were
// inconclusive (no lexical match, or conflicting signals from more than one
// category) and the AI extractor should run; Category/Confidence then carry
// the best guess to fall back on if the extractor also fails.
type Result struct {
	Resolved   bool
	Category   Category
	Confidence float64
	Fields     Fields
}

// ruleSet binds one category to its lexical signals and the heuristic
// confidence a match earns.
type ruleSet struct {
	category   Category
	confidence float64
	patterns   []*regexp.Regexp
}

// Classifier is the deterministic first tier: ordered regex rule sets over
// sender, subject and normalized body. No I/O, identical input always yields
// identical output, so it can run on every message without rate limits.
type Classifier struct {
	// Evaluated in order: rejection and offer signals are more specific and
	// more consequential than a generic application confirmation, so they
	// win when several categories match.
	rules []ruleSet

	companyPatterns  []*regexp.Regexp
	positionPatterns []*regexp.Regexp
	articleRegex     *regexp.Regexp
}

// Personal mailbox domains that never identify an employer.
var personalDomains = []string{"gmail", "outlook", "yahoo", "hotmail", "icloud", "aol"}

// Job board domains: platforms, not companies. Used both to suppress the
// domain-derived company guess and to fill the where_applied field.
var jobBoardDomains = []string{
	"indeed", "myworkday", "linkedin", "glassdoor", "ziprecruiter",
	"monster", "careerbuilder", "simplyhired", "snagajob", "dice",
	"naukri", "shine", "timesjobs", "naukrigulf", "jobstreet",
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// New creates a Classifier with all rule sets compiled.
func New() *Classifier {
	return &Classifier{
		rules: []ruleSet{
			{
				category:   CategoryRejection,
				confidence: 0.80,
				patterns: compileAll([]string{
					`we'?ve decided to move forward`,
					`unfortunately`,
					`we will not be moving forward`,
					`we have chosen to pursue`,
					`not moving forward`,
				}),
			},
			{
				category:   CategoryOffer,
				confidence: 0.85,
				patterns: compileAll([]string{
					`offer letter`,
					`pleased to (?:extend|offer)`,
					`compensation package`,
					`your (?:start date|starting salary)`,
				}),
			},
			{
				category:   CategoryInterview,
				confidence: 0.78,
				patterns: compileAll([]string{
					`interview`,
					`schedule a call`,
					`speak with you`,
					`availability for a (?:call|chat|conversation)`,
				}),
			},
			{
				category:   CategoryAssessment,
				confidence: 0.75,
				patterns: compileAll([]string{
					`assessment`,
					`take-home`,
					`coding challenge`,
					`technical evaluation`,
				}),
			},
			{
				category:   CategoryApplication,
				confidence: 0.85,
				patterns: compileAll([]string{
					`thank you for (?:your )?application`,
					`we received your application`,
					`application (?:has been )?submitted`,
					`thank you for applying`,
				}),
			},
		},
		companyPatterns: compileAll([]string{
			`(?im)(?:thank you for|thanks for) (?:applying to|your application to|applying for) ([A-Za-z][A-Za-z &]+?)(?:\.|,|$|\n)`,
			`(?im)your application (?:to|for) ([A-Za-z][A-Za-z &]+?)(?: (?:has been|was))`,
			`(?im)application (?:to|for) ([A-Za-z][A-Za-z &]+?)(?: (?:has been|was) received)`,
			`(?im)([A-Za-z][A-Za-z &]+?) (?:has|have) received your application`,
			`(?im)([A-Za-z][A-Za-z &]+?) - (?:Application|Job Application)`,
			`(?im)position at ([A-Za-z][A-Za-z &]+?)(?:\.|,|$|\n)`,
			`(?im)role at ([A-Za-z][A-Za-z &]+?)(?:\.|,|$|\n)`,
			`(?im)opportunity at ([A-Za-z][A-Za-z &]+?)(?:\.|,|$|\n)`,
		}),
		positionPatterns: compileAll([]string{
			`(?im)position[:\s]+([A-Za-z][A-Za-z &/]+?)(?:\.|,|$|\n| at)`,
			`(?im)role[:\s]+([A-Za-z][A-Za-z &/]+?)(?:\.|,|$|\n| at)`,
			`(?im)application (?:for|to) (?:the )?([A-Za-z][A-Za-z &/]+?) (?:position|role)`,
			`(?im)([A-Za-z][A-Za-z &/]+?) (?:position|role)(?:\.|,|$|\n)`,
		}),
		articleRegex: regexp.MustCompile(`(?i)^(the|a|an)\s+`),
	}
}

// Classify runs the rule sets over one message. The body must already be
// normalized text.
func (c *Classifier) Classify(sender, subject, body string) Result {
	text := strings.ToLower(subject + " " + body)

	var matched []ruleSet
	for _, rs := range c.rules {
		if matchesAny(text, rs.patterns) {
			matched = append(matched, rs)
		}
	}

	if len(matched) == 0 {
		return Result{Resolved: false, Category: CategoryUnknown, Confidence: 0}
	}

	// matched is in priority order; the first set is the best guess either way.
	best := matched[0]
	result := Result{
		Resolved:   len(matched) == 1,
		Category:   best.category,
		Confidence: best.confidence,
		Fields:     c.extractFields(sender, subject, body),
	}
	return result
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *Classifier) extractFields(sender, subject, body string) Fields {
	return Fields{
		CompanyName:  c.extractCompany(sender, subject, body),
		Position:     c.extractPosition(subject, body),
		WhereApplied: whereApplied(sender),
	}
}

// extractCompany tries content patterns first (most accurate), then falls
// back to the sender domain unless it is a personal mailbox or a job board.
func (c *Classifier) extractCompany(sender, subject, body string) string {
	text := subject + " " + body

	for _, p := range c.companyPatterns {
		match := p.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		name := strings.TrimSpace(c.articleRegex.ReplaceAllString(strings.TrimSpace(match[1]), ""))
		lower := strings.ToLower(name)
		if len(name) >= 2 && len(name) <= 50 &&
			lower != "job" && lower != "position" && lower != "role" && lower != "application" {
			return name
		}
	}

	domain := senderDomain(sender)
	if domain == "" || hasDomainPrefix(domain, personalDomains) || hasDomainPrefix(domain, jobBoardDomains) {
		return ""
	}

	// "noreply@acme.com" -> "Acme"
	return capitalize(strings.Split(domain, ".")[0])
}

func (c *Classifier) extractPosition(subject, body string) string {
	text := subject + " " + body

	for _, p := range c.positionPatterns {
		match := p.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		position := strings.TrimSpace(c.articleRegex.ReplaceAllString(strings.TrimSpace(match[1]), ""))
		if len(position) >= 3 && len(position) <= 100 {
			return position
		}
	}
	return ""
}

// whereApplied returns the job board name when the sender is one, empty
// otherwise (a direct application).
func whereApplied(sender string) string {
	domain := senderDomain(sender)
	if domain == "" {
		return ""
	}
	for _, board := range jobBoardDomains {
		if strings.HasPrefix(domain, board) {
			return capitalize(board)
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func senderDomain(sender string) string {
	_, domain, found := strings.Cut(sender, "@")
	if !found {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(domain, ">"))
}

func hasDomainPrefix(domain string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(domain, p) {
			return true
		}
	}
	return false
}
