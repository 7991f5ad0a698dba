package normalizer

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Normalizer converts raw email bodies (plain text, HTML, or both) into a
// single clean plain-text string suitable for pattern matching and for
// inclusion in an AI prompt. It never fails: malformed markup degrades to a
// best-effort tag strip and an empty body yields an empty string.
type Normalizer struct {
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
	tagRegex        *regexp.Regexp
}

// New creates a Normalizer with its regexes compiled once.
func New() *Normalizer {
	return &Normalizer{
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		// Zero-width and other invisible Unicode characters that break
		// lexical matching, plus NBSP which should become a plain space.
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}\x{206A}-\x{206F}]+`),
		tagRegex:       regexp.MustCompile(`<[^>]*>`),
	}
}

// Normalize returns clean text for a message body. The HTML part is preferred
// when present since it is usually the richer one.
func (n *Normalizer) Normalize(bodyText, bodyHTML string) string {
	if bodyHTML != "" {
		if text, err := n.fromHTML(bodyHTML); err == nil && text != "" {
			return text
		}
		// Unparseable markup: strip tags and clean whatever is left.
		if bodyText == "" {
			return n.clean(n.tagRegex.ReplaceAllString(bodyHTML, " "))
		}
	}
	return n.clean(bodyText)
}

// fromHTML extracts readable text from an HTML body.
func (n *Normalizer) fromHTML(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Add newlines before block elements so their text does not run together.
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	return n.clean(doc.Text()), nil
}

// clean normalizes whitespace in already-plain text: entities decoded,
// invisible characters dropped, NBSP collapsed, blank runs reduced, trimmed.
func (n *Normalizer) clean(text string) string {
	if text == "" {
		return ""
	}

	text = html.UnescapeString(text)
	text = n.invisibleRegex.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = n.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, strings.TrimSpace(line))
	}
	text = strings.Join(cleaned, "\n")

	text = n.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
