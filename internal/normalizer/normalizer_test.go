package normalizer

import (
	"strings"
	"testing"
)

func TestNormalize_PlainText(t *testing.T) {
	n := New()

	got := n.Normalize("Hello,\r\n\r\nThank you   for applying.\r\n", "")
	want := "Hello,\n\nThank you for applying."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalize_PrefersHTML(t *testing.T) {
	n := New()

	html := "<html><body><p>Thank you for applying to Acme Corp.</p><p>We will be in touch.</p></body></html>"
	got := n.Normalize("ignored plain part", html)

	if !strings.Contains(got, "Thank you for applying to Acme Corp.") {
		t.Errorf("expected HTML text to be extracted, got %q", got)
	}
	if !strings.Contains(got, "We will be in touch.") {
		t.Errorf("expected second paragraph, got %q", got)
	}
	if strings.Contains(got, "<p>") {
		t.Errorf("expected no markup in output, got %q", got)
	}
}

func TestNormalize_StripsScriptAndStyle(t *testing.T) {
	n := New()

	html := "<html><head><style>p { color: red }</style></head><body><script>track()</script><p>Visible text.</p></body></html>"
	got := n.Normalize("", html)

	if strings.Contains(got, "track()") || strings.Contains(got, "color") {
		t.Errorf("expected script and style content to be removed, got %q", got)
	}
	if got != "Visible text." {
		t.Errorf("expected only visible text, got %q", got)
	}
}

func TestNormalize_BlockElementsSeparated(t *testing.T) {
	n := New()

	html := "<div>First line</div><div>Second line</div>"
	got := n.Normalize("", html)

	if !strings.Contains(got, "First line\n") {
		t.Errorf("expected block elements on separate lines, got %q", got)
	}
}

func TestNormalize_EntitiesAndInvisibles(t *testing.T) {
	n := New()

	got := n.Normalize("Thanks​ &amp; regards  team", "")
	want := "Thanks & regards team"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalize_CollapsesBlankRuns(t *testing.T) {
	n := New()

	got := n.Normalize("a\n\n\n\n\nb", "")
	want := "a\n\nb"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNormalize_Empty(t *testing.T) {
	n := New()

	if got := n.Normalize("", ""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
