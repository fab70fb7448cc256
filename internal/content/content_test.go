package content

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	if got := Sanitize(`<script>alert(1)</script>hello`); got != "hello" {
		t.Errorf("script not stripped: %q", got)
	}
	if got := Sanitize(`<b>bold</b> text`); got != "bold text" {
		t.Errorf("tags not stripped: %q", got)
	}
	if got := Sanitize("plain"); got != "plain" {
		t.Errorf("plain text mangled: %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html := RenderMarkdown("**bold** and `code`")
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("bold not rendered: %q", html)
	}
	if !strings.Contains(html, "<code>code</code>") {
		t.Errorf("code not rendered: %q", html)
	}

	// Raw HTML embedded in markdown must not survive sanitization.
	html = RenderMarkdown(`hi <script>alert(1)</script>`)
	if strings.Contains(html, "<script>") {
		t.Errorf("script survived: %q", html)
	}

	html = RenderMarkdown(`[link](javascript:alert(1))`)
	if strings.Contains(html, "javascript:") {
		t.Errorf("javascript href survived: %q", html)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("hello", 3); got != "hel" {
		t.Errorf("expected hel, got %q", got)
	}
	// Rune boundaries, not bytes.
	if got := Truncate("привет", 3); got != "при" {
		t.Errorf("expected при, got %q", got)
	}
	if got := Truncate("", 5); got != "" {
		t.Errorf("empty input changed: %q", got)
	}
}

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"alice", "bob_42", "a.b-c", "X"} {
		if err := ValidateUsername(ok); err != nil {
			t.Errorf("ValidateUsername(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "has space", "semi;colon", "<tag>", "юзер"} {
		if err := ValidateUsername(bad); err == nil {
			t.Errorf("ValidateUsername(%q) = nil, want error", bad)
		}
	}
}
