package content

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// MaxMessageLen bounds chat message text, in runes.
const MaxMessageLen = 4000

var (
	policy        = bluemonday.UGCPolicy()
	stripPolicy   = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	markdown      = goldmark.New()
)

// Sanitize strips all HTML from the input, leaving plain text. Used for
// chat message text and display names.
func Sanitize(input string) string {
	return stripPolicy.Sanitize(input)
}

// RenderMarkdown renders chat markdown to HTML and sanitizes the result
// with a UGC policy, so script and friends never reach other clients.
func RenderMarkdown(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return Sanitize(input)
	}
	return strings.TrimSpace(policy.Sanitize(buf.String()))
}

// Truncate clips s to at most max runes.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
