// Package security provides the application's content security features.
//
// ContentSanitizerService sanitizes the rich-text fields submitted through
// the admin forms (enseignant biographies, photo descriptions) before they
// are persisted and later rendered on the public site. It uses an allow-list
// bluemonday policy: only harmless formatting tags pass through.
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService defines the HTML sanitizing interface used by the
// content services before persistence.
type ContentSanitizerService interface {
	// Sanitize returns safe HTML. Allowed tags are p, br, ul, ol, li,
	// blockquote, strong, em and a; script, iframe, style and all on*
	// event attributes are stripped. Links get target="_blank" and
	// rel="noopener noreferrer". Empty input returns empty output, and the
	// function is idempotent.
	Sanitize(rawHTML string) string
}

// contentSanitizer implements ContentSanitizerService. The bluemonday policy
// is built once and is safe for concurrent use.
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer builds a ContentSanitizerService with the allow-list
// policy for admin-submitted text.
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// Plain formatting tags without attributes. Anything outside the allow
	// list (script, iframe, style, on* handlers) is removed by bluemonday.
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	// Links: absolute URLs only, opened in a new tab without a referrer.
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https", "http", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize returns the sanitized HTML.
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
