// Package sanitize cleans user-provided text before it is stored or echoed
// back through the chat API. Uses bluemonday to strip any markup a user
// pastes into the message box (script tags, event handlers, javascript:
// URLs). Chat input is plain text; nothing a user types should survive as
// HTML.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for chat input.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared sanitization policy, initializing it on
// first call. StrictPolicy strips every tag and attribute outright.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML from user input and collapses the result back to
// readable plain text. bluemonday entity-escapes what it keeps, so the
// output is unescaped afterwards: the stored message should read the way
// the user typed it ("aspirin & ibuprofen", not "aspirin &amp; ibuprofen").
//
// This MUST be called on all user-provided chat text before storing it.
func Text(input string) string {
	if input == "" {
		return ""
	}
	cleaned := getPolicy().Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
