package security

import "github.com/microcosm-cc/bluemonday"

// displayPolicy strips all markup from the tab title before it reaches
// an outward-facing surface, as a defense-in-depth layer independent of the parser's own element
// filtering -- a title string assembled from multiple text nodes should
// never be able to carry live markup into a UI that renders it directly.
var displayPolicy = bluemonday.StrictPolicy()

// SanitizeForDisplay strips any HTML markup from s before it is surfaced
// outside the Security Context (spec §4.2's filtering governs the
// Document Tree itself; this is a second, independent layer). The
// pipeline applies it to the tab title only; violation summaries are
// published without it.
func SanitizeForDisplay(s string) string {
	return displayPolicy.Sanitize(s)
}
