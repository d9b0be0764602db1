// Markdown cleanup for produced lore text.
//
// Upstream language models decorate output with markdown even when told not
// to. The text-cleaning contract is that stored content is plain readable
// text: bold/underline markers and headers are removed and leading dashes
// become bullet glyphs. Export streams the stored content verbatim, so the
// stripping happens exactly once, before storage.
package producer

import (
	"regexp"
	"strings"
)

var (
	mdBoldRE   = regexp.MustCompile(`\*\*|__`)
	mdHeaderRE = regexp.MustCompile(`#+`)
	mdBulletRE = regexp.MustCompile(`(?m)^\s*-\s+`)
)

// CleanText strips markdown decoration from model output: bold and underline
// markers, header hashes, and list dashes (replaced with "• " bullets). The
// result is trimmed of surrounding whitespace.
func CleanText(text string) string {
	text = mdBoldRE.ReplaceAllString(text, "")
	text = mdHeaderRE.ReplaceAllString(text, "")
	text = mdBulletRE.ReplaceAllString(text, "• ")
	return strings.TrimSpace(text)
}
