package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended when content exceeds the character budget.
const TruncationMarker = "... [truncated]"

// DefaultContentBudget bounds how much cleaned source text reaches the
// prompt. Roughly 3k tokens at 4 chars/token.
const DefaultContentBudget = 12000

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// CleanContent strips script/style/comment blocks and tags from HTML and
// collapses whitespace. Plain-text input passes through with the same
// whitespace normalization.
func CleanContent(raw string) string {
	s := scriptRe.ReplaceAllString(raw, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = commentRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = spaceRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate bounds content to budget bytes, appending the truncation
// marker when anything was dropped. The cut backs off to a rune boundary
// so the prompt never carries a half rune.
func Truncate(content string, budget int) string {
	if budget <= 0 {
		budget = DefaultContentBudget
	}
	if len(content) <= budget {
		return content
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + TruncationMarker
}
