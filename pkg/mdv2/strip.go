package mdv2

import (
	"regexp"
	"strings"
)

var (
	reMDLink     = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reMDMarkup   = regexp.MustCompile("[*_`~#>]")
	reBlankLines = regexp.MustCompile(`\n\s*\n+`)
)

// Strip reduces Markdown release notes to readable plain text:
// links keep only their text, markup characters are dropped, and runs of
// blank lines collapse to a single newline. The result is NOT escaped.
func Strip(s string) string {
	s = reMDLink.ReplaceAllString(s, "$1")
	s = reMDMarkup.ReplaceAllString(s, "")
	s = reBlankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
