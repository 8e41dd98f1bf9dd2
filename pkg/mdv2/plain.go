package mdv2

import "strings"

// Plain demotes MarkdownV2 text to plain text for sending without a parse
// mode. Escape backslashes resolve to their literal characters and the
// formatting delimiters * _ ~ ` are dropped. Link syntax is kept verbatim
// so URLs stay visible in the plain rendering.
func Plain(v V) string {
	var b strings.Builder
	rs := []rune(string(v))
	b.Grow(len(rs))
	for i := 0; i < len(rs); i++ {
		switch r := rs[i]; r {
		case '\\':
			if i+1 < len(rs) {
				i++
				b.WriteRune(rs[i])
			}
		case '*', '_', '~', '`':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
