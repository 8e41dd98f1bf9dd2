package mdv2

import "strings"

// ConvertMarkdown converts common Markdown (what chat models emit when asked
// for Markdown output) into Telegram MarkdownV2.
//
// Recognized constructs, converted structurally:
//   - `code`       -> inline code span
//   - **bold**     -> *bold*
//   - [text](url)  -> inline link (text escaped, url kept intact)
//
// Everything else is escaped so it renders literally. The conversion is a
// single pass and never fails: an unterminated or malformed construct is
// escaped as plain text instead.
func ConvertMarkdown(s string) V {
	if s == "" {
		return ""
	}
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)

	i := 0
	for i < len(rs) {
		switch {
		case rs[i] == '`':
			if j := nextRune(rs, i+1, '`'); j != -1 && j > i+1 {
				b.WriteByte('`')
				b.WriteString(escapeCode(string(rs[i+1 : j])))
				b.WriteByte('`')
				i = j + 1
				continue
			}
			b.WriteString("\\`")
			i++

		case rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '*':
			if j := nextRune(rs, i+2, '*'); j != -1 && j > i+2 && j+1 < len(rs) && rs[j+1] == '*' {
				b.WriteByte('*')
				b.WriteString(string(Esc(string(rs[i+2 : j]))))
				b.WriteByte('*')
				i = j + 2
				continue
			}
			b.WriteString("\\*\\*")
			i += 2

		case rs[i] == '[':
			if text, url, next, ok := parseLink(rs, i); ok {
				b.WriteString(string(Link(text, url)))
				i = next
				continue
			}
			b.WriteString("\\[")
			i++

		default:
			r := rs[i]
			if r == '\\' || (r < 127 && strings.ContainsRune(reserved, r)) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
			i++
		}
	}
	return V(b.String())
}

// nextRune returns the index of the first occurrence of want at or after
// from, or -1.
func nextRune(rs []rune, from int, want rune) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == want {
			return i
		}
	}
	return -1
}

// parseLink parses "[text](url)" starting at rs[at] == '['. The text part
// must be nonempty without ']', the url part nonempty without ')'.
func parseLink(rs []rune, at int) (text, url string, next int, ok bool) {
	rb := nextRune(rs, at+1, ']')
	if rb == -1 || rb == at+1 {
		return "", "", 0, false
	}
	if rb+1 >= len(rs) || rs[rb+1] != '(' {
		return "", "", 0, false
	}
	end := nextRune(rs, rb+2, ')')
	if end == -1 || end == rb+2 {
		return "", "", 0, false
	}
	return string(rs[at+1 : rb]), string(rs[rb+2 : end]), end + 1, true
}
