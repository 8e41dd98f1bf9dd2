package mdv2

import "strings"

// V represents text that is safe to pass to Telegram when ParseMode="MarkdownV2".
// Values of type V should be treated as already-escaped.
type V string

func (v V) String() string { return string(v) }

// reserved is the set of characters Telegram MarkdownV2 requires escaped
// in regular text: _ * [ ] ( ) ~ ` > # + - = | { } . !
const reserved = "_*[]()~`>#+-=|{}.!"

// Esc escapes text for Telegram MarkdownV2 parse mode.
// Backslashes are escaped too, so the result always renders literally.
func Esc(s string) V {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if r == '\\' || (r < 127 && strings.ContainsRune(reserved, r)) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return V(b.String())
}

// Raw marks a string as already-safe MarkdownV2.
// Use sparingly.
func Raw(s string) V { return V(s) }

func B(s string) V { return V("*" + string(Esc(s)) + "*") }
func I(s string) V { return V("_" + string(Esc(s)) + "_") }

// Code renders an inline code span.
// Inside code spans only backticks and backslashes need escaping.
func Code(s string) V { return V("`" + escapeCode(s) + "`") }

// Link builds an inline link. The text part uses regular-text escaping;
// inside the (...) part only ')' and '\' need escaping.
func Link(text, url string) V {
	return V("[" + string(Esc(text)) + "](" + escapeLinkURL(url) + ")")
}

// JoinV joins safe MarkdownV2 parts with sep, skipping blank parts.
func JoinV(sep string, parts ...V) V {
	if len(parts) == 0 {
		return ""
	}
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return V(strings.Join(ss, sep))
}

func escapeCode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '`' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeLinkURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ')' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
