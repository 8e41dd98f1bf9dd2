package mdv2

// DefaultLimit keeps a margin under Telegram's hard 4096-character cap so
// framing overhead never pushes a chunk over the edge.
const DefaultLimit = 4000

// Split breaks s into chunks of at most limit runes each.
//
// Cut points prefer, in order: after a blank line, after a line break,
// after a space. A preferred cut is only taken when it keeps the current
// chunk at limit/3 runes or more. Best-effort, a cut never lands inside a
// MarkdownV2 construct (escape pair, inline code span, link, bold span).
//
// The split is lossless: concatenating the chunks reproduces s exactly.
func Split(s string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end >= len(rs) {
			out = append(out, string(rs[start:]))
			break
		}

		end = preferBoundary(rs, start, end, limit)
		end = avoidConstructs(rs, start, end)

		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// preferBoundary moves end back to just after a blank line, a newline, or a
// space, whichever is found first in that order of preference. Cuts that
// would leave the chunk shorter than limit/3 are rejected.
func preferBoundary(rs []rune, start, end, limit int) int {
	min := start + limit/3

	for i := end - 1; i > min; i-- {
		if rs[i] == '\n' && rs[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > min; i-- {
		if rs[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > min; i-- {
		if rs[i] == ' ' {
			return i + 1
		}
	}
	return end
}

// avoidConstructs scans the window and, when end lands inside an escape
// pair, code span, link, or bold span, retreats end to the construct's
// opening position. Oversized constructs are cut as-is.
func avoidConstructs(rs []rune, start, end int) int {
	inCode := -1
	inBold := -1
	linkOpen := -1
	straddle := -1

	i := start
	for i < end {
		r := rs[i]
		if r == '\\' {
			if i == end-1 {
				straddle = i
			}
			i += 2
			continue
		}
		switch r {
		case '`':
			if inCode == -1 {
				inCode = i
			} else {
				inCode = -1
			}
		case '*':
			if inCode == -1 {
				if inBold == -1 {
					inBold = i
				} else {
					inBold = -1
				}
			}
		case '[':
			if inCode == -1 && linkOpen == -1 {
				linkOpen = i
			}
		case ')':
			if inCode == -1 {
				linkOpen = -1
			}
		}
		i++
	}

	cut := end
	for _, open := range []int{straddle, inCode, inBold, linkOpen} {
		if open != -1 && open < cut {
			cut = open
		}
	}
	if cut <= start {
		return end
	}
	return cut
}
