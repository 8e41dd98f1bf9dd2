// Package telegram renders release notifications as MarkdownV2 and
// delivers them through the Bot API.
package telegram

import (
	"strings"

	"relwatch/internal/github"
	"relwatch/internal/summary"
	"relwatch/pkg/mdv2"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Raw release notes shown when the summarizer is unavailable are capped
// at this many runes.
const rawNotesLimit = 500

// ComposeRelease renders the notification for a new release and splits it
// into chunks that fit the platform message limit. Concatenating the
// returned chunks reproduces the full rendered message.
func ComposeRelease(displayName string, rel github.Release, sum summary.Summary) []string {
	var b strings.Builder
	b.WriteString("🎉 ")
	b.WriteString(string(mdv2.B("New Release: " + displayName)))
	b.WriteString("\n📦 Version: ")
	b.WriteString(string(mdv2.Code(rel.TagName)))
	if rel.Prerelease {
		b.WriteString(" 🧪 ")
		b.WriteString(string(mdv2.Esc("PRE-RELEASE")))
	}
	b.WriteString("\n📅 Date: ")
	b.WriteString(string(mdv2.Esc(publishedDate(rel))))
	b.WriteString("\n")
	b.WriteString(divider)
	b.WriteString("\n\n")
	b.WriteString(string(releaseBody(rel, sum)))
	b.WriteString("\n\n")
	b.WriteString(divider)
	b.WriteString("\n")
	b.WriteString(string(mdv2.Link("📖 Full changelog", rel.HTMLURL)))

	return mdv2.Split(b.String(), mdv2.DefaultLimit)
}

func publishedDate(rel github.Release) string {
	if rel.PublishedAt.IsZero() {
		return "unknown"
	}
	return rel.PublishedAt.Format("2006-01-02")
}

// releaseBody picks the summary when one is available and otherwise falls
// back to the raw notes with markup stripped and length capped.
func releaseBody(rel github.Release, sum summary.Summary) mdv2.V {
	if !sum.Unavailable {
		return mdv2.ConvertMarkdown(sum.Text)
	}
	cleaned := mdv2.Strip(rel.Body)
	if cleaned == "" {
		return mdv2.Esc(summary.NoNotesText)
	}
	return mdv2.Esc(mdv2.TruncRunes(cleaned, rawNotesLimit))
}
