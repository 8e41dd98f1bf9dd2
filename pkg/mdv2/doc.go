// Package mdv2 provides small Telegram MarkdownV2 text helpers:
//   - Escaping and safe construction of bold/code/link fragments
//   - Conversion of common AI-produced Markdown into MarkdownV2
//   - Plain-text simplification of Markdown release notes
//   - Splitting long messages into sendable chunks
//
// Design goals:
//   - Safe by default for Telegram ParseMode="MarkdownV2" (auto escaping)
//   - Escaping never fails: unparsable constructs degrade to escaped text
//   - Split is lossless: concatenating the chunks reproduces the input
package mdv2
