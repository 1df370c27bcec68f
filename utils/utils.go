package utils

import (
	"regexp"
	"unicode/utf8"
)

func AssertInvariant(condition bool, message string) {
	if !condition {
		panic("invariant violated - " + message)
	}
}

var (
	markdownLinkRegex    = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	markdownHeadingRegex = regexp.MustCompile(`(?m)^#+\s*(.+)$`)
	markdownBoldRegex    = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// ConvertMarkdownToSlack rewrites assistant markdown into Slack mrkdwn.
// Links are converted first so that their brackets are not touched by the other rules.
func ConvertMarkdownToSlack(message string) string {
	result := markdownLinkRegex.ReplaceAllString(message, "<$2|$1>")

	result = markdownHeadingRegex.ReplaceAllStringFunc(result, func(match string) string {
		content := markdownHeadingRegex.ReplaceAllString(match, "$1")
		content = markdownBoldRegex.ReplaceAllString(content, "$1")
		return "*" + content + "*"
	})

	return markdownBoldRegex.ReplaceAllString(result, "*$1*")
}

// TruncateText shortens text to at most maxRunes runes, appending an ellipsis when cut
func TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if maxRunes == 1 {
		return "…"
	}
	runes := []rune(text)
	return string(runes[:maxRunes-1]) + "…"
}
