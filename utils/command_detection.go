package utils

import (
	"regexp"
	"strings"
)

// Chat modes that can be switched with the /mode command
const (
	ChatModeChat  = "chat"
	ChatModeQuiet = "quiet"
)

// ModeCommandResult represents the result of /mode command detection
type ModeCommandResult struct {
	IsCommand bool
	Mode      string
	Valid     bool
}

var (
	slackMentionRegex    = regexp.MustCompile(`<@[^>|]+(?:\|[^>]+)?>`)
	telegramCommandRegex = regexp.MustCompile(`^/mode(?:@[A-Za-z0-9_]+)?(?:\s+(\S+))?\s*$`)
)

// DetectModeCommand checks if a message is a "/mode <chat|quiet>" command after stripping mentions.
// Telegram style "/mode@botname quiet" is accepted as well.
func DetectModeCommand(messageText string) ModeCommandResult {
	text := StripMentions(messageText)

	match := telegramCommandRegex.FindStringSubmatch(text)
	if match == nil {
		return ModeCommandResult{}
	}

	mode := strings.ToLower(match[1])
	return ModeCommandResult{
		IsCommand: true,
		Mode:      mode,
		Valid:     mode == ChatModeChat || mode == ChatModeQuiet,
	}
}

// StripMentions removes Slack mentions (<@USER_ID> or <@USER_ID|username>) and extra whitespace
func StripMentions(text string) string {
	text = slackMentionRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
