package slack

import (
	"context"
	"fmt"
	"log"
	"regexp"
)

var mentionRegex = regexp.MustCompile(`<@([UW][A-Z0-9]+)>`)

// ResolveMentionsInMessage resolves user mentions like <@U123456> to display names
// in incoming Slack messages before forwarding them to the chat core.
// The bot's own mention is removed.
func ResolveMentionsInMessage(ctx context.Context, resolver SlackUserResolver, botUserID, message string) string {
	matches := mentionRegex.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return message
	}

	userCache := make(map[string]string)
	for _, match := range matches {
		userID := match[1]
		if _, exists := userCache[userID]; exists {
			continue
		}
		if userID == botUserID {
			userCache[userID] = ""
			continue
		}

		user, err := resolver.GetUserInfoContext(ctx, userID)
		if err != nil {
			log.Printf("⚠️ Failed to resolve user mention %s: %v", userID, err)
			userCache[userID] = fmt.Sprintf("<@%s>", userID)
			continue
		}

		displayName := getUserDisplayName(user)
		userCache[userID] = fmt.Sprintf("@%s", displayName)
		log.Printf("🔍 Resolved user mention %s to %s", userID, displayName)
	}

	return mentionRegex.ReplaceAllStringFunc(message, func(match string) string {
		submatches := mentionRegex.FindStringSubmatch(match)
		if resolved, exists := userCache[submatches[1]]; exists {
			return resolved
		}
		return match
	})
}

// getUserDisplayName extracts the best available display name from a Slack user
func getUserDisplayName(user *SlackUser) string {
	// Priority: DisplayName > RealName > Name > ID
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.RealName != "" {
		return user.RealName
	}
	if user.Name != "" {
		return user.Name
	}
	return user.ID
}
