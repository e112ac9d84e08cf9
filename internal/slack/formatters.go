// Package slack provides Slack message formatting utilities.
package slack

import "fmt"

// splitReply splits text into chunks of at most limit characters,
// preserving order. Empty text yields a single empty chunk so callers
// always have something to send.
func splitReply(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// truncateText truncates text to a maximum length with ellipsis.
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatInlineCode wraps text in inline code markers.
func formatInlineCode(text string) string {
	return fmt.Sprintf("`%s`", text)
}

// formatCodeBlock wraps text in a code block.
func formatCodeBlock(text string) string {
	return fmt.Sprintf("```\n%s\n```", text)
}
