package conversation

import "strings"

const (
	DefaultTitleLength = 20
	FallbackTitle      = "New Conversation"
)

// ExtractTitle collapses whitespace in text and hard-truncates it to
// maxLength characters. Blank text yields FallbackTitle.
func ExtractTitle(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultTitleLength
	}
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return FallbackTitle
	}
	runes := []rune(cleaned)
	if len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	return string(runes)
}
