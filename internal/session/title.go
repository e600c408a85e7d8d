package session

import "strings"

const defaultTitle = "New Investigation"

// Common question starters stripped so titles read as subjects.
var titleStarters = []string{
	"who is ", "what is ", "what are ", "who are ", "tell me about ",
	"can you ", "could you ", "please ", "i want to know ",
}

// generateTitle derives a short session title from the first user message.
func generateTitle(message string) string {
	title := strings.TrimSpace(message)

	lower := strings.ToLower(title)
	for _, starter := range titleStarters {
		if strings.HasPrefix(lower, starter) {
			title = title[len(starter):]
			break
		}
	}

	if runes := []rune(title); len(runes) > 0 {
		title = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}

	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}

	if title == "" {
		return defaultTitle
	}
	return title
}
