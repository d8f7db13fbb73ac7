package agent

import "strings"

// parseThought splits a thought part's text into its starred subject
// and the free-form description, following the "**Subject** rest"
// convention the model uses for reasoning summaries.
func parseThought(text string) (subject, description string) {
	start := strings.Index(text, "**")
	if start == -1 {
		return "", strings.TrimSpace(text)
	}
	end := strings.Index(text[start+2:], "**")
	if end == -1 {
		return "", strings.TrimSpace(text)
	}
	subject = strings.TrimSpace(text[start+2 : start+2+end])
	description = strings.TrimSpace(text[:start] + text[start+2+end+2:])
	return subject, description
}
