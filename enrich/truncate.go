package enrich

// omittedMarker joins the head and tail halves of a truncated prompt.
const omittedMarker = "\n\n[... middle of transcript omitted ...]\n\n"

// truncateForPrompt bounds a transcript to the prompt budget with a
// head+tail strategy, preserving opening and closing context.
func truncateForPrompt(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	half := budget / 2
	return s[:half] + omittedMarker + s[len(s)-half:]
}
