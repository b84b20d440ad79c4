package llm

import "strings"

// Turn is one prior question/answer exchange supplied with a request.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FormatHistory renders prior turns as prompt context.
func FormatHistory(turns []Turn) string {
	if len(turns) == 0 {
		return "No previous conversation."
	}
	var b strings.Builder
	for _, turn := range turns {
		if q := strings.TrimSpace(turn.Question); q != "" {
			b.WriteString("User: " + q + "\n")
		}
		if a := strings.TrimSpace(turn.Answer); a != "" {
			b.WriteString("Assistant: " + a + "\n")
		}
	}
	if b.Len() == 0 {
		return "No previous conversation."
	}
	return b.String()
}

// LastTurn returns the most recent turn that has both a question and an
// answer, for personalized greetings.
func LastTurn(turns []Turn) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if strings.TrimSpace(turns[i].Question) != "" && strings.TrimSpace(turns[i].Answer) != "" {
			return turns[i], true
		}
	}
	return Turn{}, false
}
