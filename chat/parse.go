package chat

import (
	"regexp"
	"strings"
)

var numberedLineRegexp = regexp.MustCompile(`^\d+\.`)

// ParseQuestions splits model output into one question per non blank line,
// keeping at most limit of them (limit <= 0 keeps all). If dropNumbered is set,
// lines starting with a number followed by a dot are dropped.
func ParseQuestions(text string, limit int, dropNumbered bool) []string {
	questions := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (dropNumbered && numberedLineRegexp.MatchString(line)) {
			continue
		}
		questions = append(questions, line)
		if limit > 0 && len(questions) == limit {
			break
		}
	}
	return questions
}
