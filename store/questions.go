package store

import (
	"encoding/json"
	"slices"

	"github.com/pkg/errors"
)

// CachedQuestions returns the cached AI generated recommended questions.
func (s *Store) CachedQuestions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.questions)
}

// SetCachedQuestions replaces the cached recommended questions. They are
// persisted independently of the app state.
func (s *Store) SetCachedQuestions(questions []string) {
	questions = slices.Clone(questions)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = questions
	s.persister.enqueue(QuestionsKey, func() (string, error) {
		if questions == nil {
			questions = []string{}
		}
		bytes, err := json.Marshal(questions)
		if err != nil {
			return "", errors.Wrap(err, "marshaling cached questions")
		}
		return string(bytes), nil
	})
}
