// Package qa models the clarifying questions produced by the analysis service and
// the user's in-progress answers to them.
package qa

import "strings"

// TypeText is the default question type.
const TypeText = "text"

// Question is a single clarifying question. Immutable once received.
type Question struct {
	ID      string   `json:"question_id"`
	Method  string   `json:"method"`
	Text    string   `json:"question_text"`
	Type    string   `json:"question_type"`
	Choices []string `json:"choices"`
}

// Answer is one entry of the submission payload.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// Answers maps question id to the trimmed answer text.
type Answers map[string]string

// Set stores the trimmed text for a question. Blank text removes the entry.
func (a Answers) Set(questionID, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		delete(a, questionID)
		return
	}
	a[questionID] = trimmed
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AllAnswered reports whether every question has a non-empty trimmed answer.
func AllAnswered(questions []Question, answers Answers) bool {
	for i := range questions {
		if strings.TrimSpace(answers[questions[i].ID]) == "" {
			return false
		}
	}
	return true
}

// Unanswered returns the ids of questions without an answer, in question order.
func Unanswered(questions []Question, answers Answers) []string {
	var missing []string
	for i := range questions {
		if strings.TrimSpace(answers[questions[i].ID]) == "" {
			missing = append(missing, questions[i].ID)
		}
	}
	return missing
}

// ToSubmissionPayload builds the answer list in the order the questions were received.
// Answers for ids outside the question set are dropped.
func ToSubmissionPayload(questions []Question, answers Answers) []Answer {
	payload := make([]Answer, 0, len(questions))
	for i := range questions {
		payload = append(payload, Answer{
			QuestionID: questions[i].ID,
			Answer:     strings.TrimSpace(answers[questions[i].ID]),
		})
	}
	return payload
}

// Contains reports whether id belongs to the question set.
func Contains(questions []Question, id string) bool {
	for i := range questions {
		if questions[i].ID == id {
			return true
		}
	}
	return false
}
