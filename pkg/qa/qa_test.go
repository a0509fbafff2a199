package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func questions(ids ...string) []Question {
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, Question{ID: id, Text: "Q " + id, Type: TypeText})
	}
	return out
}

func TestAllAnswered(t *testing.T) {
	qs := questions("q1", "q2")

	tests := []struct {
		name    string
		answers Answers
		want    bool
	}{
		{"none", Answers{}, false},
		{"partial", Answers{"q1": "yes"}, false},
		{"whitespace only", Answers{"q1": "yes", "q2": "   "}, false},
		{"complete", Answers{"q1": "yes", "q2": "no"}, true},
		{"extra ids ignored", Answers{"q1": "yes", "q2": "no", "zz": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllAnswered(qs, tt.answers))
		})
	}
}

func TestAllAnsweredEmptySet(t *testing.T) {
	assert.True(t, AllAnswered(nil, Answers{}))
	assert.Empty(t, Unanswered(nil, nil))
}

func TestUnansweredKeepsOrder(t *testing.T) {
	qs := questions("q1", "q2", "q3")
	assert.Equal(t, []string{"q1", "q3"}, Unanswered(qs, Answers{"q2": "x"}))
}

func TestSetTrimsAndClears(t *testing.T) {
	a := Answers{}
	a.Set("q1", "  5M  ")
	assert.Equal(t, "5M", a["q1"])

	a.Set("q1", "   ")
	_, ok := a["q1"]
	assert.False(t, ok)
}

func TestToSubmissionPayloadPreservesQuestionOrder(t *testing.T) {
	qs := questions("q1", "q2", "q3")
	a := Answers{}
	a.Set("q3", "third")
	a.Set("q1", "first")
	a.Set("q2", "second")

	got := ToSubmissionPayload(qs, a)
	assert.Equal(t, []Answer{
		{QuestionID: "q1", Answer: "first"},
		{QuestionID: "q2", Answer: "second"},
		{QuestionID: "q3", Answer: "third"},
	}, got)
}

func TestCloneIsIndependent(t *testing.T) {
	a := Answers{"q1": "x"}
	b := a.Clone()
	b["q1"] = "y"
	assert.Equal(t, "x", a["q1"])
}

func TestContains(t *testing.T) {
	qs := questions("q1")
	assert.True(t, Contains(qs, "q1"))
	assert.False(t, Contains(qs, "q9"))
}
