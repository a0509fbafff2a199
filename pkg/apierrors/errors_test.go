package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "server", KindServer.String())
	assert.Equal(t, "parse", KindParse.String())
	assert.Equal(t, "invalid", Kind(42).String())
}

func TestServerErrorDetail(t *testing.T) {
	err := NewServer("start_analysis", http.StatusBadRequest, "invalid budget")
	assert.Equal(t, "invalid budget", err.UserMessage())
	assert.False(t, err.IsRetryable())

	fallback := NewServer("start_analysis", http.StatusBadGateway, "")
	assert.Equal(t, GenericServerMessage(http.StatusBadGateway), fallback.UserMessage())
	assert.True(t, fallback.IsRetryable())
}

func TestClassificationThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset by peer")
	wrapped := fmt.Errorf("step failed: %w", NewNetwork("fetch_questions", cause))

	assert.True(t, Is(wrapped, KindNetwork))
	assert.False(t, Is(wrapped, KindServer))
	assert.ErrorIs(t, wrapped, cause)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"network", NewNetwork("submit_answers", errors.New("timeout")), true},
		{"rate limited", NewServer("submit_answers", http.StatusTooManyRequests, ""), true},
		{"server 500", NewServer("submit_answers", http.StatusInternalServerError, ""), true},
		{"client 422", NewServer("submit_answers", http.StatusUnprocessableEntity, "bad"), false},
		{"parse", NewParse("submit_answers", StageReport, errors.New("eof")), false},
		{"validation", NewValidation("title"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsRetryable())
		})
	}
}

func TestValidationMessages(t *testing.T) {
	err := NewValidation("description")
	assert.Equal(t, "validation error: description is required", err.Error())
	assert.Equal(t, "description is required", err.UserMessage())

	unanswered := NewUnanswered([]string{"q2", "q3"})
	assert.Contains(t, unanswered.Error(), "q2")
	assert.Equal(t, []string{"q2", "q3"}, unanswered.Missing)
}

func TestAs(t *testing.T) {
	parseErr := NewParse("start_analysis", StageInitial, errors.New("missing session_id"))
	got, ok := As(fmt.Errorf("wrap: %w", parseErr))
	require.True(t, ok)
	assert.Equal(t, StageInitial, got.Stage)
	assert.Equal(t, MessageParse, got.UserMessage())
}
