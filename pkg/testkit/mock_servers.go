// Package testkit provides a scriptable analysis service for tests.
package testkit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Endpoints served by RiskServer.
const (
	PathInitial   = "/api/v1/analyze/initial"
	PathQuestions = "/api/v1/analyze/questions"
	PathReport    = "/api/v1/analyze/report"
)

// Response is one scripted reply.
type Response struct {
	Status int
	Body   string
	Delay  time.Duration // Waits before replying; aborted when the client goes away
}

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// RiskServer emulates the analysis backend. Each path replays its scripted responses in
// order and repeats the last one once the script is exhausted.
type RiskServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string][]Response
	requests  []RecordedRequest
}

// NewRiskServer starts a server answering every endpoint successfully with the default fixtures.
func NewRiskServer() *RiskServer {
	s := &RiskServer{
		responses: map[string][]Response{
			PathInitial:   {OK(InitialBody("test-session"))},
			PathQuestions: {OK(QuestionsBody("test-session", "q1", "q2"))},
			PathReport:    {OK(ReportBody())},
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// OK is a 200 reply with body.
func OK(body string) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Fail is a non-2xx reply with body.
func Fail(status int, body string) Response {
	return Response{Status: status, Body: body}
}

// Script replaces the responses for path.
func (s *RiskServer) Script(path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = responses
}

// Requests returns the requests received on path, or all requests when path is empty.
func (s *RiskServer) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedRequest
	for i := range s.requests {
		if path == "" || s.requests[i].Path == path {
			out = append(out, s.requests[i])
		}
	}
	return out
}

// RequestCount returns how many requests hit path.
func (s *RiskServer) RequestCount(path string) int {
	return len(s.Requests(path))
}

func (s *RiskServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	script, ok := s.responses[r.URL.Path]
	var resp Response
	if ok && len(script) > 0 {
		resp = script[0]
		if len(script) > 1 {
			s.responses[r.URL.Path] = script[1:]
		}
	}
	s.mu.Unlock()

	if !ok || len(script) == 0 {
		http.Error(w, `{"detail":"Not Found"}`, http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, `{"detail":"Method Not Allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-timer.C:
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
