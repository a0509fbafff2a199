// Package riskapi is the client for the remote risk analysis service: start an analysis,
// generate clarifying questions and submit answers for a report.
//
// Every failure crossing this package boundary is an *apierrors.Error whose Kind tells
// transport failures, server-reported failures and unreadable responses apart.
package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/config"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/qa"
)

// Request headers attached to every call.
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderClientID    = "User-Agent"
	MediaTypeJSON     = "application/json"
)

const maxErrorBody = 64 << 10

// Client is the remote analysis service.
type Client interface {
	StartAnalysis(ctx context.Context, req StartRequest) (StartResult, error)
	FetchQuestions(ctx context.Context, sessionID string) (QuestionSet, error)
	SubmitAnswers(ctx context.Context, sessionID string, answers []qa.Answer) (AnalysisReport, error)
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL        string
	ClientID       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Transport      http.RoundTripper // Optional; replaces the default timed transport
}

// OptionsFromConfig maps the api config section to client options.
func OptionsFromConfig(cfg *config.APIConfig) Options {
	return Options{
		BaseURL:        cfg.BaseURL,
		ClientID:       cfg.ClientID,
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		ReadTimeout:    cfg.ReadTimeout.Std(),
		WriteTimeout:   cfg.WriteTimeout.Std(),
	}
}

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	baseURL  string
	clientID string
	logger   *logx.Logger
	client   *http.Client
}

// NewHTTPClient creates a client. Zero timeouts fall back to config.DefaultTimeout.
func NewHTTPClient(opts Options) *HTTPClient {
	connect := orDefault(opts.ConnectTimeout)
	read := orDefault(opts.ReadTimeout)
	write := orDefault(opts.WriteTimeout)

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connect,
			ResponseHeaderTimeout: read,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	return &HTTPClient{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		clientID: opts.ClientID,
		logger:   logx.NewLogger("riskapi"),
		client: &http.Client{
			Transport: transport,
			// Upper bound for connect + write + read of one call.
			Timeout: connect + write + read,
		},
	}
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultTimeout
	}
	return d
}

// StartAnalysis posts the brief and returns the server-assigned session.
func (c *HTTPClient) StartAnalysis(ctx context.Context, req StartRequest) (StartResult, error) {
	body, err := c.doPost(ctx, OpStartAnalysis, PathInitial, req)
	if err != nil {
		return StartResult{}, err
	}

	var resp StartResult
	if err := json.Unmarshal(body, &resp); err != nil {
		return StartResult{}, apierrors.NewParse(OpStartAnalysis, apierrors.StageInitial, err)
	}
	if strings.TrimSpace(resp.SessionID) == "" {
		return StartResult{}, apierrors.NewParse(OpStartAnalysis, apierrors.StageInitial,
			errors.New("response has no session_id"))
	}
	return resp, nil
}

// FetchQuestions asks the service to generate clarifying questions for the session.
func (c *HTTPClient) FetchQuestions(ctx context.Context, sessionID string) (QuestionSet, error) {
	body, err := c.doPost(ctx, OpFetchQuestions, PathQuestions, questionsRequest{SessionID: sessionID})
	if err != nil {
		return QuestionSet{}, err
	}
	return decodeQuestions(body)
}

// SubmitAnswers submits the answers in question order and returns the report.
func (c *HTTPClient) SubmitAnswers(ctx context.Context, sessionID string, answers []qa.Answer) (AnalysisReport, error) {
	if answers == nil {
		answers = []qa.Answer{}
	}
	body, err := c.doPost(ctx, OpSubmitAnswers, PathReport, reportRequest{SessionID: sessionID, Answers: answers})
	if err != nil {
		return AnalysisReport{}, err
	}
	return decodeReport(body)
}

// doPost sends a JSON body and returns the response body of a 2xx response.
func (c *HTTPClient) doPost(ctx context.Context, op, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request body: %w", op, err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set(HeaderContentType, MediaTypeJSON)
	req.Header.Set(HeaderAccept, MediaTypeJSON)
	req.Header.Set(HeaderClientID, c.clientID)

	logx.Debug(ctx, "riskapi", "POST %s body=%s", url, logx.Truncate(string(data), 512))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apierrors.NewNetwork(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("%s failed with status %d: %s", op, resp.StatusCode, logx.Truncate(string(errBody), 256))
		return nil, apierrors.NewServer(op, resp.StatusCode, extractDetail(errBody))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetwork(op, fmt.Errorf("failed to read response body: %w", err))
	}
	logx.Debug(ctx, "riskapi", "%s -> %d (%d bytes)", op, resp.StatusCode, len(body))
	return body, nil
}

// extractDetail pulls a human-readable message from an error body. The backend sends
// {"detail": "..."} or a validation list {"detail": [{"msg": "..."}]}. Empty means unknown.
func extractDetail(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(resp.Detail, &detail); err == nil {
		return strings.TrimSpace(detail)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(resp.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if m := strings.TrimSpace(item.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func decodeQuestions(body []byte) (QuestionSet, error) {
	parseErr := func(format string, args ...any) error {
		return apierrors.NewParse(OpFetchQuestions, apierrors.StageQuestions, fmt.Errorf(format, args...))
	}

	var resp questionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return QuestionSet{}, apierrors.NewParse(OpFetchQuestions, apierrors.StageQuestions, err)
	}
	if resp.Questions == nil {
		return QuestionSet{}, parseErr("response has no questions array")
	}

	set := QuestionSet{
		SessionID: strings.TrimSpace(resp.SessionID),
		Questions: make([]qa.Question, 0, len(*resp.Questions)),
	}
	seen := make(map[string]bool, len(*resp.Questions))
	for i, wq := range *resp.Questions {
		if wq.QuestionID == nil || strings.TrimSpace(*wq.QuestionID) == "" {
			return QuestionSet{}, parseErr("question %d has no question_id", i)
		}
		if wq.QuestionText == nil {
			return QuestionSet{}, parseErr("question %s has no question_text", *wq.QuestionID)
		}
		if seen[*wq.QuestionID] {
			return QuestionSet{}, parseErr("duplicate question_id %s", *wq.QuestionID)
		}
		seen[*wq.QuestionID] = true

		qType := wq.QuestionType
		if qType == "" {
			qType = qa.TypeText
		}
		choices := wq.Choices
		if choices == nil {
			choices = []string{}
		}
		set.Questions = append(set.Questions, qa.Question{
			ID:      *wq.QuestionID,
			Method:  wq.Method,
			Text:    *wq.QuestionText,
			Type:    qType,
			Choices: choices,
		})
	}

	// total_questions is optional and the array length wins.
	set.TotalQuestions = len(set.Questions)
	if resp.TotalQuestions != nil {
		if *resp.TotalQuestions != len(set.Questions) {
			logx.Warnf("questions response total_questions=%d but carried %d questions",
				*resp.TotalQuestions, len(set.Questions))
		}
	}
	return set, nil
}

func decodeReport(body []byte) (AnalysisReport, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return AnalysisReport{}, apierrors.NewParse(OpSubmitAnswers, apierrors.StageReport,
			errors.New("report body is not a JSON object"))
	}

	var report AnalysisReport
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return AnalysisReport{}, apierrors.NewParse(OpSubmitAnswers, apierrors.StageReport, err)
	}
	report.Raw = append(json.RawMessage(nil), trimmed...)
	return report, nil
}
