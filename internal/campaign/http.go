package campaign

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates a client shared by all the minions of a campaign.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// Step is a single HTTP request executed by a minion.
type Step struct {
	// Name for this step (used in metrics)
	Name string

	Method  string
	URL     string
	Headers map[string]string
	Body    string

	// Timeout for this specific step, on top of the client timeout
	Timeout time.Duration

	// ThinkTime is the pause after this step, skipped after the last one
	ThinkTime time.Duration

	// ExpectStatus fails the step on any other status; zero accepts anything below 400
	ExpectStatus int

	Extract []Extraction
	Checks  []Check
}

// Extraction stores a value of the response in the minion's variables.
type Extraction struct {
	// Name of the variable to store
	Name string

	// Source: "body", "header", "status"
	Source string

	// Path: header name, or JSONPath for body
	Path string
}

// StepError reports a failed step.
type StepError struct {
	Step       string
	StatusCode int
	Err        error
}

func (e *StepError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("step '%s' (status %d): %v", e.Step, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("step '%s': %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrUnexpectedStatus is returned when a response status is not accepted.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPWork runs a sequence of HTTP steps on each minion pass.
type HTTPWork struct {
	Client    *http.Client
	BaseURL   string
	Variables map[string]string
	Steps     []Step
}

// Run executes the steps in order and stops at the first failing one.
func (w *HTTPWork) Run(ctx context.Context, m *Minion) error {
	for i := range w.Steps {
		step := &w.Steps[i]

		err := w.runStep(ctx, m, step)
		if err != nil {
			return err
		}

		if step.ThinkTime > 0 && i < len(w.Steps)-1 {
			if !sleepContext(ctx, step.ThinkTime) {
				return ctx.Err()
			}
		}
	}
	return nil
}

func (w *HTTPWork) runStep(ctx context.Context, m *Minion, step *Step) error {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	req, err := w.buildRequest(ctx, m, step)
	if err != nil {
		return &StepError{Step: step.Name, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	start := time.Now()
	resp, err := w.Client.Do(req)
	if err != nil {
		m.record(time.Since(start), step.Name, false, 0)
		return &StepError{Step: step.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		m.record(duration, step.Name, false, int64(len(body)))
		return &StepError{Step: step.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	stepErr := checkStatus(step, resp.StatusCode)
	if stepErr == nil {
		stepErr = runChecks(step.Checks, body)
	}
	m.record(duration, step.Name, stepErr == nil, int64(len(body)))
	if stepErr != nil {
		return &StepError{Step: step.Name, StatusCode: resp.StatusCode, Err: stepErr}
	}

	extractVariables(m, step.Extract, resp, body)
	return nil
}

func (w *HTTPWork) buildRequest(ctx context.Context, m *Minion, step *Step) (*http.Request, error) {
	url := m.Resolve(step.URL, w.Variables)
	if w.BaseURL != "" && !strings.Contains(url, "://") {
		url = strings.TrimSuffix(w.BaseURL, "/") + "/" + strings.TrimPrefix(url, "/")
	}

	var body io.Reader
	if step.Body != "" {
		body = strings.NewReader(m.Resolve(step.Body, w.Variables))
	}

	method := step.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for key, value := range step.Headers {
		req.Header.Set(key, m.Resolve(value, w.Variables))
	}
	return req, nil
}

func checkStatus(step *Step, status int) error {
	if step.ExpectStatus > 0 {
		if status != step.ExpectStatus {
			return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedStatus, status, step.ExpectStatus)
		}
		return nil
	}
	if status >= 400 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	return nil
}

func extractVariables(m *Minion, extracts []Extraction, resp *http.Response, body []byte) {
	for _, extract := range extracts {
		var value string

		switch extract.Source {
		case "header":
			value = resp.Header.Get(extract.Path)
		case "status":
			value = fmt.Sprintf("%d", resp.StatusCode)
		default:
			if extract.Path == "" {
				value = string(body)
				break
			}
			result, err := lookupJSON(body, extract.Path)
			if err != nil {
				m.Logger.Debug("Extraction skipped", zap.String("variable", extract.Name), zap.Error(err))
				continue
			}
			value = result.String()
		}

		if value != "" {
			m.SetData(extract.Name, value)
		}
	}
}

func (m *Minion) record(duration time.Duration, step string, success bool, bytes int64) {
	if m.Metrics != nil {
		m.Metrics.RecordStep(duration, step, success, bytes)
	}
}

// sleepContext waits for d and reports false when ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
