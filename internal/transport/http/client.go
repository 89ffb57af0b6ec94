package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tutor-client/internal/domain"
)

// Client calls the assessment endpoints of the tutor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// RequestError is a non-success response from the API.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

type submitRequest struct {
	AssessmentID string          `json:"assessment_id"`
	Answers      []domain.Answer `json:"answers"`
}

type submitResponse struct {
	GradeReport *domain.GradeReport `json:"grade_report"`
}

type retakeRequest struct {
	AssessmentID string `json:"assessment_id"`
	GenerateNew  bool   `json:"generate_new"`
}

type gradeResponse struct {
	GradeReport *domain.GradeReport `json:"grade_report"`
	HasGrade    bool                `json:"has_grade"`
	Message     string              `json:"message"`
}

// errorBody covers both {message} and FastAPI's {detail}.
type errorBody struct {
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

// Submit posts answers for grading.
func (c *Client) Submit(ctx context.Context, assessmentID string, answers []domain.Answer) (domain.GradeReport, error) {
	if answers == nil {
		answers = []domain.Answer{}
	}
	var resp submitResponse
	path := "/assessments/" + url.PathEscape(assessmentID) + "/submit"
	if err := c.do(ctx, http.MethodPost, path, submitRequest{AssessmentID: assessmentID, Answers: answers}, &resp); err != nil {
		return domain.GradeReport{}, err
	}
	if resp.GradeReport == nil {
		return domain.GradeReport{}, domain.ErrMissingGradeReport
	}
	return *resp.GradeReport, nil
}

// Retake requests another attempt. The caller decides what a missing assessment means.
func (c *Client) Retake(ctx context.Context, assessmentID string, generateNew bool) (domain.RetakeResponse, error) {
	var resp domain.RetakeResponse
	if err := c.do(ctx, http.MethodPost, "/assessments/retake", retakeRequest{AssessmentID: assessmentID, GenerateNew: generateNew}, &resp); err != nil {
		return domain.RetakeResponse{}, err
	}
	return resp, nil
}

// Grade fetches the stored grade report. ok is false when nothing was submitted yet.
func (c *Client) Grade(ctx context.Context, assessmentID string) (report domain.GradeReport, ok bool, err error) {
	var resp gradeResponse
	if err := c.do(ctx, http.MethodGet, "/assessments/"+url.PathEscape(assessmentID)+"/grade", nil, &resp); err != nil {
		return domain.GradeReport{}, false, err
	}
	if !resp.HasGrade || resp.GradeReport == nil {
		return domain.GradeReport{}, false, nil
	}
	return *resp.GradeReport, true, nil
}

// Assessment fetches an issued assessment by id.
func (c *Client) Assessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	var a domain.Assessment
	if err := c.do(ctx, http.MethodGet, "/assessments/"+url.PathEscape(assessmentID), nil, &a); err != nil {
		return domain.Assessment{}, err
	}
	return a, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	if body.Message != "" {
		return body.Message
	}
	switch d := body.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		raw, _ := json.Marshal(d)
		return string(raw)
	}
}

// IsRequestError reports whether err carries a non-success API response.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
