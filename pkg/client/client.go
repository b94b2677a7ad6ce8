// Package client is a typed HTTP client for the stylegen API.
package client

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
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stylegen: http %d", e.Status)
	}
	return fmt.Sprintf("stylegen: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Settings mirrors the generation settings accepted by the API.
type Settings struct {
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	Quality      string `json:"quality,omitempty" yaml:"quality,omitempty"`
	Size         string `json:"size,omitempty" yaml:"size,omitempty"`
	Variations   int    `json:"variations,omitempty" yaml:"variations,omitempty"`
	Transparency bool   `json:"transparency" yaml:"transparency"`
	RenderText   bool   `json:"renderText" yaml:"renderText"`
}

type Job struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Kind           string    `json:"kind" yaml:"kind"`
	Concepts       []string  `json:"concepts" yaml:"concepts"`
	Settings       Settings  `json:"settings" yaml:"settings"`
	Status         string    `json:"status" yaml:"status"`
	Progress       int       `json:"progress" yaml:"progress"`
	Total          int       `json:"total" yaml:"total"`
	CompletedCount int       `json:"completedCount" yaml:"completedCount"`
	FailedCount    int       `json:"failedCount" yaml:"failedCount"`
	ErrorMessage   string    `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Terminal reports whether the job will not change again.
func (j Job) Terminal() bool {
	switch j.Status {
	case "completed", "failed", "cancelled":
		return true
	default:
		return false
	}
}

type Image struct {
	ID                      string    `json:"id" yaml:"id"`
	JobID                   string    `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	VisualConcept           string    `json:"visualConcept" yaml:"visualConcept"`
	ImageURL                string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Status                  string    `json:"status" yaml:"status"`
	ErrorMessage            string    `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	SourceImageID           string    `json:"sourceImageId,omitempty" yaml:"sourceImageId,omitempty"`
	RegenerationInstruction string    `json:"regenerationInstruction,omitempty" yaml:"regenerationInstruction,omitempty"`
	Model                   string    `json:"model" yaml:"model"`
	Size                    string    `json:"size" yaml:"size"`
	CreatedAt               time.Time `json:"createdAt" yaml:"createdAt"`
}

type GenerateRequest struct {
	JobName     string   `json:"jobName,omitempty"`
	SessionID   string   `json:"sessionId,omitempty"`
	StyleID     string   `json:"styleId,omitempty"`
	StylePrompt string   `json:"stylePrompt,omitempty"`
	Concepts    []string `json:"concepts"`
	Settings    Settings `json:"settings"`
}

type RegenerateRequest struct {
	SourceImageID          string    `json:"sourceImageId"`
	JobName                string    `json:"jobName,omitempty"`
	Instruction            string    `json:"instruction,omitempty"`
	Settings               *Settings `json:"settings,omitempty"`
	UseOriginalAsReference *bool     `json:"useOriginalAsReference,omitempty"`
}

// Client talks to one API base URL. Token is sent as a bearer token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.Token, nil
}

// acceptedJob is the 202 body of generate and regenerate. Servers that only
// send {jobId} still yield a Job with its ID set.
type acceptedJob struct {
	JobID string `json:"jobId"`
	Job
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Job, error) {
	return c.start(ctx, "/v1/generate", req)
}

func (c *Client) Regenerate(ctx context.Context, req RegenerateRequest) (*Job, error) {
	return c.start(ctx, "/v1/regenerate", req)
}

func (c *Client) start(ctx context.Context, path string, req any) (*Job, error) {
	var out acceptedJob
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = out.JobID
	}
	return &out.Job, nil
}

func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) Images(ctx context.Context, jobID string) ([]Image, error) {
	var out struct {
		Images []Image `json:"images"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/images", nil, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// DownloadZip writes the job's image archive to w.
func (c *Client) DownloadZip(ctx context.Context, jobID string, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/images.zip", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stylegen: decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and converts non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("stylegen: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("stylegen: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
	}
	return nil, apiErr
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
