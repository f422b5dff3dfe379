package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Apify v2 API.
const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the Apify platform. Transitional statuses
// (READY, RUNNING, ABORTING, TIMING-OUT) resolve to one of the terminal
// ones below.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED-OUT"
)

// Client defines the Apify v2 API operations used by the pipeline.
type Client interface {
	StartRun(ctx context.Context, actorID string, input any) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	DatasetItems(ctx context.Context, datasetID string, limit int) ([]Item, error)
}

// Run describes an actor run.
type Run struct {
	ID               string `json:"id"`
	ActorID          string `json:"actId"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Finished reports whether the run has reached a terminal status.
func (r *Run) Finished() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// Item is a single raw dataset record. Actor output schemas vary by actor
// and version, so items stay untyped until normalization.
type Item map[string]any

// runEnvelope wraps run objects in the API's data field.
type runEnvelope struct {
	Data Run `json:"data"`
}

// APIError is returned when Apify responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apify client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// actorPath encodes an owner/name actor ID for use in a URL path.
func actorPath(actorID string) string {
	return strings.ReplaceAll(actorID, "/", "~")
}

func (c *httpClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	var resp runEnvelope
	if err := c.post(ctx, fmt.Sprintf("/acts/%s/runs", actorPath(actorID)), input, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: start actor %s", actorID))
	}
	return &resp.Data, nil
}

func (c *httpClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var resp runEnvelope
	if err := c.get(ctx, fmt.Sprintf("/actor-runs/%s", runID), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: get run %s", runID))
	}
	return &resp.Data, nil
}

func (c *httpClient) DatasetItems(ctx context.Context, datasetID string, limit int) ([]Item, error) {
	path := fmt.Sprintf("/datasets/%s/items?clean=true&format=json", datasetID)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	var items []Item
	if err := c.get(ctx, path, &items); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: list dataset %s items", datasetID))
	}
	return items, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
