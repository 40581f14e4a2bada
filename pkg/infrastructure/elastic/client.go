// Package elastic implements the delivery.DocumentStore contract against an
// Elasticsearch-compatible HTTP API.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fitsearch/pipeline/pkg/delivery"
	httputil "github.com/fitsearch/pipeline/pkg/infrastructure/http"
)

const defaultTimeout = 30 * time.Second

// Client is a minimal Elasticsearch API client covering the operations the
// delivery engine needs: bulk indexing, index settings and refresh.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the given base URL
// (e.g. http://localhost:9200).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Ping performs a GET / to verify the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", "", nil)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	resp.Body.Close()
	return nil
}

// bulkResponse mirrors the subset of the _bulk response the engine needs.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// SubmitBatch submits one chunk through the _bulk API as NDJSON index
// actions. A transport or whole-call error returns err; otherwise the
// per-item outcomes are mapped back by position.
func (c *Client) SubmitBatch(ctx context.Context, items []delivery.Item) ([]delivery.ItemResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		action := map[string]map[string]string{
			"index": {"_index": item.Index, "_id": item.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(item.Body); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", item.ID, err)
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	if len(body.Items) != len(items) {
		return nil, fmt.Errorf("bulk response item count %d does not match submitted %d", len(body.Items), len(items))
	}

	results := make([]delivery.ItemResult, len(items))
	for i, wrapper := range body.Items {
		// Each item is keyed by its action type; we only send index actions.
		outcome, ok := wrapper["index"]
		if !ok {
			results[i] = delivery.ItemResult{ID: items[i].ID, OK: false, Err: "missing index outcome"}
			continue
		}
		r := delivery.ItemResult{ID: outcome.ID, OK: outcome.Status < 400}
		if r.ID == "" {
			r.ID = items[i].ID
		}
		if !r.OK {
			if outcome.Error != nil {
				r.Err = fmt.Sprintf("%s: %s", outcome.Error.Type, outcome.Error.Reason)
			} else {
				r.Err = fmt.Sprintf("status %d", outcome.Status)
			}
		}
		results[i] = r
	}
	return results, nil
}

// IndexExists issues a HEAD request for the index.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/"+url.PathEscape(name), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 400:
		return false, &httputil.HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	default:
		return true, nil
	}
}

// CreateIndex creates the index with the given settings.
func (c *Client) CreateIndex(ctx context.Context, name string, settings delivery.IndexSettings) error {
	body := map[string]any{"settings": settingsBody(settings)}
	resp, err := c.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(name), body)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	resp.Body.Close()
	return nil
}

// UpdateIndexSettings applies the settings to an existing index.
func (c *Client) UpdateIndexSettings(ctx context.Context, name string, settings delivery.IndexSettings) error {
	resp, err := c.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(name)+"/_settings", settingsBody(settings))
	if err != nil {
		return fmt.Errorf("update settings for %s: %w", name, err)
	}
	resp.Body.Close()
	return nil
}

// RefreshIndex forces a refresh so newly indexed documents become visible.
func (c *Client) RefreshIndex(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(name)+"/_refresh", "", nil)
	if err != nil {
		return fmt.Errorf("refresh index %s: %w", name, err)
	}
	resp.Body.Close()
	return nil
}

func settingsBody(settings delivery.IndexSettings) map[string]any {
	return map[string]any{
		"index": map[string]any{
			"number_of_replicas": settings.NumberOfReplicas,
			"refresh_interval":   settings.RefreshInterval,
		},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
