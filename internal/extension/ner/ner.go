// Package ner provides an extension Detector backed by an HTTP named-entity
// recognition sidecar. The sidecar answers POST {base}/classify with byte
// offset spans.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/types"
)

// Client calls the sidecar's /classify endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New creates a Client for baseURL (e.g. "http://ner:8001").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + "/classify",
		http: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spans []nerSpan `json:"spans"`
}

type nerSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// labelKinds maps common entity labels onto finding kinds.
var labelKinds = map[string]string{
	"PERSON": "person",
	"PER":    "person",
	"ORG":    "organization",
	"LOC":    "location",
	"GPE":    "location",
}

// KindForLabel maps a sidecar label to a finding kind.
func KindForLabel(label string) string {
	if k, ok := labelKinds[strings.ToUpper(label)]; ok {
		return k
	}
	return strings.ToLower(label)
}

func (c *Client) Name() string { return "ner" }

// Detect sends text to the sidecar. Span text is filled in by the registry.
func (c *Client) Detect(ctx context.Context, text string) ([]types.Finding, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, errors.Wrap(err, "ner: marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "ner: request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "ner: sidecar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("ner: unexpected status %d", resp.StatusCode)
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "ner: decode")
	}
	out := make([]types.Finding, 0, len(result.Spans))
	for _, s := range result.Spans {
		out = append(out, types.Finding{Kind: KindForLabel(s.Label), Start: s.Start, End: s.End})
	}
	return out, nil
}
