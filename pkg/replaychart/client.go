// Package replaychart is a Go SDK for the replay-server HTTP API.
package replaychart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Bar is one candlestick as served by the API.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// VolumePoint is one histogram entry.
type VolumePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Style holds the chart palette.
type Style struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Volume string `json:"volume"`
}

// Chart is the full chart payload.
type Chart struct {
	Symbol   string        `json:"symbol"`
	Timezone string        `json:"timezone"`
	Version  int64         `json:"version"`
	Done     bool          `json:"done"`
	Bars     []Bar         `json:"bars"`
	Volume   []VolumePoint `json:"volume"`
	Style    Style         `json:"style"`
}

// Status reports ingest progress.
type Status struct {
	RunID       string    `json:"run_id"`
	Symbol      string    `json:"symbol"`
	Timezone    string    `json:"timezone"`
	Files       int       `json:"files"`
	Loaded      int       `json:"loaded"`
	Skipped     int       `json:"skipped"`
	Malformed   int       `json:"malformed"`
	Records     int       `json:"records"`
	Bars        int       `json:"bars"`
	Dropped     int       `json:"dropped"`
	Version     int64     `json:"version"`
	Done        bool      `json:"done"`
	Error       string    `json:"error"`
	Subscribers int       `json:"subscribers"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replay-server: %d %s", e.Code, e.Message)
}

// Client provides a Go SDK for interacting with the replay-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new replay-server API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetChart retrieves the full current chart.
func (c *Client) GetChart(ctx context.Context) (*Chart, error) {
	var out Chart
	if err := c.get(ctx, "/api/chart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBars retrieves bars with from <= time <= to. Zero leaves a bound open.
func (c *Client) GetBars(ctx context.Context, from, to int64) ([]Bar, error) {
	var out struct {
		Bars []Bar `json:"bars"`
	}
	if err := c.get(ctx, "/api/bars", rangeQuery(from, to), &out); err != nil {
		return nil, err
	}
	return out.Bars, nil
}

// GetVolume retrieves volume points with from <= time <= to.
func (c *Client) GetVolume(ctx context.Context, from, to int64) ([]VolumePoint, error) {
	var out struct {
		Volume []VolumePoint `json:"volume"`
	}
	if err := c.get(ctx, "/api/volume", rangeQuery(from, to), &out); err != nil {
		return nil, err
	}
	return out.Volume, nil
}

// GetStatus retrieves ingest status.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func rangeQuery(from, to int64) url.Values {
	q := url.Values{}
	if from != 0 {
		q.Set("from", strconv.FormatInt(from, 10))
	}
	if to != 0 {
		q.Set("to", strconv.FormatInt(to, 10))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Code: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
