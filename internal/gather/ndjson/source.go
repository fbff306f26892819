package ndjson

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"replaychart/internal/gather"
)

var _ gather.Source = (*HTTPSource)(nil)
var _ gather.Source = (*DirSource)(nil)

// StatusError is returned by HTTPSource for a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// ---------------------------------------------------------------------------
// HTTPSource
// ---------------------------------------------------------------------------

// HTTPSource fetches files as <baseURL>/<name>.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithTimeout bounds each fetch. Zero means no timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		c := *s.client
		c.Timeout = d
		s.client = &c
	}
}

// NewHTTPSource creates a source reading from baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) String() string { return s.baseURL }

// URL returns the address a file is fetched from.
func (s *HTTPSource) URL(name string) string {
	return s.baseURL + "/" + url.PathEscape(name)
}

// Fetch downloads the whole body of name.
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	u := s.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", name, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: u, Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return body, nil
}

// ---------------------------------------------------------------------------
// DirSource
// ---------------------------------------------------------------------------

// DirSource reads files from a file system, typically a local data directory.
type DirSource struct {
	fsys fs.FS
	desc string
}

// NewDirSource reads from dir on the local disk.
func NewDirSource(dir string) *DirSource {
	return &DirSource{fsys: os.DirFS(dir), desc: dir}
}

// NewFSSource reads from an arbitrary fs.FS.
func NewFSSource(fsys fs.FS, desc string) *DirSource {
	return &DirSource{fsys: fsys, desc: desc}
}

func (s *DirSource) String() string { return s.desc }

// Fetch reads the whole file. ctx is only checked before the read.
func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
