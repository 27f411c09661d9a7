// Package client talks to a running pdfmerger server.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdfmerger/internal/models"
)

const (
	DefaultServer = "http://localhost:8080"
	// PollWait is the long-poll budget used by Follow.
	PollWait = 25 * time.Second
)

// Client is an HTTP client for the merge API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. An empty baseURL uses PDF_MERGER_SERVER or
// DefaultServer.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PDF_MERGER_SERVER")
	}
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// No overall timeout: streams and long-polls are bounded by ctx.
		httpClient: &http.Client{},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Layout mirrors the per-file options object accepted by POST /merge.
type Layout struct {
	PaperSize   string `json:"paper_size,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	FitMode     string `json:"fit_mode,omitempty"`
}

// Upload is one input file of a merge.
type Upload struct {
	Name   string
	Data   []byte
	Ranges string
	Layout *Layout
}

// UploadFromFile reads path into an Upload.
func UploadFromFile(path, ranges string, layout *Layout) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Upload{Name: filepath.Base(path), Data: data, Ranges: ranges, Layout: layout}, nil
}

// Merge submits files in order and returns the new job.
func (c *Client) Merge(ctx context.Context, files []Upload, outputName string) (models.MergeAccepted, error) {
	var accepted models.MergeAccepted

	ranges := make([]string, len(files))
	layouts := make([]*Layout, len(files))
	for i, f := range files {
		ranges[i], layouts[i] = f.Ranges, f.Layout
	}
	rangesJSON, err := json.Marshal(ranges)
	if err != nil {
		return accepted, fmt.Errorf("marshal ranges: %w", err)
	}
	layoutsJSON, err := json.Marshal(layouts)
	if err != nil {
		return accepted, fmt.Errorf("marshal options: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return accepted, fmt.Errorf("build request: %w", err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return accepted, fmt.Errorf("build request: %w", err)
		}
	}
	fields := map[string]string{
		"ranges":      string(rangesJSON),
		"options":     string(layoutsJSON),
		"output_name": outputName,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return accepted, fmt.Errorf("build request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return accepted, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/merge", &body, mw.FormDataContentType())
	if err != nil {
		return accepted, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return accepted, fmt.Errorf("decode response: %w", err)
	}
	return accepted, nil
}

// Status returns the current snapshot of a job.
func (c *Client) Status(ctx context.Context, jobID string) (models.Snapshot, error) {
	return c.Poll(ctx, jobID, 0, 0)
}

// Poll long-polls a job: the server answers once the revision is past since
// or wait has elapsed. A zero wait returns at once.
func (c *Client) Poll(ctx context.Context, jobID string, since uint64, wait time.Duration) (models.Snapshot, error) {
	var snap models.Snapshot

	path := "/merge/" + url.PathEscape(jobID)
	if wait > 0 {
		q := url.Values{}
		q.Set("since", strconv.FormatUint(since, 10))
		q.Set("wait", strconv.FormatFloat(wait.Seconds(), 'f', -1, 64))
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Follow long-polls until the job is terminal, calling fn for every new
// revision, and returns the terminal snapshot.
func (c *Client) Follow(ctx context.Context, jobID string, fn func(models.Snapshot)) (models.Snapshot, error) {
	snap, err := c.Status(ctx, jobID)
	if err != nil {
		return snap, err
	}
	if fn != nil {
		fn(snap)
	}
	for !snap.Status.Terminal() {
		next, err := c.Poll(ctx, jobID, snap.Revision, PollWait)
		if err != nil {
			return snap, err
		}
		if next.Revision != snap.Revision && fn != nil {
			fn(next)
		}
		snap = next
	}
	return snap, nil
}

// Watch reads the job's event stream, calling fn for every event, and
// returns the last snapshot received.
func (c *Client) Watch(ctx context.Context, jobID string, fn func(models.Snapshot)) (models.Snapshot, error) {
	var last models.Snapshot

	resp, err := c.do(ctx, http.MethodGet, "/merge/"+url.PathEscape(jobID)+"/events", nil, "")
	if err != nil {
		return last, err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return last, fmt.Errorf("decode event: %w", err)
		}
		last = snap
		if fn != nil {
			fn(snap)
		}
		if snap.Status.Terminal() {
			return last, nil
		}
	}
	if err := sc.Err(); err != nil {
		return last, fmt.Errorf("read events: %w", err)
	}
	return last, io.ErrUnexpectedEOF
}

// Fetch downloads the merged PDF into w.
func (c *Client) Fetch(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/merge/"+url.PathEscape(jobID)+"/result", nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download result: %w", err)
	}
	return n, nil
}

// ImageOptions are the form fields of POST /pdf-to-images. Zero values use
// the server defaults.
type ImageOptions struct {
	PageRange string
	DPI       int
	Quality   int
}

// PdfToImages converts the PDF at path and writes the ZIP into w.
func (c *Client) PdfToImages(ctx context.Context, path string, opts ImageOptions, w io.Writer) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	_ = mw.WriteField("page_range", opts.PageRange)
	if opts.DPI > 0 {
		_ = mw.WriteField("dpi", strconv.Itoa(opts.DPI))
	}
	if opts.Quality > 0 {
		_ = mw.WriteField("quality", strconv.Itoa(opts.Quality))
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/pdf-to-images", &body, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// do sends a request and turns non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var er models.ErrorResponse
	if json.Unmarshal(raw, &er) != nil || er.Detail == "" {
		er.Detail = strings.TrimSpace(string(raw))
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Detail: er.Detail}
}
