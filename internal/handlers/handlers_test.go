package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfmerger/internal/extractor"
	"pdfmerger/internal/jobs"
	"pdfmerger/internal/merger"
	"pdfmerger/internal/metrics"
	"pdfmerger/internal/models"
)

type upload struct {
	field string
	name  string
	data  []byte
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		doc.AddPage()
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, uploads []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		fw, err := mw.CreateFormFile(u.field, u.name)
		require.NoError(t, err)
		_, err = fw.Write(u.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// gatedMerger hands out assemblers that block in Plan until release is
// closed, then produce a single page.
type gatedMerger struct {
	release chan struct{}
}

func newGatedMerger() *gatedMerger {
	return &gatedMerger{release: make(chan struct{})}
}

func (m *gatedMerger) NewAssembler(files []merger.File) jobs.Assembler {
	return &gatedAssembler{release: m.release}
}

type gatedAssembler struct {
	release chan struct{}
}

func (a *gatedAssembler) Plan(ctx context.Context) (int, error) {
	select {
	case <-a.release:
		return 1, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (a *gatedAssembler) Assemble(ctx context.Context, progress jobs.ProgressFunc) ([]byte, error) {
	progress(1, "a.pdf")
	return []byte("%PDF-1.4 gated"), nil
}

type fakeExtractor struct {
	pages []int
	opts  extractor.Options
	err   error
}

func (f *fakeExtractor) ExtractPages(ctx context.Context, name string, data []byte, pages []int, opts extractor.Options, cb extractor.ProgressCallback) ([]byte, error) {
	f.pages, f.opts = pages, opts
	if f.err != nil {
		return nil, f.err
	}
	return []byte("PK\x03\x04"), nil
}

type testEnv struct {
	app      *App
	registry *jobs.Registry
	ex       *fakeExtractor
}

func newEnv(t *testing.T, m Merger, opts Options) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := discardLogger()
	registry := jobs.NewRegistry(logger, jobs.Hooks{})
	if m == nil {
		m = merger.NewService(logger, merger.NewPool(2))
	}
	ex := &fakeExtractor{}
	return &testEnv{
		app:      NewApp(ctx, logger, registry, m, ex, opts),
		registry: registry,
		ex:       ex,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.app.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) submit(t *testing.T, uploads []upload, fields map[string]string) models.MergeAccepted {
	t.Helper()
	rec := e.do(multipartRequest(t, "/merge", uploads, fields))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var accepted models.MergeAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)
	return accepted
}

func (e *testEnv) snapshot(t *testing.T, target string) models.Snapshot {
	t.Helper()
	rec := e.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

// waitTerminal follows the job with long-polls until it finishes.
func (e *testEnv) waitTerminal(t *testing.T, id string) models.Snapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var since uint64
	for time.Now().Before(deadline) {
		snap := e.snapshot(t, "/merge/"+id+"?since="+strconv.FormatUint(since, 10)+"&wait=5")
		if snap.Status.Terminal() {
			return snap
		}
		since = snap.Revision
	}
	t.Fatalf("job %s did not finish", id)
	return models.Snapshot{}
}

func TestMergeEndToEnd(t *testing.T) {
	env := newEnv(t, nil, Options{})

	accepted := env.submit(t, []upload{
		{field: "files", name: "a.pdf", data: makePDF(t, 1)},
		{field: "files", name: "b.pdf", data: makePDF(t, 1)},
	}, map[string]string{"ranges": `["",""]`, "output_name": "report"})
	assert.Equal(t, "report.pdf", accepted.OutputName)

	snap := env.waitTerminal(t, accepted.JobID)
	assert.Equal(t, models.StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.TotalPages)
	assert.Equal(t, 2, snap.ProcessedPages)
	assert.Equal(t, 100.0, snap.Percent)
	assert.True(t, snap.HasResult)
	assert.Empty(t, snap.Error)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/merge/"+accepted.JobID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report.pdf`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestMergeOutOfBoundsRange(t *testing.T) {
	env := newEnv(t, nil, Options{})

	accepted := env.submit(t, []upload{
		{field: "files", name: "short.pdf", data: makePDF(t, 1)},
	}, map[string]string{"ranges": `["5"]`})
	assert.Equal(t, "merged.pdf", accepted.OutputName)

	snap := env.waitTerminal(t, accepted.JobID)
	assert.Equal(t, models.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "range out of bounds")
	assert.False(t, snap.HasResult)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/merge/"+accepted.JobID+"/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"detail":"Result not ready"}`, rec.Body.String())
}

func TestMergeRejectsBadRequests(t *testing.T) {
	env := newEnv(t, nil, Options{})

	tests := []struct {
		name    string
		uploads []upload
		fields  map[string]string
		detail  string
	}{
		{
			name:   "no files",
			fields: map[string]string{"output_name": "x.pdf"},
			detail: "No files uploaded.",
		},
		{
			name:    "unsupported type",
			uploads: []upload{{field: "files", name: "notes.txt", data: []byte("hi")}},
			detail:  "Unsupported file type: notes.txt",
		},
		{
			name:    "ranges not a list",
			uploads: []upload{{field: "files", name: "a.pdf", data: makePDF(t, 1)}},
			fields:  map[string]string{"ranges": `{"a":1}`},
			detail:  "Invalid ranges JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(multipartRequest(t, "/merge", tt.uploads, tt.fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
	assert.Equal(t, 0, env.registry.Len())
}

func TestUnknownJob(t *testing.T) {
	env := newEnv(t, nil, Options{})

	for _, target := range []string{"/merge/nope", "/merge/nope/result", "/merge/nope/events"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"detail":"Job not found"}`, rec.Body.String(), target)
	}
}

func TestLongPollTimesOutWithoutChange(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})
	defer close(m.release)

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	var current models.Snapshot
	require.Eventually(t, func() bool {
		current = env.snapshot(t, "/merge/"+accepted.JobID)
		return current.Status == models.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	snap := env.snapshot(t, "/merge/"+accepted.JobID+"?since="+strconv.FormatUint(current.Revision, 10)+"&wait=2")
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 1900*time.Millisecond)
	assert.Less(t, elapsed, 4*time.Second)
	assert.Equal(t, current.Revision, snap.Revision)
	assert.Equal(t, models.StatusRunning, snap.Status)
}

func TestLongPollWakesOnBroadcast(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	var current models.Snapshot
	require.Eventually(t, func() bool {
		current = env.snapshot(t, "/merge/"+accepted.JobID)
		return current.Status == models.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(m.release)
	}()

	start := time.Now()
	snap := env.snapshot(t, "/merge/"+accepted.JobID+"?since="+strconv.FormatUint(current.Revision, 10)+"&wait=10")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Greater(t, snap.Revision, current.Revision)
}

func TestWaitWithoutSinceDoesNotBlock(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})
	defer close(m.release)

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	start := time.Now()
	snap := env.snapshot(t, "/merge/"+accepted.JobID+"?wait=5")
	assert.Less(t, time.Since(start), time.Second, "wait without since must not block")
	assert.Equal(t, accepted.JobID, snap.JobID)
}

func TestLongPollValidatesQuery(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})
	defer close(m.release)

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	for _, q := range []string{"?since=-1", "?since=abc", "?wait=31", "?wait=-1"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/merge/"+accepted.JobID+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestEventStream(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})
	srv := httptest.NewServer(env.app.Router())
	defer srv.Close()

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	resp, err := http.Get(srv.URL + "/merge/" + accepted.JobID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan models.Snapshot, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap models.Snapshot
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap) == nil {
				events <- snap
			}
		}
	}()

	first := <-events
	assert.Equal(t, accepted.JobID, first.JobID)
	close(m.release)

	var last models.Snapshot
	prev := first.Revision
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case snap, ok := <-events:
			if !ok {
				done = true
				break
			}
			assert.Greater(t, snap.Revision, prev)
			prev = snap.Revision
			last = snap
		case <-timeout:
			t.Fatal("event stream did not finish")
		}
	}
	assert.Equal(t, models.StatusCompleted, last.Status)
	assert.True(t, last.HasResult)
}

func TestWebSocketStream(t *testing.T) {
	m := newGatedMerger()
	env := newEnv(t, m, Options{})
	srv := httptest.NewServer(env.app.Router())
	defer srv.Close()

	accepted := env.submit(t, []upload{{field: "files", name: "a.pdf", data: []byte("x")}}, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/merge/" + accepted.JobID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	close(m.release)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var last models.Snapshot
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		require.NoError(t, json.Unmarshal(data, &last))
	}
	assert.Equal(t, models.StatusCompleted, last.Status)
}

func TestAPIKey(t *testing.T) {
	env := newEnv(t, nil, Options{APIKey: "secret"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/merge/abc", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid API key"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/merge/abc", nil)
	req.Header.Set("X-API-KEY", "wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/merge/abc", nil)
	req.Header.Set("X-API-KEY", "secret")
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)

	// Pages and health stay public.
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)).Code)
}

func TestUploadTooLarge(t *testing.T) {
	env := newEnv(t, nil, Options{MaxUploadMB: 1})

	big := bytes.Repeat([]byte("x"), 2<<20)
	req := multipartRequest(t, "/merge", []upload{{field: "files", name: "big.pdf", data: big}}, nil)
	req.ContentLength = int64(len(big)) + 512

	rec := env.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"detail":"Payload too large (> 1 MB)."}`, rec.Body.String())
}

func TestUploadTooLargeWithoutContentLength(t *testing.T) {
	env := newEnv(t, nil, Options{MaxUploadMB: 1})

	big := bytes.Repeat([]byte("x"), 2<<20)
	req := multipartRequest(t, "/merge", []upload{{field: "files", name: "big.pdf", data: big}}, nil)
	req.ContentLength = -1

	rec := env.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPdfToImages(t *testing.T) {
	env := newEnv(t, nil, Options{})

	req := multipartRequest(t, "/pdf-to-images",
		[]upload{{field: "file", name: "doc.pdf", data: makePDF(t, 3)}},
		map[string]string{"page_range": "3-2", "dpi": "150"})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=doc_images.zip", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []int{2, 1}, env.ex.pages)
	assert.Equal(t, 150, env.ex.opts.DPI)
	assert.Equal(t, extractor.DefaultQuality, env.ex.opts.Quality)
}

func TestPdfToImagesRejectsBadInput(t *testing.T) {
	env := newEnv(t, nil, Options{})

	tests := []struct {
		name   string
		file   upload
		fields map[string]string
		detail string
	}{
		{
			name:   "not a pdf",
			file:   upload{field: "file", name: "photo.png", data: []byte("png")},
			detail: "Only PDF files are supported",
		},
		{
			name:   "range out of bounds",
			file:   upload{field: "file", name: "doc.pdf", data: makePDF(t, 1)},
			fields: map[string]string{"page_range": "4"},
			detail: "range out of bounds",
		},
		{
			name:   "dpi too high",
			file:   upload{field: "file", name: "doc.pdf", data: makePDF(t, 1)},
			fields: map[string]string{"dpi": "1200"},
			detail: "dpi must be between 72 and 600",
		},
		{
			name:   "empty file",
			file:   upload{field: "file", name: "doc.pdf"},
			detail: "Empty file: doc.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(multipartRequest(t, "/pdf-to-images", []upload{tt.file}, tt.fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestPagesAndOps(t *testing.T) {
	collector := metrics.NewCollector()
	env := newEnv(t, nil, Options{Metrics: collector.Handler()})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	req := httptest.NewRequest(http.MethodGet, "/pdf-to-images", nil)
	req.Header.Set("Accept-Language", "ko-KR")
	rec = env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lang="ko"`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pdfmerger_jobs_created_total")
}

func TestFinalizeName(t *testing.T) {
	assert.Equal(t, "merged.pdf", finalizeName(""))
	assert.Equal(t, "merged.pdf", finalizeName("  "))
	assert.Equal(t, "out.pdf", finalizeName("out"))
	assert.Equal(t, "OUT.PDF", finalizeName("OUT.PDF"))
}
