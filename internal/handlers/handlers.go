package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdfmerger/internal/extractor"
	"pdfmerger/internal/i18n"
	"pdfmerger/internal/jobs"
	"pdfmerger/internal/merger"
	"pdfmerger/internal/models"
	"pdfmerger/internal/pageranges"
	"pdfmerger/templates"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

const (
	defaultOutputName = "merged.pdf"
	maxWait           = 30 * time.Second
	multipartMemory   = 32 << 20
	recentJobsLimit   = 10
)

// Merger builds the assembler for one merge request.
type Merger interface {
	NewAssembler(files []merger.File) jobs.Assembler
}

// PageExtractor renders PDF pages to a ZIP of JPEGs.
type PageExtractor interface {
	ExtractPages(ctx context.Context, name string, data []byte, pages []int, opts extractor.Options, cb extractor.ProgressCallback) ([]byte, error)
}

// Options configures the HTTP layer.
type Options struct {
	// Required X-API-KEY value. Empty disables the check.
	APIKey      string
	MaxUploadMB int
	StaticDir   string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type App struct {
	logger *slog.Logger

	router    *chi.Mux
	registry  *jobs.Registry
	merger    Merger
	extractor PageExtractor
	opts      Options

	// jobCtx outlives requests; cancelling it makes running jobs fail.
	jobCtx context.Context

	upgrader websocket.Upgrader
}

func NewApp(jobCtx context.Context, logger *slog.Logger, registry *jobs.Registry, m Merger, ex PageExtractor, opts Options) *App {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 200
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}

	app := &App{
		logger:    logger,
		router:    chi.NewRouter(),
		registry:  registry,
		merger:    m,
		extractor: ex,
		opts:      opts,
		jobCtx:    jobCtx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(a.logRequests)
	a.router.Use(middleware.Recoverer)
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-KEY"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	a.router.Get("/", a.index)
	a.router.Get("/pdf-merger/", a.index)
	a.router.Get("/pdf-to-images", a.imagesPage)
	a.router.Get("/healthz", a.health)
	a.router.Get("/api/v1/health", a.healthPlain)
	if a.opts.Metrics != nil {
		a.router.Handle("/metrics", a.opts.Metrics)
	}

	staticFS := http.FileServer(http.Dir(a.opts.StaticDir))
	a.router.Handle("/static/*", http.StripPrefix("/static/", staticFS))

	a.router.Group(func(r chi.Router) {
		r.Use(a.requireAPIKey)
		r.With(a.limitUpload).Post("/merge", a.createMerge)
		r.Get("/merge/{id}", a.mergeStatus)
		r.Get("/merge/{id}/events", a.mergeEvents)
		r.Get("/merge/{id}/result", a.mergeResult)
		r.Get("/ws/merge/{id}", a.mergeWS)
		r.With(a.limitUpload).Post("/pdf-to-images", a.pdfToImages)
	})
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "ok",
		"jobs":      a.registry.Len(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *App) healthPlain(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

func (a *App) pageData(r *http.Request) templates.PageData {
	return templates.PageData{
		T:              i18n.For(i18n.Detect(r)),
		UploadLimitMB:  a.opts.MaxUploadMB,
		APIKeyRequired: a.opts.APIKey != "",
	}
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, templates.IndexPage(a.pageData(r), a.registry.List(recentJobsLimit)))
}

func (a *App) imagesPage(w http.ResponseWriter, r *http.Request) {
	defaults := templates.ImagesDefaults{DPI: extractor.DefaultDPI, Quality: extractor.DefaultQuality}
	a.render(w, r, templates.PdfToImagesPage(a.pageData(r), defaults))
}

func (a *App) createMerge(w http.ResponseWriter, r *http.Request) {
	form, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	headers := form.File["files"]
	if len(headers) == 0 {
		a.respondError(w, r, http.StatusBadRequest, "No files uploaded.")
		return
	}
	for i, fh := range headers {
		if _, err := merger.DetectKind(uploadName(fh, i)); err != nil {
			a.respondError(w, r, http.StatusBadRequest, "Unsupported file type: "+uploadName(fh, i))
			return
		}
	}

	ranges, err := merger.ParseRanges(r.FormValue("ranges"), len(headers))
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, "Invalid ranges JSON: "+err.Error())
		return
	}
	layouts, err := merger.ParseLayouts(r.FormValue("options"), len(headers))
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, "Invalid options JSON: "+err.Error())
		return
	}

	files := make([]merger.File, 0, len(headers))
	for i, fh := range headers {
		name := uploadName(fh, i)
		data, err := readUpload(fh)
		if err != nil {
			a.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("Failed to read '%s': %v", name, err))
			return
		}
		files = append(files, merger.File{Name: name, Data: data, Ranges: ranges[i], Layout: layouts[i]})
	}

	job := a.registry.Create(finalizeName(r.FormValue("output_name")))
	a.registry.Start(a.jobCtx, job, a.merger.NewAssembler(files))

	a.logger.Info("merge accepted", "job_id", job.ID(), "files", len(files), "request_id", middleware.GetReqID(r.Context()))
	render.JSON(w, r, models.MergeAccepted{JobID: job.ID(), OutputName: job.OutputName()})
}

// mergeStatus returns the job snapshot. With since and wait it long-polls:
// it blocks until the revision moves past since, the job is terminal or
// wait elapses.
func (a *App) mergeStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookup(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var since uint64
	hasSince := q.Get("since") != ""
	if hasSince {
		v, err := strconv.ParseUint(q.Get("since"), 10, 64)
		if err != nil {
			a.respondError(w, r, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}
	var wait time.Duration
	if raw := q.Get("wait"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 || secs > maxWait.Seconds() {
			a.respondError(w, r, http.StatusBadRequest, "wait must be between 0 and 30 seconds")
			return
		}
		wait = time.Duration(secs * float64(time.Second))
	}

	if hasSince && wait > 0 && needsWait(job.Snapshot(), since) {
		ch := job.Channel()
		l := ch.Register()
		defer ch.Unregister(l)

		// A broadcast between the first check and Register would be lost,
		// so look again now that the listener is in place.
		if needsWait(job.Snapshot(), since) {
			_, err := ch.Wait(r.Context(), l, wait)
			if err != nil && !errors.Is(err, jobs.ErrWaitTimeout) {
				return
			}
		}
	}

	render.JSON(w, r, job.Snapshot())
}

func needsWait(s models.Snapshot, since uint64) bool {
	return s.Revision <= since && !s.Status.Terminal()
}

// mergeEvents streams snapshots as server-sent events until the job is
// terminal or the client goes away.
func (a *App) mergeEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookup(w, r)
	if !ok {
		return
	}

	ch := job.Channel()
	l := ch.Register()
	defer ch.Unregister(l)

	ev, err := jobs.NewEvent(job.Snapshot())
	if err != nil {
		a.logger.Error("event encoding failed", "job_id", job.ID(), "error", err)
		a.respondError(w, r, http.StatusInternalServerError, "Failed to encode job state")
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	last := ev.Snapshot.Revision
	if err := writeSSE(w, rc, ev.Data); err != nil || ev.Snapshot.Status.Terminal() {
		return
	}

	for {
		ev, err := ch.Wait(r.Context(), l, 0)
		if err != nil {
			return
		}
		if ev.Snapshot.Revision <= last {
			continue
		}
		last = ev.Snapshot.Revision
		if err := writeSSE(w, rc, ev.Data); err != nil {
			a.logger.Debug("event stream closed", "job_id", job.ID(), "error", err)
			return
		}
		if ev.Snapshot.Status.Terminal() {
			return
		}
	}
}

func writeSSE(w io.Writer, rc *http.ResponseController, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}

func (a *App) mergeResult(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookup(w, r)
	if !ok {
		return
	}
	data, ok := job.Result()
	if !ok {
		a.respondError(w, r, http.StatusConflict, "Result not ready")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment(job.OutputName()))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		a.logger.Warn("failed to send result", "job_id", job.ID(), "error", err)
	}
}

// mergeWS pushes the same snapshots as mergeEvents over a WebSocket.
func (a *App) mergeWS(w http.ResponseWriter, r *http.Request) {
	job, ok := a.lookup(w, r)
	if !ok {
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := job.Channel()
	l := ch.Register()
	defer ch.Unregister(l)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ev, err := jobs.NewEvent(job.Snapshot())
	if err != nil {
		a.logger.Error("event encoding failed", "job_id", job.ID(), "error", err)
		return
	}
	last := ev.Snapshot.Revision
	for {
		if err := conn.WriteMessage(websocket.TextMessage, ev.Data); err != nil {
			return
		}
		if ev.Snapshot.Status.Terminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(ev.Snapshot.Status)),
				time.Now().Add(time.Second))
			return
		}
		for {
			if ev, err = ch.Wait(ctx, l, 0); err != nil {
				return
			}
			if ev.Snapshot.Revision > last {
				last = ev.Snapshot.Revision
				break
			}
		}
	}
}

func (a *App) pdfToImages(w http.ResponseWriter, r *http.Request) {
	form, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	fhs := form.File["file"]
	if len(fhs) == 0 {
		a.respondError(w, r, http.StatusBadRequest, "No file uploaded.")
		return
	}
	fh := fhs[0]
	name := uploadName(fh, 0)
	if kind, err := merger.DetectKind(name); err != nil || kind != merger.KindPDF {
		if fh.Header.Get("Content-Type") != "application/pdf" {
			a.respondError(w, r, http.StatusBadRequest, "Only PDF files are supported. Please upload a PDF file.")
			return
		}
	}

	var opts extractor.Options
	var err error
	if opts.DPI, err = formInt(r, "dpi"); err != nil {
		a.respondError(w, r, http.StatusBadRequest, "dpi must be an integer")
		return
	}
	if opts.Quality, err = formInt(r, "quality"); err != nil {
		a.respondError(w, r, http.StatusBadRequest, "quality must be an integer")
		return
	}
	if err := opts.Validate(); err != nil {
		a.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("Failed to read '%s': %v", name, err))
		return
	}
	if len(data) == 0 {
		a.respondError(w, r, http.StatusBadRequest, "Empty file: "+name)
		return
	}

	numPages, err := merger.CountPages(name, data)
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pages, err := pageranges.Parse(r.FormValue("page_range"), numPages)
	if err != nil {
		a.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	archive, err := a.extractor.ExtractPages(r.Context(), name, data, pages, opts, nil)
	if err != nil {
		if errors.Is(err, extractor.ErrNoPages) {
			a.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("pdf to images failed", "file", name, "error", err)
		a.respondError(w, r, http.StatusInternalServerError, "Failed to convert PDF to images: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(extractor.ArchiveName(name)))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	_, _ = w.Write(archive)
}

func (a *App) lookup(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	job, err := a.registry.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, r, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return job, true
}

// parseUpload caps the body and parses the multipart form.
func (a *App) parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.respondError(w, r, http.StatusRequestEntityTooLarge, a.tooLargeMessage())
			return nil, false
		}
		a.logger.Warn("invalid multipart upload", "error", err)
		a.respondError(w, r, http.StatusBadRequest, "Invalid multipart upload")
		return nil, false
	}
	return r.MultipartForm, true
}

func (a *App) maxUploadBytes() int64 {
	return int64(a.opts.MaxUploadMB) * 1024 * 1024
}

func (a *App) tooLargeMessage() string {
	return fmt.Sprintf("Payload too large (> %d MB).", a.opts.MaxUploadMB)
}

func (a *App) render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		a.logger.Error("failed to render template", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func (a *App) respondError(w http.ResponseWriter, r *http.Request, code int, detail string) {
	render.Status(r, code)
	render.JSON(w, r, models.ErrorResponse{Detail: detail})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func uploadName(fh *multipart.FileHeader, i int) string {
	name := filepath.Base(strings.TrimSpace(fh.Filename))
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("upload-%d.pdf", i+1)
	}
	return name
}

func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// finalizeName defaults to merged.pdf and makes sure the name ends in .pdf.
func finalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultOutputName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return `attachment; filename="download"`
}
