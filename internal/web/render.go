package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/logging"
	"github.com/suwonj/timeofme/internal/ops"
	"github.com/suwonj/timeofme/internal/source"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "summary", "backups"
}

// DashboardPageData is the template data for the report dashboard.
type DashboardPageData struct {
	PageData
	Report  *ops.ReportOutput
	Backups []source.File
	Query   DashboardQuery
}

// SummaryPageData is the template data for yesterday's summary.
type SummaryPageData struct {
	PageData
	Summary *ops.SummaryOutput
}

// BackupsPageData is the template data for the backup listing page.
type BackupsPageData struct {
	PageData
	Listing *ops.ListBackupsOutput
	Cache   *ops.CacheStatusOutput
	Cleared int
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	loc       *time.Location
	log       *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
// Times are displayed in loc.
func NewRenderer(templateFS fs.FS, version string, loc *time.Location, log *zap.Logger) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{version: version, loc: loc, log: logging.OrNop(log)}

	funcMap := template.FuncMap{
		"formatTime":  r.formatTime,
		"formatUnix":  r.formatUnix,
		"ago":         humanizeUnix,
		"bytes":       humanizeBytes,
		"pct":         func(f float64) string { return fmt.Sprintf("%.1f", f) },
		"px":          func(f float64) string { return fmt.Sprintf("%.1f", f) },
		"color":       safeColor,
		"pie":         pieGradient,
		"markdown":    renderInlineMarkdown,
		"rangeTitle":  rangeTitle,
		"trimJSONExt": func(s string) string { return strings.TrimSuffix(s, ".json") },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"dashboard": "dashboard.html",
		"summary":   "summary.html",
		"backups":   "backups.html",
		"error":     "error.html",
	}

	r.templates = make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		r.templates[name] = t
	}
	return r
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// htmx requests get only the "content" block.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isHTMX(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.log.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
// Only the code and message are exposed; details stay server-side.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	tErr := errors.As(err)
	status := tErr.Status
	message := tErr.Message

	if status >= 500 {
		r.log.Warn("request failed", zap.String("path", req.URL.Path), zap.Error(err))
	}

	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSONError(w, tErr)
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderJSONError writes the JSON error envelope.
func renderJSONError(w http.ResponseWriter, tErr *errors.TimeError) {
	renderJSON(w, tErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(tErr.Code),
			"message": tErr.Message,
			"status":  tErr.Status,
		},
	})
}

// renderJSONErrorFrom writes the JSON error envelope for any error.
func renderJSONErrorFrom(w http.ResponseWriter, err error) {
	renderJSONError(w, errors.As(err))
}

func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// formatTime formats t as "2006-01-02 15:04" in the display location.
func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format("2006-01-02 15:04")
}

// formatUnix formats a Unix timestamp like formatTime.
func (r *Renderer) formatUnix(unix int64) string {
	if unix == 0 {
		return ""
	}
	return r.formatTime(time.Unix(unix, 0))
}

// humanizeUnix renders a Unix timestamp relative to now ("3 hours ago").
func humanizeUnix(unix int64) string {
	if unix == 0 {
		return "never"
	}
	return humanize.Time(time.Unix(unix, 0))
}

func humanizeBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

var (
	rgbaColor = regexp.MustCompile(`^rgba?\(\s*[0-9.]+\s*(,\s*[0-9.]+\s*){2,3}\)$`)
	hexColor  = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
)

// safeColor passes through rgba() and hex colors and replaces anything else
// with the default color. Colors come from backup files.
func safeColor(c string) template.CSS {
	c = strings.TrimSpace(c)
	if rgbaColor.MatchString(c) || hexColor.MatchString(c) {
		return template.CSS(c)
	}
	return template.CSS(ops.DefaultColor)
}

// pieGradient builds a conic-gradient covering the slices in order.
func pieGradient(slices []ops.ChartSlice) template.CSS {
	if len(slices) == 0 {
		return template.CSS(ops.DefaultColor)
	}
	var b strings.Builder
	b.WriteString("conic-gradient(")
	var from float64
	for i, s := range slices {
		to := from + s.Percent
		if i == len(slices)-1 {
			to = 100
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.2f%% %.2f%%", safeColor(s.Color), from, to)
		from = to
	}
	b.WriteString(")")
	return template.CSS(b.String())
}

// renderInlineMarkdown converts a single line of markdown to HTML without
// the wrapping paragraph. Raw HTML in the input is escaped by goldmark.
func renderInlineMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	out := strings.TrimSpace(buf.String())
	out = strings.TrimPrefix(out, "<p>")
	out = strings.TrimSuffix(out, "</p>")
	return template.HTML(out)
}

// rangeTitle describes the report range for headings.
func rangeTitle(rep *ops.ReportOutput) string {
	if rep == nil {
		return ""
	}
	switch rep.Range {
	case "week":
		return rep.Start.Format("Jan 2") + " – " + rep.End.Format("Jan 2, 2006")
	case "month":
		return rep.Start.Format("January 2006")
	default:
		return rep.Start.Format("Monday, Jan 2, 2006")
	}
}
