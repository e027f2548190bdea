package web

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
	log      *zap.Logger
}

// DashboardQuery is the dashboard state carried in the URL.
type DashboardQuery struct {
	Backup        string
	Date          string
	Range         string
	Chart         string
	ExcludeCommon bool
}

// URL returns the dashboard URL for q with one parameter replaced.
func (q DashboardQuery) URL(key, value string) string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("backup", q.Backup)
	set("date", q.Date)
	set("range", q.Range)
	set("chart", q.Chart)
	if q.ExcludeCommon {
		v.Set("exclude_common", "1")
	}

	if key == "exclude_common" {
		v.Del(key)
	}
	set(key, value)

	if len(v) == 0 {
		return "/dashboard"
	}
	return "/dashboard?" + v.Encode()
}

func dashboardQuery(r *http.Request) DashboardQuery {
	q := r.URL.Query()
	return DashboardQuery{
		Backup:        q.Get("backup"),
		Date:          q.Get("date"),
		Range:         q.Get("range"),
		Chart:         q.Get("chart"),
		ExcludeCommon: parseBoolParam(r, "exclude_common"),
	}
}

func (q DashboardQuery) reportInput() ops.ReportInput {
	return ops.ReportInput{
		Name:          q.Backup,
		Date:          q.Date,
		Range:         q.Range,
		Chart:         q.Chart,
		ExcludeCommon: q.ExcludeCommon,
	}
}

// HandleDashboard handles GET /dashboard: the chart and timeline for one range.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	query := dashboardQuery(r)

	report, err := ops.Report(r.Context(), h.env, query.reportInput())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Normalize the query to what the report resolved, so links are stable
	query.Date = report.Date
	query.Range = string(report.Range)
	query.Chart = report.Chart

	data := DashboardPageData{
		PageData: PageData{
			Title:   "Dashboard",
			Version: h.renderer.version,
			Nav:     "dashboard",
		},
		Report: report,
		Query:  query,
	}

	// The report already refreshed the listing, so this is a cache read
	if listing, err := ops.ListBackups(r.Context(), h.env, ops.ListBackupsInput{}); err == nil {
		data.Backups = listing.Files
	} else {
		h.log.Debug("backup selector unavailable", zap.Error(err))
	}

	h.renderer.renderPage(w, r, "dashboard", data)
}

// HandleSummary handles GET /summary: yesterday at a glance.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ops.Summary(r.Context(), h.env, ops.SummaryInput{
		Name: r.URL.Query().Get("backup"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "summary", SummaryPageData{
		PageData: PageData{
			Title:   "Yesterday",
			Version: h.renderer.version,
			Nav:     "summary",
		},
		Summary: summary,
	})
}

// HandleBackups handles GET /backups: the listing and cache state.
func (h *Handlers) HandleBackups(w http.ResponseWriter, r *http.Request) {
	listing, err := ops.ListBackups(r.Context(), h.env, ops.ListBackupsInput{
		Refresh: parseBoolParam(r, "refresh"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	status, err := ops.CacheStatus(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "backups", BackupsPageData{
		PageData: PageData{
			Title:   "Backups",
			Version: h.renderer.version,
			Nav:     "backups",
		},
		Listing: listing,
		Cache:   status,
		Cleared: parseIntParam(r, "cleared", -1),
	})
}

// HandleClearCache handles POST /cache/clear.
func (h *Handlers) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ClearCache(r.Context(), h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}
	http.Redirect(w, r, "/backups?cleared="+strconv.Itoa(out.Removed), http.StatusSeeOther)
}

// HandleReportJSON handles GET /api/report.
func (h *Handlers) HandleReportJSON(w http.ResponseWriter, r *http.Request) {
	report, err := ops.Report(r.Context(), h.env, dashboardQuery(r).reportInput())
	if err != nil {
		renderJSONErrorFrom(w, err)
		return
	}
	renderJSON(w, http.StatusOK, report)
}

// HandleSummaryJSON handles GET /api/summary.
func (h *Handlers) HandleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	summary, err := ops.Summary(r.Context(), h.env, ops.SummaryInput{
		Name: r.URL.Query().Get("backup"),
	})
	if err != nil {
		renderJSONErrorFrom(w, err)
		return
	}
	renderJSON(w, http.StatusOK, summary)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter. "on" is what an HTML
// checkbox submits.
func parseBoolParam(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1", "on":
		return true
	}
	return false
}
