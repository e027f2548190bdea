package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suwonj/timeofme/internal/config"
	"github.com/suwonj/timeofme/internal/db"
	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/logging"
	"github.com/suwonj/timeofme/internal/ops"
	"github.com/suwonj/timeofme/internal/source"
)

const testBackup = `{
  "time": 1705482000,
  "activities": [
    [1, "Work", 0, 0, 0, "66,133,244,1", "💼"],
    [2, "Sleep", 0, 0, 0, "120,120,120,0.8", "😴"],
    [3, "Evil", 0, 0, 0, "1,2,3);background:url(x", "😈"]
  ],
  "intervals": [
    [1705482000, 0, "", 1],
    [1705478400, 1800, "Deep work #focus", 1],
    [1705477800, 0, "", 3],
    [1705449600, 0, "", 2]
  ],
  "tasks": [
    {"title": "Ship **v2** #release", "date": "2024-01-17"},
    {"title": "<script>alert(1)</script>"}
  ]
}`

type stubSource struct {
	listErr error
	body    string
}

func (s *stubSource) ListFiles(ctx context.Context) ([]source.File, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []source.File{{Name: "2024-01-17.json", SHA: "b", Size: int64(len(testBackup)), Type: "file"}}, nil
}

func (s *stubSource) Fetch(ctx context.Context, f source.File) ([]byte, error) {
	if s.body != "" {
		return []byte(s.body), nil
	}
	return []byte(testBackup), nil
}

func setupTest(t *testing.T) (*Handlers, *stubSource) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CommonActivities = []string{"Sleep"}

	src := &stubSource{}
	env := &ops.Env{
		DB:     database,
		Source: src,
		Config: cfg,
		Logger: logging.Nop(),
		Now:    func() time.Time { return time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC) },
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	require.NoError(t, err)

	return &Handlers{
		env:      env,
		renderer: NewRenderer(templateSub, "test", time.UTC, logging.Nop()),
		log:      logging.Nop(),
	}, src
}

func serve(h http.HandlerFunc, method, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// --- Dashboard ---

func TestHandleDashboard_Day(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "<!DOCTYPE html>")
	require.Contains(t, body, "Wednesday, Jan 17, 2024")
	require.Contains(t, body, "2024-01-17.json")
	require.Contains(t, body, "Sleep")
	require.Contains(t, body, "Deep work")
	require.Contains(t, body, "07:50:00")
	require.Contains(t, body, "Total 09:00:00")
	require.Contains(t, body, "rgba(66,133,244,1)")
	require.Contains(t, body, "Ship <strong>v2</strong>")
}

func TestHandleDashboard_EscapesBackupContent(t *testing.T) {
	h, _ := setupTest(t)

	body := serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17").Body.String()
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.NotContains(t, body, "url(x")
}

func TestHandleDashboard_HtmxReturnsContentOnly(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")
	require.Contains(t, rec.Body.String(), "Deep work")
}

func TestHandleDashboard_Empty(t *testing.T) {
	h, _ := setupTest(t)

	// Default date is today, after the last interval
	rec := serve(h.HandleDashboard, "GET", "/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No data for this range.")
}

func TestHandleDashboard_UnknownActivitiesShowTimeline(t *testing.T) {
	h, src := setupTest(t)
	src.body = `{"time": 1705482000, "intervals": [[1705482000, 0, "", 99], [1705478400, 0, "Mystery", 98]]}`

	rec := serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.NotContains(t, body, "No data for this range.")
	require.Contains(t, body, "Timeline")
	require.Contains(t, body, "across 1 intervals")
}

func TestHandleDashboard_PieAndExclude(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17&chart=pie&exclude_common=on")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "conic-gradient(")
	require.NotContains(t, body, "😴 Sleep")
	require.Contains(t, body, "checked")
}

func TestHandleDashboard_InvalidRange(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleDashboard, "GET", "/dashboard?range=year")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
	require.Contains(t, rec.Body.String(), "400")
}

// --- Summary and backups ---

func TestHandleSummary(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleSummary, "GET", "/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "Yesterday, 2024-01-17")
	require.Contains(t, body, "09:00:00")
	require.Contains(t, body, "Due yesterday")
}

func TestHandleSummary_UnknownBackup(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleSummary, "GET", "/summary?backup=nope.json")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBackups(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleBackups, "GET", "/backups")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "2024-01-17.json")
	require.Contains(t, body, "(remote)")
	require.Contains(t, body, "Clear cache")
	require.NotContains(t, body, "Cleared")
}

func TestHandleBackups_ListingFailed(t *testing.T) {
	h, src := setupTest(t)
	src.listErr = errors.NewListingFailed("offline")

	rec := serve(h.HandleBackups, "GET", "/backups", "Accept", "application/json")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "LISTING_FAILED", resp["error"]["code"])
	require.Equal(t, float64(502), resp["error"]["status"])
	require.NotContains(t, resp["error"], "details")
}

func TestHandleClearCache(t *testing.T) {
	h, _ := setupTest(t)
	serve(h.HandleDashboard, "GET", "/dashboard?date=2024-01-17")

	rec := serve(h.HandleClearCache, "POST", "/cache/clear")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/backups?cleared=2", rec.Header().Get("Location"))

	rec = serve(h.HandleClearCache, "POST", "/cache/clear", "Accept", "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"removed": 0}`, rec.Body.String())
}

// --- JSON API ---

func TestHandleReportJSON(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleReportJSON, "GET", "/api/report?date=2024-01-17&range=week")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report ops.ReportOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, "week", string(report.Range))
	require.Equal(t, int64(32400), report.TotalSeconds)
	require.Len(t, report.Slices, 3)
}

func TestHandleReportJSON_Error(t *testing.T) {
	h, _ := setupTest(t)

	// JSON errors do not depend on the Accept header
	rec := serve(h.HandleReportJSON, "GET", "/api/report?chart=line")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "INVALID_REQUEST", resp["error"]["code"])
}

func TestHandleSummaryJSON(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleSummaryJSON, "GET", "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary ops.SummaryOutput
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	require.Equal(t, "2024-01-17", summary.Day)
	require.Equal(t, 1, summary.TasksDueCount)
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	h, _ := setupTest(t)

	rec := serve(h.HandleDashboard, "GET", "/dashboard?backup=missing.json", "HX-Request", "true")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "error-message")
	require.NotContains(t, rec.Body.String(), "<!DOCTYPE html>")
}

// --- Routing ---

func TestRoutes(t *testing.T) {
	h, _ := setupTest(t)
	staticSub, err := fs.Sub(staticFS, "static")
	require.NoError(t, err)
	handler := securityHeaders(routes(h, staticSub))

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		return rec
	}

	rec := get("/")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")

	require.Equal(t, http.StatusOK, get("/dashboard?date=2024-01-17").Code)
	require.Equal(t, http.StatusOK, get("/static/style.css").Code)

	rec = get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "timeofme_listing_requests_total")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("DELETE", "/dashboard", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// --- Helpers ---

func TestDashboardQuery_URL(t *testing.T) {
	q := DashboardQuery{Date: "2024-01-17", Range: "day", Chart: "bar"}
	require.Equal(t, "/dashboard?chart=bar&date=2024-01-17&range=week", q.URL("range", "week"))

	q.ExcludeCommon = true
	require.Equal(t, "/dashboard?chart=bar&date=2024-01-17&range=day", q.URL("exclude_common", ""))
	require.Contains(t, q.URL("date", "2024-01-18"), "exclude_common=1")

	require.Equal(t, "/dashboard", DashboardQuery{}.URL("backup", ""))
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		query    string
		expected bool
	}{
		{"", false},
		{"refresh=true", true},
		{"refresh=1", true},
		{"refresh=on", true},
		{"refresh=false", false},
		{"refresh=yes", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		require.Equal(t, tt.expected, parseBoolParam(req, "refresh"), tt.query)
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/?cleared=3&bad=x", nil)
	require.Equal(t, 3, parseIntParam(req, "cleared", -1))
	require.Equal(t, -1, parseIntParam(req, "bad", -1))
	require.Equal(t, -1, parseIntParam(req, "missing", -1))
}

func TestSafeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rgba(66,133,244,1)", "rgba(66,133,244,1)"},
		{"rgba(1, 2, 3, 0.5)", "rgba(1, 2, 3, 0.5)"},
		{"#ccc", "#ccc"},
		{"#12ab34", "#12ab34"},
		{"rgba(1,2,3);background:url(x)", ops.DefaultColor},
		{"red", ops.DefaultColor},
		{"", ops.DefaultColor},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, string(safeColor(tt.in)), tt.in)
	}
}

func TestPieGradient(t *testing.T) {
	slices := []ops.ChartSlice{
		{Color: "rgba(1,1,1,1)", Percent: 75},
		{Color: "bogus", Percent: 25},
	}
	want := fmt.Sprintf("conic-gradient(rgba(1,1,1,1) 0.00%% 75.00%%, %s 75.00%% 100.00%%)", ops.DefaultColor)
	require.Equal(t, want, string(pieGradient(slices)))
	require.Equal(t, ops.DefaultColor, string(pieGradient(nil)))
}

func TestRenderInlineMarkdown(t *testing.T) {
	require.Equal(t, "Ship <strong>v2</strong>", string(renderInlineMarkdown("Ship **v2**")))
	require.Equal(t, "see <code>x</code>", string(renderInlineMarkdown("see `x`")))
	require.False(t, strings.Contains(string(renderInlineMarkdown("<script>alert(1)</script>")), "<script>"))
}
