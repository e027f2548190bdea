package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/logging"
	"github.com/suwonj/timeofme/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
	log *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env, log: logging.OrNop(env.Logger)}
}

// ListRequest represents the arguments for backup_list.
type ListRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

// SummaryRequest represents the arguments for backup_summary.
type SummaryRequest struct {
	Backup string `json:"backup,omitempty"`
}

// ReportRequest represents the arguments for backup_report.
type ReportRequest struct {
	Backup        string `json:"backup,omitempty"`
	Date          string `json:"date,omitempty"`
	Range         string `json:"range,omitempty"`
	ExcludeCommon bool   `json:"exclude_common,omitempty"`
}

func (r ReportRequest) input() ops.ReportInput {
	return ops.ReportInput{
		Name:          r.Backup,
		Date:          r.Date,
		Range:         r.Range,
		ExcludeCommon: r.ExcludeCommon,
	}
}

// ExportRequest represents the arguments for backup_export.
type ExportRequest struct {
	ReportRequest
	Path string `json:"path,omitempty"`
}

// HandleList handles the backup_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListBackups(ctx, h.env, ops.ListBackupsInput{Refresh: input.Refresh})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleSummary handles the backup_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SummaryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Summary(ctx, h.env, ops.SummaryInput{Name: input.Backup})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleReport handles the backup_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(ctx, h.env, input.input())
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the backup_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Report: input.input(),
		Path:   input.Path,
	})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleCacheStatus handles the cache_status tool call.
func (h *Handlers) HandleCacheStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.CacheStatus(ctx, h.env)
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// errorResult logs server-side failures before building the result.
func (h *Handlers) errorResult(err error) *mcp.CallToolResult {
	if tErr := errors.As(err); tErr.Status >= 500 {
		h.log.Warn("tool call failed", zap.String("code", string(tErr.Code)), zap.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error messages and details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	tErr := errors.As(err)

	errorObj := map[string]any{
		"code":    tErr.Code,
		"message": tErr.Message,
		"status":  tErr.Status,
	}
	if tErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if tErr.Details != nil {
		errorObj["details"] = tErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
