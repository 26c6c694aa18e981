package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/manim-mcp/internal/config"
	"github.com/wagnerlima/manim-mcp/internal/models"
	"github.com/wagnerlima/manim-mcp/internal/render"
	"github.com/wagnerlima/manim-mcp/internal/storage"
)

// RenderTools holds references needed by preview, render and history handlers.
type RenderTools struct {
	Store    *storage.ProjectStore
	Renderer *render.Orchestrator
	Journal  *storage.Journal
	Logger   *slog.Logger
}

// --- Input types ---

type PreviewInput struct {
	ProjectID      string `json:"project_id" jsonschema:"ID of the project"`
	SegmentID      string `json:"segment_id,omitempty" jsonschema:"Optional construct segment to preview up to (inclusive); the whole scene when omitted"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Optional timeout between 10 and 3600 seconds; server default when omitted"`
}

type RenderInput struct {
	ProjectID      string `json:"project_id" jsonschema:"ID of the project"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Optional timeout between 10 and 3600 seconds; server default when omitted"`
}

type RenderHistoryInput struct {
	ProjectID string `json:"project_id" jsonschema:"ID of the project"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of entries, newest first (default 20)"`
}

// --- Output types ---

type PreviewOutput struct {
	ImagePath string `json:"image_path"`
	Duration  string `json:"duration"`
	Size      string `json:"size"`
	Message   string `json:"message"`
}

type RenderOutput struct {
	VideoPath string `json:"video_path"`
	Duration  string `json:"duration"`
	Size      string `json:"size"`
	Message   string `json:"message"`
}

// --- Handlers ---

func (t *RenderTools) Preview(ctx context.Context, _ *mcp.CallToolRequest, input PreviewInput) (*mcp.CallToolResult, any, error) {
	timeout, err := requestTimeout(input.TimeoutSeconds)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	res, err := t.Renderer.Preview(ctx, input.ProjectID, input.SegmentID, timeout)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	return toolJSON(PreviewOutput{
		ImagePath: res.OutputPath,
		Duration:  res.Duration.Round(time.Millisecond).String(),
		Size:      humanize.Bytes(uint64(res.SizeBytes)),
		Message:   fmt.Sprintf("Preview frame rendered in %s", res.Duration.Round(time.Millisecond)),
	})
}

func (t *RenderTools) Render(ctx context.Context, _ *mcp.CallToolRequest, input RenderInput) (*mcp.CallToolResult, any, error) {
	timeout, err := requestTimeout(input.TimeoutSeconds)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	res, err := t.Renderer.Render(ctx, input.ProjectID, timeout)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	return toolJSON(RenderOutput{
		VideoPath: res.OutputPath,
		Duration:  res.Duration.Round(time.Millisecond).String(),
		Size:      humanize.Bytes(uint64(res.SizeBytes)),
		Message:   fmt.Sprintf("Video rendered in %s", res.Duration.Round(time.Millisecond)),
	})
}

func (t *RenderTools) RenderHistory(_ context.Context, _ *mcp.CallToolRequest, input RenderHistoryInput) (*mcp.CallToolResult, any, error) {
	if _, err := t.Store.GetProject(input.ProjectID); err != nil {
		return toolFailure(err), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := t.Journal.List(input.ProjectID, limit)
	if err != nil {
		return toolError("Failed to read render history: %v", err), nil, nil
	}
	if records == nil {
		records = []models.RenderRecord{}
	}
	return toolJSON(records)
}

// requestTimeout validates an optional per-call timeout. Zero selects the
// configured default.
func requestTimeout(seconds int) (time.Duration, error) {
	if seconds == 0 {
		return 0, nil
	}
	if !config.ValidTimeout(seconds) {
		return 0, fmt.Errorf("timeout_seconds %d must be between %d and %d: %w",
			seconds, config.MinTimeoutSeconds, config.MaxTimeoutSeconds, models.ErrValidation)
	}
	return time.Duration(seconds) * time.Second, nil
}
