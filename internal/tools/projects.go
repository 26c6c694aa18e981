package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/manim-mcp/internal/assembler"
	"github.com/wagnerlima/manim-mcp/internal/models"
	"github.com/wagnerlima/manim-mcp/internal/storage"
)

// ProjectTools holds references needed by project and segment tool handlers.
type ProjectTools struct {
	Store  *storage.ProjectStore
	Logger *slog.Logger
}

// --- Input types ---

type CreateProjectInput struct {
	Name            string `json:"name" jsonschema:"Name of the project"`
	Quality         string `json:"quality,omitempty" jsonschema:"Video quality: low (480p15), medium (720p30, default), high (1080p60) or fourk (2160p60); the _quality suffix is accepted"`
	BackgroundColor string `json:"background_color,omitempty" jsonschema:"Optional background color, e.g. #1e1e1e or WHITE; renderer default when empty"`
}

type GetProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"ID of the project"`
}

type AddSegmentInput struct {
	ProjectID   string `json:"project_id" jsonschema:"ID of the project"`
	ManimCode   string `json:"manim_code" jsonschema:"Python code of the segment. construct code becomes the body of Scene.construct (use self.play, self.add, ...); preamble code is placed at module scope"`
	Description string `json:"description,omitempty" jsonschema:"Optional description of what the segment does"`
	CodeType    string `json:"code_type,omitempty" jsonschema:"construct (default) or preamble"`
}

type EditSegmentInput struct {
	ProjectID   string  `json:"project_id" jsonschema:"ID of the project"`
	SegmentID   string  `json:"segment_id" jsonschema:"ID of the segment to replace"`
	ManimCode   string  `json:"manim_code" jsonschema:"New code for the segment"`
	Description *string `json:"description,omitempty" jsonschema:"New description; the current one is kept when omitted"`
	CodeType    string  `json:"code_type,omitempty" jsonschema:"Optional; must match the segment's existing code_type"`
}

type GetCodeInput struct {
	ProjectID string `json:"project_id" jsonschema:"ID of the project"`
	SegmentID string `json:"segment_id,omitempty" jsonschema:"Optional construct segment to stop at (inclusive)"`
}

// --- Output types ---

type CreateProjectOutput struct {
	ProjectID       string         `json:"project_id"`
	Name            string         `json:"name"`
	Quality         models.Quality `json:"quality"`
	BackgroundColor string         `json:"background_color,omitempty"`
	Message         string         `json:"message"`
}

type AddSegmentOutput struct {
	SegmentID     string             `json:"segment_id"`
	ProjectID     string             `json:"project_id"`
	CodeType      models.SegmentKind `json:"code_type"`
	TotalSegments int                `json:"total_segments"`
	Message       string             `json:"message"`
}

type EditSegmentOutput struct {
	OK        bool   `json:"ok"`
	ProjectID string `json:"project_id"`
	SegmentID string `json:"segment_id"`
}

// --- Handlers ---

func (t *ProjectTools) CreateProject(_ context.Context, _ *mcp.CallToolRequest, input CreateProjectInput) (*mcp.CallToolResult, any, error) {
	quality, err := models.ParseQuality(input.Quality)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	proj, err := t.Store.CreateProject(input.Name, quality, input.BackgroundColor)
	if err != nil {
		return toolFailure(err), nil, nil
	}
	t.Logger.Info("project created", "project_id", proj.ID, "quality", string(proj.Quality))

	return toolJSON(CreateProjectOutput{
		ProjectID:       proj.ID,
		Name:            proj.Name,
		Quality:         proj.Quality,
		BackgroundColor: proj.BackgroundColor,
		Message:         fmt.Sprintf("Project %s created successfully", proj.Name),
	})
}

func (t *ProjectTools) GetProject(_ context.Context, _ *mcp.CallToolRequest, input GetProjectInput) (*mcp.CallToolResult, any, error) {
	proj, err := t.Store.GetProject(input.ProjectID)
	if err != nil {
		return toolFailure(err), nil, nil
	}
	return toolJSON(proj)
}

func (t *ProjectTools) ListProjects(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Store.ListProjects())
}

func (t *ProjectTools) AddSegment(_ context.Context, _ *mcp.CallToolRequest, input AddSegmentInput) (*mcp.CallToolResult, any, error) {
	kind, err := models.ParseSegmentKind(input.CodeType)
	if err != nil {
		return toolFailure(err), nil, nil
	}

	seg, total, err := t.Store.AddSegment(input.ProjectID, input.ManimCode, kind, input.Description)
	if err != nil {
		return toolFailure(err), nil, nil
	}
	t.Logger.Info("segment added", "project_id", input.ProjectID, "segment_id", seg.ID, "kind", string(kind))

	return toolJSON(AddSegmentOutput{
		SegmentID:     seg.ID,
		ProjectID:     input.ProjectID,
		CodeType:      seg.Kind,
		TotalSegments: total,
		Message:       fmt.Sprintf("Segment added as %s code (%d total)", seg.Kind, total),
	})
}

func (t *ProjectTools) EditSegment(_ context.Context, _ *mcp.CallToolRequest, input EditSegmentInput) (*mcp.CallToolResult, any, error) {
	if input.CodeType != "" {
		kind, err := models.ParseSegmentKind(input.CodeType)
		if err != nil {
			return toolFailure(err), nil, nil
		}
		proj, err := t.Store.GetProject(input.ProjectID)
		if err != nil {
			return toolFailure(err), nil, nil
		}
		seg, ok := proj.Segment(input.SegmentID)
		if !ok {
			return toolFailure(fmt.Errorf("segment %q in project %q: %w", input.SegmentID, input.ProjectID, models.ErrNotFound)), nil, nil
		}
		if seg.Kind != kind {
			return toolFailure(fmt.Errorf("segment %q is %s code; code_type cannot be changed: %w", seg.ID, seg.Kind, models.ErrValidation)), nil, nil
		}
	}

	if _, err := t.Store.EditSegment(input.ProjectID, input.SegmentID, input.ManimCode, input.Description); err != nil {
		return toolFailure(err), nil, nil
	}
	t.Logger.Info("segment edited", "project_id", input.ProjectID, "segment_id", input.SegmentID)

	return toolJSON(EditSegmentOutput{OK: true, ProjectID: input.ProjectID, SegmentID: input.SegmentID})
}

func (t *ProjectTools) GetCode(_ context.Context, _ *mcp.CallToolRequest, input GetCodeInput) (*mcp.CallToolResult, any, error) {
	proj, err := t.Store.GetProject(input.ProjectID)
	if err != nil {
		return toolFailure(err), nil, nil
	}
	if input.SegmentID == "" {
		return toolText(assembler.Assemble(proj)), nil, nil
	}
	src, err := assembler.AssembleUpTo(proj, input.SegmentID)
	if err != nil {
		return toolFailure(err), nil, nil
	}
	return toolText(src), nil, nil
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// toolFailure reports err prefixed with its error kind, plus the renderer
// log excerpt for render errors.
func toolFailure(err error) *mcp.CallToolResult {
	var rerr *models.RenderError
	if errors.As(err, &rerr) && rerr.LogExcerpt != "" {
		return toolError("%s: %v\n\n%s", models.Kind(err), err, rerr.LogExcerpt)
	}
	return toolError("%s: %v", models.Kind(err), err)
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
