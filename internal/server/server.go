package server

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/manim-mcp/internal/config"
	"github.com/wagnerlima/manim-mcp/internal/logging"
	"github.com/wagnerlima/manim-mcp/internal/render"
	"github.com/wagnerlima/manim-mcp/internal/storage"
	"github.com/wagnerlima/manim-mcp/internal/tools"
)

// Deps are the long-lived components every tool handler works on.
type Deps struct {
	Store    *storage.ProjectStore
	Renderer *render.Orchestrator
	Journal  *storage.Journal
	Logger   *slog.Logger
}

// New creates a fully configured MCP server with all tools registered.
func New(d Deps) *mcp.Server {
	pt := &tools.ProjectTools{Store: d.Store, Logger: logging.WithComponent(d.Logger, "projects")}
	rt := &tools.RenderTools{Store: d.Store, Renderer: d.Renderer, Journal: d.Journal, Logger: logging.WithComponent(d.Logger, "render")}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "manim-mcp",
		Version: config.Version,
	}, nil)

	// Project and segment tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_project",
		Description: "Create a new animation project and return its project_id",
	}, pt.CreateProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_project",
		Description: "Get a project's settings and its ordered list of code segments",
	}, pt.GetProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List all projects of this server session",
	}, pt.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_segment",
		Description: "Append a code segment to a project. construct code runs inside Scene.construct in call order; preamble code goes to module scope",
	}, pt.AddSegment)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "edit_segment",
		Description: "Replace the code (and optionally the description) of an existing segment, keeping its position and code_type",
	}, pt.EditSegment)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_code",
		Description: "Return the assembled scene source of a project without rendering it",
	}, pt.GetCode)

	// Rendering tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "preview",
		Description: "Render a single low-resolution still frame of the scene (optionally up to a segment) and return the image path",
	}, rt.Preview)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "render",
		Description: "Render the full video at the project's quality and return the video path",
	}, rt.Render)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "render_history",
		Description: "List past preview and render attempts of a project, newest first",
	}, rt.RenderHistory)

	return srv
}
