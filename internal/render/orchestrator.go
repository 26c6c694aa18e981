// Package render writes assembled scene sources to disk and drives the
// external manim renderer as a subprocess, for still-frame previews and full
// video renders.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wagnerlima/manim-mcp/internal/assembler"
	"github.com/wagnerlima/manim-mcp/internal/logging"
	"github.com/wagnerlima/manim-mcp/internal/models"
)

// DefaultTimeout bounds a renderer run when neither the request nor the
// configuration sets one.
const DefaultTimeout = 300 * time.Second

// Projects is the read side of the project store the orchestrator needs.
type Projects interface {
	GetProject(id string) (*models.Project, error)
}

// Recorder persists render attempts. It may be nil.
type Recorder interface {
	Record(rec models.RenderRecord) (models.RenderRecord, error)
}

// Config holds the orchestrator's configuration.
type Config struct {
	Binary    string        // renderer executable, default "manim"
	CodeDir   string        // where assembled sources are written
	OutputDir string        // passed to the renderer as --media_dir
	Timeout   time.Duration // default per-run timeout
	Logger    *slog.Logger
}

// Request describes one preview or render call.
type Request struct {
	ProjectID string
	Mode      models.RenderMode
	SegmentID string        // preview only: scope to construct segments up to this one
	Timeout   time.Duration // zero means Config.Timeout
}

// Orchestrator runs at most one renderer process per project at a time.
type Orchestrator struct {
	cfg      Config
	projects Projects
	journal  Recorder

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates the code and output directories and returns an orchestrator.
func New(cfg Config, projects Projects, journal Recorder) (*Orchestrator, error) {
	if cfg.Binary == "" {
		cfg.Binary = "manim"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	codeDir, err := filepath.Abs(cfg.CodeDir)
	if err != nil {
		return nil, fmt.Errorf("resolve code dir: %w", err)
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	cfg.CodeDir, cfg.OutputDir = codeDir, outputDir

	for _, dir := range []string{cfg.CodeDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	cfg.Logger.Info("render orchestrator initialised",
		"binary", cfg.Binary,
		"code_dir", cfg.CodeDir,
		"output_dir", cfg.OutputDir,
		"timeout", cfg.Timeout,
	)

	return &Orchestrator{
		cfg:      cfg,
		projects: projects,
		journal:  journal,
		active:   make(map[string]struct{}),
	}, nil
}

// SourcePath is the file a project's assembled scene is written to.
func (o *Orchestrator) SourcePath(projectID string) string {
	return filepath.Join(o.cfg.CodeDir, projectID+".py")
}

// busy reports whether a renderer run is in flight for the project.
func (o *Orchestrator) busy(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[projectID]
	return ok
}

// Preview renders a single low-resolution still frame, optionally scoped to
// the construct segments up to and including segmentID.
func (o *Orchestrator) Preview(ctx context.Context, projectID, segmentID string, timeout time.Duration) (models.RenderResult, error) {
	return o.Run(ctx, Request{ProjectID: projectID, Mode: models.ModePreview, SegmentID: segmentID, Timeout: timeout})
}

// Render produces the full video at the project's quality.
func (o *Orchestrator) Render(ctx context.Context, projectID string, timeout time.Duration) (models.RenderResult, error) {
	return o.Run(ctx, Request{ProjectID: projectID, Mode: models.ModeRender, Timeout: timeout})
}

// Run assembles, writes and renders a project. A second call for a project
// whose run is still in flight fails with models.ErrBusy.
func (o *Orchestrator) Run(ctx context.Context, req Request) (models.RenderResult, error) {
	if req.Mode != models.ModePreview && req.Mode != models.ModeRender {
		return models.RenderResult{}, fmt.Errorf("mode %q: %w", req.Mode, models.ErrValidation)
	}
	if req.Mode == models.ModeRender && req.SegmentID != "" {
		return models.RenderResult{}, fmt.Errorf("segment scoping is only supported for previews: %w", models.ErrValidation)
	}
	if req.Timeout < 0 {
		return models.RenderResult{}, fmt.Errorf("timeout %s: %w", req.Timeout, models.ErrValidation)
	}

	proj, err := o.projects.GetProject(req.ProjectID)
	if err != nil {
		return models.RenderResult{}, err
	}

	if !o.acquire(proj.ID) {
		return models.RenderResult{}, fmt.Errorf("project %q: %w", proj.ID, models.ErrBusy)
	}
	defer o.release(proj.ID)

	res, err := o.run(ctx, proj, req)
	o.record(proj.ID, req, res, err)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, proj *models.Project, req Request) (models.RenderResult, error) {
	logger := o.cfg.Logger.With("project_id", proj.ID, "mode", string(req.Mode))

	var src string
	if req.SegmentID != "" {
		s, err := assembler.AssembleUpTo(proj, req.SegmentID)
		if err != nil {
			return models.RenderResult{}, err
		}
		src = s
	} else {
		src = assembler.Assemble(proj)
	}

	srcPath := o.SourcePath(proj.ID)
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		return models.RenderResult{}, fmt.Errorf("write scene source: %w", err)
	}

	quality := proj.Quality
	if req.Mode == models.ModePreview {
		quality = models.QualityLow
	}
	args := o.args(srcPath, quality, proj.BackgroundColor, req.Mode)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = o.cfg.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Truncated so file systems with coarse mtimes still count our output as new.
	started := time.Now().Truncate(time.Second)

	logger.Info("executing renderer", "args", args, "timeout", timeout)
	ex := execRenderer(runCtx, o.cfg.CodeDir, o.cfg.Binary, args...)

	res := models.RenderResult{Duration: ex.Duration}

	switch {
	case ex.TimedOut:
		res.LogExcerpt = ex.Output
		logger.Warn("renderer timed out",
			"timeout", timeout,
			"duration_ms", ex.Duration.Milliseconds(),
		)
		return res, &models.RenderError{Err: models.ErrTimeout, ExitCode: ex.ExitCode, Elapsed: ex.Duration, LogExcerpt: ex.Output}
	case ex.Err != nil && ctx.Err() != nil:
		res.LogExcerpt = ex.Output
		logger.Warn("renderer cancelled", "error", ex.Err)
		return res, fmt.Errorf("render cancelled: %w", ex.Err)
	case ex.Err != nil || ex.ExitCode != 0:
		excerpt := ex.Output
		if ex.Err != nil {
			excerpt = truncate(ex.Err.Error()+"\n"+excerpt, maxLogBytes)
		}
		res.LogExcerpt = excerpt
		logger.Warn("renderer failed",
			"exit_code", ex.ExitCode,
			"duration_ms", ex.Duration.Milliseconds(),
			"log_tail", truncate(excerpt, 512),
			"source", logging.SanitizePath(srcPath),
		)
		return res, &models.RenderError{Err: models.ErrRenderFailed, ExitCode: ex.ExitCode, Elapsed: ex.Duration, LogExcerpt: excerpt}
	}

	var (
		path string
		size int64
		err  error
	)
	if req.Mode == models.ModePreview {
		path, size, err = findImage(ImageDir(o.cfg.OutputDir, proj.ID), started)
	} else {
		path, size, err = findVideo(VideoPath(o.cfg.OutputDir, proj.ID, quality), started)
	}
	if err != nil {
		res.LogExcerpt = truncate(err.Error()+"\n"+ex.Output, maxLogBytes)
		logger.Warn("renderer exited cleanly without an artifact", "error", err)
		return res, &models.RenderError{Err: models.ErrRenderFailed, Elapsed: ex.Duration, LogExcerpt: res.LogExcerpt}
	}

	res.Success = true
	res.OutputPath = path
	res.SizeBytes = size
	logger.Info("renderer succeeded",
		"duration_ms", ex.Duration.Milliseconds(),
		"output", logging.SanitizePath(path),
		"size", humanize.Bytes(uint64(size)),
	)
	return res, nil
}

// args builds the renderer command line:
//
//	render <file> <Scene> -q<x> --media_dir <dir> [-c <color>] [-s]
func (o *Orchestrator) args(srcPath string, q models.Quality, background string, mode models.RenderMode) []string {
	args := []string{
		"render", srcPath, assembler.SceneName,
		q.Preset().Flag,
		"--media_dir", o.cfg.OutputDir,
	}
	if background != "" {
		args = append(args, "-c", background)
	}
	if mode == models.ModePreview {
		args = append(args, "-s")
	}
	return args
}

func (o *Orchestrator) acquire(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[projectID]; busy {
		return false
	}
	o.active[projectID] = struct{}{}
	return true
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	delete(o.active, projectID)
	o.mu.Unlock()
}

func (o *Orchestrator) record(projectID string, req Request, res models.RenderResult, runErr error) {
	if o.journal == nil {
		return
	}
	status := "success"
	if runErr != nil {
		status = models.Kind(runErr)
	}
	var rerr *models.RenderError
	excerpt := res.LogExcerpt
	if errors.As(runErr, &rerr) && excerpt == "" {
		excerpt = rerr.LogExcerpt
	}
	_, err := o.journal.Record(models.RenderRecord{
		ProjectID:  projectID,
		Mode:       req.Mode,
		SegmentID:  req.SegmentID,
		Status:     status,
		OutputPath: res.OutputPath,
		LogExcerpt: excerpt,
		DurationMs: res.Duration.Milliseconds(),
	})
	if err != nil {
		o.cfg.Logger.Warn("failed to record render attempt", "project_id", projectID, "error", err)
	}
}
