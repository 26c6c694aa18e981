package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wagnerlima/manim-mcp/internal/assembler"
	"github.com/wagnerlima/manim-mcp/internal/models"
)

// renderer layout under --media_dir:
//
//	videos/<file stem>/<height>p<fps>/<Scene>.mp4
//	images/<file stem>/<Scene>[_ManimCE_v<version>].png

// VideoPath is where the renderer writes the full video of a project.
func VideoPath(outputDir, projectID string, q models.Quality) string {
	return filepath.Join(outputDir, "videos", projectID, q.Preset().Dir(), assembler.SceneName+".mp4")
}

// ImageDir is the directory the renderer writes still frames of a project to.
func ImageDir(outputDir, projectID string) string {
	return filepath.Join(outputDir, "images", projectID)
}

// findVideo returns the video path if it was written at or after since.
func findVideo(path string, since time.Time) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("expected video at %s: %w", path, err)
	}
	if info.ModTime().Before(since) {
		return "", 0, fmt.Errorf("video at %s was not updated by this run", path)
	}
	return path, info.Size(), nil
}

// findImage returns the newest scene still in dir written at or after since.
// The renderer appends its version to still-frame names, so the exact file
// name is not known up front.
func findImage(dir string, since time.Time) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("expected image in %s: %w", dir, err)
	}

	var (
		best     string
		bestTime time.Time
		bestSize int64
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, assembler.SceneName) || filepath.Ext(name) != ".png" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best, bestTime, bestSize = filepath.Join(dir, name), info.ModTime(), info.Size()
		}
	}
	if best == "" {
		return "", 0, fmt.Errorf("no %s*.png written to %s by this run", assembler.SceneName, dir)
	}
	return best, bestSize, nil
}
