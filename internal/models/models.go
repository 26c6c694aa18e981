package models

import (
	"fmt"
	"strings"
	"time"
)

// Quality is the render quality preset of a project.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityFourK  Quality = "fourk"
)

// Preset is the resolution / frame-rate pair behind a Quality.
type Preset struct {
	Height int    // vertical resolution, e.g. 480
	FPS    int    // frames per second
	Flag   string // renderer quality flag, e.g. "-ql"
}

var presets = map[Quality]Preset{
	QualityLow:    {Height: 480, FPS: 15, Flag: "-ql"},
	QualityMedium: {Height: 720, FPS: 30, Flag: "-qm"},
	QualityHigh:   {Height: 1080, FPS: 60, Flag: "-qh"},
	QualityFourK:  {Height: 2160, FPS: 60, Flag: "-qk"},
}

// ParseQuality accepts the short names (low, medium, high, fourk) as well as
// the "<name>_quality" spellings. An empty string yields QualityMedium.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return QualityMedium, nil
	}
	s = strings.TrimSuffix(s, "_quality")
	q := Quality(s)
	if _, ok := presets[q]; !ok {
		return "", fmt.Errorf("quality %q must be one of low, medium, high, fourk: %w", s, ErrValidation)
	}
	return q, nil
}

// Preset returns the resolution and frame rate for q.
func (q Quality) Preset() Preset {
	return presets[q]
}

// Dir is the per-quality directory name the renderer writes videos into ("480p15").
func (p Preset) Dir() string {
	return fmt.Sprintf("%dp%d", p.Height, p.FPS)
}

// SegmentKind tells the assembler where a segment's code goes.
type SegmentKind string

const (
	// KindPreamble code lands at module scope (imports, helpers).
	KindPreamble SegmentKind = "preamble"
	// KindConstruct code lands inside the scene's construct method.
	KindConstruct SegmentKind = "construct"
)

// ParseSegmentKind validates a code_type value. Empty means construct.
func ParseSegmentKind(s string) (SegmentKind, error) {
	switch SegmentKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindConstruct:
		return KindConstruct, nil
	case KindPreamble:
		return KindPreamble, nil
	}
	return "", fmt.Errorf("code_type %q must be construct or preamble: %w", s, ErrValidation)
}

// Segment is a single code fragment of a project.
type Segment struct {
	ID          string      `json:"id"`
	Kind        SegmentKind `json:"kind"`
	Description string      `json:"description"`
	Code        string      `json:"code"`
}

// Project is an ordered collection of segments plus render settings.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Quality         Quality   `json:"quality"`
	BackgroundColor string    `json:"background_color,omitempty"`
	Segments        []Segment `json:"segments"`
	CreatedAt       time.Time `json:"created_at"`
}

// Clone returns a deep copy safe to hand out of the store.
func (p *Project) Clone() *Project {
	c := *p
	c.Segments = append([]Segment(nil), p.Segments...)
	return &c
}

// Segment returns the segment with the given id.
func (p *Project) Segment(id string) (Segment, bool) {
	for _, s := range p.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}

// ProjectSummary is the compact listing form of a project.
type ProjectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Quality      Quality   `json:"quality"`
	SegmentCount int       `json:"segment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// RenderMode selects between a single still frame and a full video.
type RenderMode string

const (
	ModePreview RenderMode = "preview"
	ModeRender  RenderMode = "render"
)

// RenderResult is the outcome of a single renderer invocation.
type RenderResult struct {
	Success    bool          `json:"success"`
	OutputPath string        `json:"output_path,omitempty"`
	LogExcerpt string        `json:"log_excerpt,omitempty"`
	Duration   time.Duration `json:"duration"`
	SizeBytes  int64         `json:"size_bytes,omitempty"`
}

// RenderRecord is a journal entry for one preview or render attempt.
type RenderRecord struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Mode       RenderMode `json:"mode"`
	SegmentID  string     `json:"segment_id,omitempty"`
	Status     string     `json:"status"` // "success" or an error kind
	OutputPath string     `json:"output_path,omitempty"`
	LogExcerpt string     `json:"log_excerpt,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	CreatedAt  string     `json:"created_at"`
}
