package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wagnerlima/manim-mcp/internal/models"
)

// ProjectStore is the in-memory registry of live projects. All reads return
// copies; all mutations happen under the store lock.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project
	now      func() time.Time
}

// NewProjectStore returns an empty store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]*models.Project),
		now:      time.Now,
	}
}

// CreateProject registers a new project with no segments and returns it.
func (s *ProjectStore) CreateProject(name string, quality models.Quality, background string) (*models.Project, error) {
	quality, err := models.ParseQuality(string(quality))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID("proj_", func(id string) bool {
		_, taken := s.projects[id]
		return taken
	})
	p := &models.Project{
		ID:              id,
		Name:            name,
		Quality:         quality,
		BackgroundColor: strings.TrimSpace(background),
		Segments:        []models.Segment{},
		CreatedAt:       s.now(),
	}
	s.projects[id] = p
	return p.Clone(), nil
}

// GetProject returns a snapshot of the project.
func (s *ProjectStore) GetProject(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, projectNotFound(id)
	}
	return p.Clone(), nil
}

// ListProjects returns summaries of all projects, oldest first.
func (s *ProjectStore) ListProjects() []models.ProjectSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.ProjectSummary, 0, len(s.projects))
	for _, p := range s.projects {
		list = append(list, models.ProjectSummary{
			ID:           p.ID,
			Name:         p.Name,
			Quality:      p.Quality,
			SegmentCount: len(p.Segments),
			CreatedAt:    p.CreatedAt,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// AddSegment appends a segment to the project and returns the new segment
// together with the project's segment count after the append.
func (s *ProjectStore) AddSegment(projectID, code string, kind models.SegmentKind, description string) (models.Segment, int, error) {
	kind, err := models.ParseSegmentKind(string(kind))
	if err != nil {
		return models.Segment{}, 0, err
	}
	if strings.TrimSpace(code) == "" {
		return models.Segment{}, 0, errEmptyCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return models.Segment{}, 0, projectNotFound(projectID)
	}

	id := newID("seg_", func(id string) bool {
		_, taken := p.Segment(id)
		return taken
	})
	seg := models.Segment{
		ID:          id,
		Kind:        kind,
		Description: description,
		Code:        code,
	}
	p.Segments = append(p.Segments, seg)
	return seg, len(p.Segments), nil
}

// EditSegment replaces a segment's code, and its description when one is
// given. Kind and position never change.
func (s *ProjectStore) EditSegment(projectID, segmentID, code string, description *string) (models.Segment, error) {
	if strings.TrimSpace(code) == "" {
		return models.Segment{}, errEmptyCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return models.Segment{}, projectNotFound(projectID)
	}
	for i := range p.Segments {
		if p.Segments[i].ID != segmentID {
			continue
		}
		p.Segments[i].Code = code
		if description != nil {
			p.Segments[i].Description = *description
		}
		return p.Segments[i], nil
	}
	return models.Segment{}, fmt.Errorf("segment %q in project %q: %w", segmentID, projectID, models.ErrNotFound)
}

var errEmptyCode = fmt.Errorf("segment code is empty: %w", models.ErrValidation)

func projectNotFound(id string) error {
	return fmt.Errorf("project %q: %w", id, models.ErrNotFound)
}

// newID returns prefix plus the first 8 hex digits of a random UUID, retrying
// until taken reports the id as free.
func newID(prefix string, taken func(string) bool) string {
	for {
		raw := strings.ReplaceAll(uuid.New().String(), "-", "")
		id := prefix + raw[:8]
		if !taken(id) {
			return id
		}
	}
}
