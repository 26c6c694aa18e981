package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wagnerlima/manim-mcp/internal/models"
	"github.com/wagnerlima/manim-mcp/internal/storage"
)

// fakeManim mimics the renderer's output layout: it writes a still frame with
// -s and a video otherwise, and records its arguments in <media>/args.txt.
const fakeManim = `#!/bin/sh
all="$*"
file="$2"; scene="$3"; shift 3
media=""; still=0; q=""
while [ $# -gt 0 ]; do
  case "$1" in
    --media_dir) media="$2"; shift ;;
    -c) shift ;;
    -s) still=1 ;;
    -q?) q="$1" ;;
  esac
  shift
done
stem=$(basename "$file" .py)
case "$q" in
  -ql) dir=480p15 ;;
  -qm) dir=720p30 ;;
  -qh) dir=1080p60 ;;
  -qk) dir=2160p60 ;;
esac
echo "Rendering $scene"
if [ "$still" -eq 1 ]; then
  mkdir -p "$media/images/$stem"
  echo png > "$media/images/$stem/${scene}_ManimCE_v0.19.0.png"
else
  mkdir -p "$media/videos/$stem/$dir"
  echo mp4 > "$media/videos/$stem/$dir/$scene.mp4"
fi
echo "$all" > "$media/args.txt"
`

const failingManim = `#!/bin/sh
echo "Traceback (most recent call last):" >&2
echo "NameError: name 'Circl' is not defined" >&2
exit 1
`

const slowManim = `#!/bin/sh
sleep 30 &
sleep 30
`

const silentManim = `#!/bin/sh
exit 0
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("renderer stand-ins are shell scripts")
	}
	path := filepath.Join(t.TempDir(), "manim")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T, script string, timeout time.Duration) (*Orchestrator, *storage.ProjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewProjectStore()
	o, err := New(Config{
		Binary:    writeScript(t, script),
		CodeDir:   filepath.Join(dir, "code"),
		OutputDir: filepath.Join(dir, "media"),
		Timeout:   timeout,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, store, dir
}

func newProject(t *testing.T, store *storage.ProjectStore, quality models.Quality) *models.Project {
	t.Helper()
	p, err := store.CreateProject("demo", quality, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.AddSegment(p.ID, "circle = Circle()", models.KindConstruct, ""); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRenderProducesVideoAtProjectQuality(t *testing.T) {
	o, store, dir := setup(t, fakeManim, 10*time.Second)
	p := newProject(t, store, models.QualityLow)

	res, err := o.Render(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !res.Success {
		t.Error("Success = false")
	}
	want := filepath.Join(dir, "media", "videos", p.ID, "480p15", "GeneratedScene.mp4")
	if res.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, want)
	}
	if res.SizeBytes == 0 {
		t.Error("SizeBytes should be set")
	}

	src, err := os.ReadFile(o.SourcePath(p.ID))
	if err != nil {
		t.Fatalf("source file not written: %v", err)
	}
	if !strings.Contains(string(src), "        circle = Circle()") {
		t.Errorf("unexpected source:\n%s", src)
	}

	args, _ := os.ReadFile(filepath.Join(dir, "media", "args.txt"))
	if !strings.Contains(string(args), "-ql") || strings.Contains(string(args), " -s") {
		t.Errorf("render args = %q", args)
	}
}

func TestPreviewUsesLowQualityStill(t *testing.T) {
	o, store, dir := setup(t, fakeManim, 10*time.Second)
	p, _ := store.CreateProject("demo", models.QualityHigh, "#000000")
	store.AddSegment(p.ID, "sq = Square()", models.KindConstruct, "")

	res, err := o.Preview(context.Background(), p.ID, "", 0)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	wantDir := filepath.Join(dir, "media", "images", p.ID)
	if filepath.Dir(res.OutputPath) != wantDir || filepath.Ext(res.OutputPath) != ".png" {
		t.Errorf("OutputPath = %q, want a png in %q", res.OutputPath, wantDir)
	}

	args, _ := os.ReadFile(filepath.Join(dir, "media", "args.txt"))
	for _, want := range []string{"-ql", "-s", "-c #000000", "GeneratedScene"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("preview args %q missing %q", args, want)
		}
	}
}

func TestPreviewScopedToSegment(t *testing.T) {
	o, store, _ := setup(t, fakeManim, 10*time.Second)
	p, _ := store.CreateProject("demo", models.QualityLow, "")
	first, _, _ := store.AddSegment(p.ID, "a = Circle()", models.KindConstruct, "")
	store.AddSegment(p.ID, "b = Square()", models.KindConstruct, "")

	if _, err := o.Preview(context.Background(), p.ID, first.ID, 0); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	src, _ := os.ReadFile(o.SourcePath(p.ID))
	if !strings.Contains(string(src), "a = Circle()") || strings.Contains(string(src), "b = Square()") {
		t.Errorf("scoped source:\n%s", src)
	}

	if _, err := o.Preview(context.Background(), p.ID, "seg_missing", 0); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown segment: err = %v, want ErrNotFound", err)
	}
}

func TestRunUnknownProject(t *testing.T) {
	o, _, _ := setup(t, fakeManim, 10*time.Second)

	_, err := o.Render(context.Background(), "proj_missing", 0)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunRejectsScopedRender(t *testing.T) {
	o, store, _ := setup(t, fakeManim, 10*time.Second)
	p := newProject(t, store, models.QualityLow)

	_, err := o.Run(context.Background(), Request{ProjectID: p.ID, Mode: models.ModeRender, SegmentID: "seg_x"})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestRenderFailureKeepsSourceAndLog(t *testing.T) {
	o, store, _ := setup(t, failingManim, 10*time.Second)
	p := newProject(t, store, models.QualityMedium)

	res, err := o.Render(context.Background(), p.ID, 0)
	if !errors.Is(err, models.ErrRenderFailed) {
		t.Fatalf("err = %v, want ErrRenderFailed", err)
	}
	var rerr *models.RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("err %T is not a *RenderError", err)
	}
	if rerr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", rerr.ExitCode)
	}
	if !strings.Contains(rerr.LogExcerpt, "NameError") || !strings.Contains(res.LogExcerpt, "NameError") {
		t.Errorf("log excerpt = %q, want the traceback", rerr.LogExcerpt)
	}
	if res.Success {
		t.Error("Success should be false")
	}
	if _, err := os.Stat(o.SourcePath(p.ID)); err != nil {
		t.Errorf("source file should be kept for inspection: %v", err)
	}
}

func TestCleanExitWithoutArtifactIsFailure(t *testing.T) {
	o, store, _ := setup(t, silentManim, 10*time.Second)
	p := newProject(t, store, models.QualityMedium)

	_, err := o.Render(context.Background(), p.ID, 0)
	if !errors.Is(err, models.ErrRenderFailed) {
		t.Errorf("err = %v, want ErrRenderFailed", err)
	}
}

func TestMissingBinaryIsFailure(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewProjectStore()
	o, err := New(Config{
		Binary:    filepath.Join(dir, "no-such-manim"),
		CodeDir:   filepath.Join(dir, "code"),
		OutputDir: filepath.Join(dir, "media"),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := newProject(t, store, models.QualityLow)

	_, err = o.Render(context.Background(), p.ID, 0)
	if !errors.Is(err, models.ErrRenderFailed) {
		t.Errorf("err = %v, want ErrRenderFailed", err)
	}
}

func TestRenderTimeout(t *testing.T) {
	o, store, dir := setup(t, slowManim, time.Second)
	p := newProject(t, store, models.QualityLow)

	start := time.Now()
	_, err := o.Render(context.Background(), p.ID, 0)
	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %s, the process group was not killed", elapsed)
	}
	if _, err := os.Stat(VideoPath(filepath.Join(dir, "media"), p.ID, models.QualityLow)); err == nil {
		t.Error("no video should exist after a timeout")
	}
	if o.busy(p.ID) {
		t.Error("project still marked busy after timeout")
	}

	// The project accepts a new call afterwards.
	_, err = o.Render(context.Background(), p.ID, time.Second)
	if errors.Is(err, models.ErrBusy) {
		t.Errorf("second render after timeout: err = %v", err)
	}
}

func TestConcurrentRenderIsBusy(t *testing.T) {
	o, store, _ := setup(t, slowManim, 2*time.Second)
	p := newProject(t, store, models.QualityLow)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = o.Render(context.Background(), p.ID, 0)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !o.busy(p.ID) {
		if time.Now().After(deadline) {
			t.Fatal("first render never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := o.Render(context.Background(), p.ID, 0)
	if !errors.Is(err, models.ErrBusy) {
		t.Errorf("concurrent render: err = %v, want ErrBusy", err)
	}

	wg.Wait()
	if !errors.Is(firstErr, models.ErrTimeout) {
		t.Errorf("first render: err = %v, want ErrTimeout", firstErr)
	}
}

func TestOtherProjectsAreNotBlocked(t *testing.T) {
	o, store, _ := setup(t, fakeManim, 10*time.Second)
	a := newProject(t, store, models.QualityLow)
	b := newProject(t, store, models.QualityLow)

	o.acquire(a.ID)
	defer o.release(a.ID)

	if _, err := o.Render(context.Background(), b.ID, 0); err != nil {
		t.Errorf("render of another project: %v", err)
	}
	if _, err := o.Render(context.Background(), a.ID, 0); !errors.Is(err, models.ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

type memJournal struct {
	mu      sync.Mutex
	records []models.RenderRecord
}

func (m *memJournal) Record(rec models.RenderRecord) (models.RenderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return rec, nil
}

func TestRunIsJournaled(t *testing.T) {
	o, store, _ := setup(t, failingManim, 10*time.Second)
	j := &memJournal{}
	o.journal = j
	p := newProject(t, store, models.QualityLow)

	o.Preview(context.Background(), p.ID, "", 0)

	if len(j.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(j.records))
	}
	rec := j.records[0]
	if rec.Status != "RenderFailure" || rec.Mode != models.ModePreview || rec.ProjectID != p.ID {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(rec.LogExcerpt, "NameError") {
		t.Errorf("LogExcerpt = %q", rec.LogExcerpt)
	}
}
