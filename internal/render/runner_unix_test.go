//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package render

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/wagnerlima/manim-mcp/internal/models"
)

// lingeringManim writes the video, leaves a background helper running with
// the output pipe inherited, and exits 0.
const lingeringManim = `#!/bin/sh
file="$2"; scene="$3"; shift 3
media=""
while [ $# -gt 0 ]; do
  case "$1" in
    --media_dir) media="$2"; shift ;;
  esac
  shift
done
stem=$(basename "$file" .py)
mkdir -p "$media/videos/$stem/480p15"
echo mp4 > "$media/videos/$stem/480p15/$scene.mp4"
sleep 47 &
echo $! > "$media/helper.pid"
echo done
exit 0
`

// processGone reports whether pid has exited, treating zombies as gone.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return true
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	fields := strings.Fields(string(stat))
	return len(fields) > 2 && fields[2] == "Z"
}

func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("helper process %d still running after the renderer exited", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestExecRenderer_CleanExitWithLingeringChild(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, "#!/bin/sh\nsleep 47 &\necho $! > \"$1\"\necho ok\nexit 0\n")
	pidFile := filepath.Join(dir, "helper.pid")

	res := execRenderer(context.Background(), dir, bin, pidFile)
	if res.ExitCode != 0 || res.Err != nil || res.TimedOut {
		t.Fatalf("res = %+v, want a clean exit", res)
	}
	if res.Duration >= waitDelay {
		t.Errorf("Duration = %s, waited on the helper's pipe", res.Duration)
	}
	if !strings.Contains(res.Output, "ok") {
		t.Errorf("Output = %q", res.Output)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	waitGone(t, pid)
}

func TestRenderSucceedsWithLingeringChild(t *testing.T) {
	o, store, dir := setup(t, lingeringManim, 30*time.Second)
	p := newProject(t, store, models.QualityLow)

	res, err := o.Render(context.Background(), p.ID, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !res.Success || res.Duration >= waitDelay {
		t.Errorf("res = %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(dir, "media", "helper.pid"))
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	waitGone(t, pid)
}
