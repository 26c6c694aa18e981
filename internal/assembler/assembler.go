// Package assembler turns a project's ordered code segments into a single
// manim scene source file. Segment code is treated as opaque text.
package assembler

import (
	"fmt"
	"strings"

	"github.com/wagnerlima/manim-mcp/internal/models"
)

// SceneName is the class name of the generated scene.
const SceneName = "GeneratedScene"

const (
	header     = "from manim import *\n"
	classLine  = "class " + SceneName + "(Scene):\n"
	methodLine = "    def construct(self):\n"
	bodyIndent = "        "
	emptyBody  = bodyIndent + "pass\n"
)

// Assemble renders every segment of p into scene source.
func Assemble(p *models.Project) string {
	src, _ := assemble(p, "")
	return src
}

// AssembleUpTo renders the preamble plus the construct segments up to and
// including segmentID. segmentID must name a construct segment of p.
func AssembleUpTo(p *models.Project, segmentID string) (string, error) {
	seg, ok := p.Segment(segmentID)
	if !ok || seg.Kind != models.KindConstruct {
		return "", fmt.Errorf("construct segment %q in project %q: %w", segmentID, p.ID, models.ErrNotFound)
	}
	return assemble(p, segmentID)
}

func assemble(p *models.Project, stopAt string) (string, error) {
	// Scoping cuts construct code only; the whole preamble is always kept.
	var preamble, body []string
	done := false
	for _, s := range p.Segments {
		if s.Kind == models.KindPreamble {
			preamble = append(preamble, normalize(s.Code))
			continue
		}
		if done {
			continue
		}
		body = append(body, indent(normalize(s.Code)))
		done = s.ID == stopAt
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	if len(preamble) > 0 {
		b.WriteString(strings.Join(preamble, "\n\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("\n")
	b.WriteString(classLine)
	b.WriteString(methodLine)
	if len(body) == 0 {
		b.WriteString(emptyBody)
	} else {
		b.WriteString(strings.Join(body, "\n\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// normalize converts line endings, drops leading and trailing blank lines
// and trailing spaces, and removes the whitespace prefix common to all
// non-blank lines.
func normalize(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	prefix := ""
	first := true
	for _, l := range lines {
		if l == "" {
			continue
		}
		lead := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = lead, false
			continue
		}
		prefix = commonPrefix(prefix, lead)
	}
	if prefix != "" {
		for i, l := range lines {
			lines[i] = strings.TrimPrefix(l, prefix)
		}
	}
	return strings.Join(lines, "\n")
}

func indent(code string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = bodyIndent + l
		}
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
