package acp

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ToolCallContent is the union of content variants a tool call can carry
// (§4.5.5): plain text, a diff, or a terminal handle.
type ToolCallContent struct {
	Text       string
	DiffPath   string
	DiffOld    string
	DiffNew    string
	IsDiff     bool
	TerminalID string
	IsTerminal bool
}

// ContentAdapter converts a ToolCallContent into display text for
// persistence and UI rendering. Chosen at session startup from the
// agent command's basename.
type ContentAdapter interface {
	Render(c ToolCallContent) string
}

// NewContentAdapter picks an adapter by the agent command's basename.
func NewContentAdapter(agentCommand string) ContentAdapter {
	base := filepath.Base(agentCommand)
	if base == "claude-code-acp" {
		return claudeCodeAdapter{}
	}
	return defaultAdapter{}
}

type defaultAdapter struct{}

func (defaultAdapter) Render(c ToolCallContent) string {
	if c.IsTerminal {
		return fmt.Sprintf("[terminal %s]", c.TerminalID)
	}
	if c.IsDiff {
		return renderDiff(c.DiffPath, c.DiffOld, c.DiffNew)
	}
	return c.Text
}

var systemReminderBlock = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)

// claudeCodeAdapter additionally strips <system-reminder>...</system-reminder>
// blocks the claude-code-acp agent injects into tool output. Only complete
// pairs are stripped; an unclosed block is left as-is.
type claudeCodeAdapter struct{}

func (claudeCodeAdapter) Render(c ToolCallContent) string {
	rendered := defaultAdapter{}.Render(c)
	rendered = systemReminderBlock.ReplaceAllString(rendered, "")
	return strings.TrimSpace(rendered)
}

// renderDiff formats a diff: a brand-new file (no old text) renders as a
// fenced markdown code block keyed by the file's extension; an existing
// file renders as a real unified diff with 3 lines of context, omitting
// the "---"/"+++" header since the UI already shows the filename.
func renderDiff(path, oldText, newText string) string {
	if oldText == "" {
		lang := strings.TrimPrefix(filepath.Ext(path), ".")
		return fmt.Sprintf("```%s\n%s\n```", lang, newText)
	}

	dmp := diffmatchpatch.New()
	oldLines, newLines, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(oldLines, newLines, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	return unifiedDiff(diffs, 3)
}

// unifiedDiff renders line-level diffmatchpatch output as a unified diff
// body (no file headers) with the given number of context lines.
func unifiedDiff(diffs []diffmatchpatch.Diff, context int) string {
	type line struct {
		op   diffmatchpatch.Operation
		text string
	}
	var lines []line
	for _, d := range diffs {
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			lines = append(lines, line{d.Type, l})
		}
	}

	var b strings.Builder
	for i, l := range lines {
		if l.op == diffmatchpatch.DiffEqual {
			// Only show equal lines within `context` of a change.
			near := false
			for j := i - context; j <= i+context; j++ {
				if j >= 0 && j < len(lines) && lines[j].op != diffmatchpatch.DiffEqual {
					near = true
					break
				}
			}
			if !near {
				continue
			}
			b.WriteString("  ")
			b.WriteString(l.text)
			continue
		}
		prefix := "+ "
		if l.op == diffmatchpatch.DiffDelete {
			prefix = "- "
		}
		b.WriteString(prefix)
		b.WriteString(l.text)
	}
	return b.String()
}
