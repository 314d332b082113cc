// Package layout compiles a pane-layout tree (§4.4) into tmux pane
// commands or zellij KDL layout text.
package layout

import (
	"fmt"
	"strings"

	"github.com/grove-run/grove/internal/groveerr"
)

// Role identifies what runs in a leaf pane.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleGrove      Role = "grove"
	RoleShell      Role = "shell"
	RoleFilePicker Role = "file_picker"
	RoleCustom     Role = "custom"
)

// Direction is a split's orientation.
type Direction string

const (
	Horizontal Direction = "horizontal" // side by side
	Vertical   Direction = "vertical"   // stacked
)

// Node is one element of a layout tree: a Split or a Leaf.
type Node struct {
	// Split fields.
	Split     bool
	Direction Direction
	Ratio     int // percentage given to First, 1-99
	First     *Node
	Second    *Node

	// Leaf fields.
	Leaf       bool
	Role       Role
	CustomCmd  string // used when Role == RoleCustom
	Placeholder bool
}

const maxPanes = 8

// Preset is a named, pre-built layout tree.
type Preset string

const (
	PresetSingle       Preset = "single"
	PresetAgent        Preset = "agent"
	PresetAgentShell   Preset = "agent_shell"
	PresetAgentMonitor Preset = "agent_monitor"
	PresetGroveAgent   Preset = "grove_agent"
)

// BuildPreset returns the tree for a named preset.
func BuildPreset(p Preset) (*Node, error) {
	switch p {
	case PresetSingle:
		return &Node{Leaf: true, Role: RoleAgent}, nil
	case PresetAgent:
		return &Node{Leaf: true, Role: RoleAgent}, nil
	case PresetAgentShell:
		// agent 60% + shell 40%, horizontal (side by side).
		return &Node{
			Split: true, Direction: Horizontal, Ratio: 60,
			First:  &Node{Leaf: true, Role: RoleAgent},
			Second: &Node{Leaf: true, Role: RoleShell},
		}, nil
	case PresetAgentMonitor:
		// agent 60% + right column split 60/40 into grove-monitor and shell.
		rightCol := &Node{
			Split: true, Direction: Vertical, Ratio: 60,
			First:  &Node{Leaf: true, Role: RoleGrove},
			Second: &Node{Leaf: true, Role: RoleShell},
		}
		return &Node{
			Split: true, Direction: Horizontal, Ratio: 60,
			First:  &Node{Leaf: true, Role: RoleAgent},
			Second: rightCol,
		}, nil
	case PresetGroveAgent:
		// grove 40% + agent 60%.
		return &Node{
			Split: true, Direction: Horizontal, Ratio: 40,
			First:  &Node{Leaf: true, Role: RoleGrove},
			Second: &Node{Leaf: true, Role: RoleAgent},
		}, nil
	default:
		return nil, groveerr.New(groveerr.KindInvalidData, "unknown layout preset %q", p)
	}
}

// CountLeaves returns the number of leaf panes in the tree, used to
// enforce the 8-pane maximum for custom trees.
func CountLeaves(n *Node) int {
	if n == nil {
		return 0
	}
	if n.Leaf || n.Placeholder {
		return 1
	}
	return CountLeaves(n.First) + CountLeaves(n.Second)
}

// Validate enforces the 8-pane ceiling on a custom tree.
func Validate(n *Node) error {
	if c := CountLeaves(n); c > maxPanes {
		return groveerr.New(groveerr.KindInvalidData, "layout has %d panes, maximum is %d", c, maxPanes)
	}
	return nil
}

// LeafCommand returns the shell command used to populate a leaf pane,
// given the agent command to run for RoleAgent and the grove CLI's own
// monitor subcommand invocation for RoleGrove.
func LeafCommand(n *Node, agentCmd, groveMonitorCmd string) string {
	switch n.Role {
	case RoleAgent:
		return agentCmd
	case RoleGrove:
		return groveMonitorCmd
	case RoleShell:
		return ""
	case RoleCustom:
		return n.CustomCmd
	case RoleFilePicker:
		return "grove files"
	default:
		return ""
	}
}

// kdlEscape escapes backslashes and double quotes for embedding in a KDL
// string literal.
func kdlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// kdlDirection maps a Direction to zellij's split_direction, whose naming
// is the reverse of tmux's: split_direction="vertical" places panes side
// by side.
func kdlDirection(d Direction) string {
	if d == Horizontal {
		return "vertical"
	}
	return "horizontal"
}

// CompileKDL renders a layout tree as a zellij KDL layout document.
func CompileKDL(n *Node, agentCmd, groveMonitorCmd string) string {
	var b strings.Builder
	b.WriteString("layout {\n")
	writeKDLNode(&b, n, agentCmd, groveMonitorCmd, 1)
	b.WriteString("}\n")
	return b.String()
}

func writeKDLNode(b *strings.Builder, n *Node, agentCmd, groveMonitorCmd string, depth int) {
	indent := strings.Repeat("    ", depth)
	if n.Split {
		fmt.Fprintf(b, "%spane split_direction=%q {\n", indent, kdlDirection(n.Direction))
		writeKDLChild(b, n.First, agentCmd, groveMonitorCmd, depth+1, n.Ratio)
		writeKDLChild(b, n.Second, agentCmd, groveMonitorCmd, depth+1, 100-n.Ratio)
		fmt.Fprintf(b, "%s}\n", indent)
		return
	}
	writeKDLLeaf(b, n, agentCmd, groveMonitorCmd, depth, 0)
}

func writeKDLChild(b *strings.Builder, n *Node, agentCmd, groveMonitorCmd string, depth, sizePercent int) {
	if n.Split {
		indent := strings.Repeat("    ", depth)
		fmt.Fprintf(b, "%s// size=\"%d%%\"\n", indent, sizePercent)
		fmt.Fprintf(b, "%spane split_direction=%q {\n", indent, kdlDirection(n.Direction))
		writeKDLChild(b, n.First, agentCmd, groveMonitorCmd, depth+1, n.Ratio)
		writeKDLChild(b, n.Second, agentCmd, groveMonitorCmd, depth+1, 100-n.Ratio)
		fmt.Fprintf(b, "%s}\n", indent)
		return
	}
	writeKDLLeaf(b, n, agentCmd, groveMonitorCmd, depth, sizePercent)
}

func writeKDLLeaf(b *strings.Builder, n *Node, agentCmd, groveMonitorCmd string, depth, sizePercent int) {
	indent := strings.Repeat("    ", depth)
	cmd := LeafCommand(n, agentCmd, groveMonitorCmd)
	size := ""
	if sizePercent > 0 {
		size = fmt.Sprintf(" size=\"%d%%\"", sizePercent)
	}
	if cmd == "" {
		fmt.Fprintf(b, "%spane%s\n", indent, size)
		return
	}
	fmt.Fprintf(b, "%spane%s command=\"sh\" {\n", indent, size)
	fmt.Fprintf(b, "%s    args \"-c\" \"%s\"\n", indent, kdlEscape(cmd))
	fmt.Fprintf(b, "%s}\n", indent)
}

// initialPane is the sentinel FromStep value meaning "the pane that
// already exists when the session is created" — no split is needed to
// obtain it.
const initialPane = -1

// TmuxStep is one pane-creation instruction for the tmux compiler.
// FromStep indexes an earlier step's resulting pane (or initialPane for
// the session's first pane); the executor splits that pane to produce
// this step's pane and, if Command is non-empty, runs it there (e.g. via
// send-keys or respawn-pane).
type TmuxStep struct {
	FromStep  int
	Direction string // "-h" or "-v", per tmux split-window; empty for the initial pane
	Percent   int
	Command   string
	Role      Role
}

// CompileTmux flattens a layout tree into an ordered list of pane steps.
// The caller executes these in order against a live session: for each
// step with Direction set, run split-window against the pane produced by
// FromStep (or the session's initial pane) and record the new pane id by
// this step's index; for the implicit initial-pane step (Direction ==
// ""), the initial pane is reused directly.
func CompileTmux(n *Node, agentCmd, groveMonitorCmd string) []TmuxStep {
	var steps []TmuxStep
	compileTmuxNode(n, initialPane, agentCmd, groveMonitorCmd, &steps)
	return steps
}

// compileTmuxNode emits steps for n, whose pane already exists at index
// fromPane (initialPane for the very first pane), and returns the index of
// the step whose pane now hosts n (so a parent Split can reference it).
func compileTmuxNode(n *Node, fromPane int, agentCmd, groveMonitorCmd string, steps *[]TmuxStep) int {
	if n.Split {
		dir := "-h"
		if n.Direction == Vertical {
			dir = "-v"
		}
		firstIdx := compileTmuxNode(n.First, fromPane, agentCmd, groveMonitorCmd, steps)
		*steps = append(*steps, TmuxStep{
			FromStep:  firstIdx,
			Direction: dir,
			Percent:   100 - n.Ratio,
		})
		secondIdx := len(*steps) - 1
		cmd := leafCommandFor(n.Second, agentCmd, groveMonitorCmd)
		if cmd != "" {
			(*steps)[secondIdx].Command = cmd
			(*steps)[secondIdx].Role = n.Second.Role
		}
		return compileTmuxNode(n.Second, secondIdx, agentCmd, groveMonitorCmd, steps)
	}

	if fromPane == initialPane {
		cmd := LeafCommand(n, agentCmd, groveMonitorCmd)
		*steps = append(*steps, TmuxStep{FromStep: initialPane, Command: cmd, Role: n.Role})
		return len(*steps) - 1
	}
	// A leaf reached as a nested split's First child lands in the pane its
	// parent split created, which has no command yet.
	if cmd := LeafCommand(n, agentCmd, groveMonitorCmd); cmd != "" {
		(*steps)[fromPane].Command = cmd
		(*steps)[fromPane].Role = n.Role
	}
	return fromPane
}

func leafCommandFor(n *Node, agentCmd, groveMonitorCmd string) string {
	if n.Split {
		return ""
	}
	return LeafCommand(n, agentCmd, groveMonitorCmd)
}
