package css

import (
	"bytes"
	"strings"
)

const indentUnit = "  "

// Format prints the stylesheet canonically: one declaration per line,
// two-space indentation, one selector per line and a blank line between
// top-level blocks.
func Format(sheet *Node) []byte {
	var buf bytes.Buffer
	formatChildren(&buf, sheet.Children, 0)
	return buf.Bytes()
}

func formatChildren(buf *bytes.Buffer, children []*Node, depth int) {
	var prev *Node
	for _, n := range children {
		if prev != nil && needsBlankLine(prev, n) {
			buf.WriteByte('\n')
		}
		formatNode(buf, n, depth)
		prev = n
	}
}

func needsBlankLine(prev, next *Node) bool {
	switch {
	case prev.Kind == Declaration || next.Kind == Declaration:
		return false
	case prev.Kind == AtRule && next.Kind == AtRule:
		return false
	case prev.Kind == Comment:
		return false
	}
	return true
}

func formatNode(buf *bytes.Buffer, n *Node, depth int) {
	indent := strings.Repeat(indentUnit, depth)

	switch n.Kind {
	case Comment:
		buf.WriteString(indent + n.Text + "\n")
	case AtRule:
		buf.WriteString(indent + n.Name)
		if n.Prelude != "" {
			buf.WriteString(" " + n.Prelude)
		}
		buf.WriteString(";\n")
	case Declaration:
		buf.WriteString(indent + n.Property + ": " + n.Value)
		if n.Important {
			buf.WriteString(" !important")
		}
		buf.WriteString(";\n")
	case Ruleset:
		for i, sel := range n.Selectors {
			buf.WriteString(indent + sel)
			if i < len(n.Selectors)-1 {
				buf.WriteString(",\n")
			}
		}
		formatBlock(buf, n, depth)
	case AtBlock:
		buf.WriteString(indent + n.Name)
		if n.Prelude != "" {
			buf.WriteString(" " + n.Prelude)
		}
		formatBlock(buf, n, depth)
	case Stylesheet:
		formatChildren(buf, n.Children, depth)
	}
}

func formatBlock(buf *bytes.Buffer, n *Node, depth int) {
	if len(n.Children) == 0 {
		buf.WriteString(" {\n" + strings.Repeat(indentUnit, depth) + "}\n")
		return
	}
	buf.WriteString(" {\n")
	formatChildren(buf, n.Children, depth+1)
	buf.WriteString(strings.Repeat(indentUnit, depth) + "}\n")
}
