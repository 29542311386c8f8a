package renderer

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const indentUnit = "  "

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

// bodies printed exactly as parsed
var verbatimElements = map[atom.Atom]bool{
	atom.Pre: true, atom.Textarea: true, atom.Script: true, atom.Style: true,
}

var inlineElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Bdi: true, atom.Bdo: true,
	atom.Br: true, atom.Cite: true, atom.Code: true, atom.Data: true,
	atom.Dfn: true, atom.Em: true, atom.I: true, atom.Img: true, atom.Kbd: true,
	atom.Label: true, atom.Mark: true, atom.Q: true, atom.S: true,
	atom.Samp: true, atom.Small: true, atom.Span: true, atom.Strong: true,
	atom.Sub: true, atom.Sup: true, atom.Time: true, atom.U: true,
	atom.Var: true, atom.Wbr: true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&#34;")
)

// Format parses an HTML document and prints it canonically: two-space
// indentation, double-quoted attributes, one block element per line and
// inline-only content kept on its parent's line. The bodies of pre,
// textarea, script and style are not touched.
func Format(src []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		formatNode(&buf, c, 0)
	}
	return buf.Bytes(), nil
}

func formatNode(buf *bytes.Buffer, n *html.Node, depth int) {
	indent := strings.Repeat(indentUnit, depth)

	switch n.Type {
	case html.DoctypeNode:
		buf.WriteString("<!DOCTYPE " + n.Data + ">\n")
	case html.CommentNode:
		buf.WriteString(indent + "<!--" + n.Data + "-->\n")
	case html.TextNode:
		if text := collapse(n.Data); text != "" {
			buf.WriteString(indent + textEscaper.Replace(text) + "\n")
		}
	case html.ElementNode:
		formatElement(buf, n, depth)
	}
}

func formatElement(buf *bytes.Buffer, n *html.Node, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	buf.WriteString(indent)
	writeStartTag(buf, n)

	switch {
	case voidElements[n.DataAtom]:
		buf.WriteByte('\n')
		return
	case verbatimElements[n.DataAtom]:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeRaw(buf, c)
		}
	case n.FirstChild == nil:
	case inlineOnly(n):
		buf.WriteString(strings.TrimSpace(inlineChildren(n)))
	default:
		buf.WriteByte('\n')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			formatNode(buf, c, depth+1)
		}
		buf.WriteString(indent)
	}
	buf.WriteString("</" + n.Data + ">\n")
}

func writeStartTag(buf *bytes.Buffer, n *html.Node) {
	buf.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		buf.WriteByte(' ')
		if a.Namespace != "" {
			buf.WriteString(a.Namespace + ":")
		}
		buf.WriteString(a.Key)
		buf.WriteString(`="` + attrEscaper.Replace(a.Val) + `"`)
	}
	buf.WriteByte('>')
}

// writeRaw prints a node of a verbatim element without reformatting.
func writeRaw(buf *bytes.Buffer, n *html.Node) {
	if n.Type == html.TextNode {
		// script and style text is raw; pre and textarea text was unescaped
		if p := n.Parent; p != nil && (p.DataAtom == atom.Script || p.DataAtom == atom.Style) {
			buf.WriteString(n.Data)
			return
		}
		buf.WriteString(textEscaper.Replace(n.Data))
		return
	}
	_ = html.Render(buf, n)
}

func inlineOnly(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			if !inlineElements[c.DataAtom] || !inlineOnly(c) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func inlineChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(textEscaper.Replace(collapseKeepEdges(c.Data)))
		case html.ElementNode:
			var tag bytes.Buffer
			writeStartTag(&tag, c)
			b.Write(tag.Bytes())
			if !voidElements[c.DataAtom] {
				b.WriteString(inlineChildren(c))
				b.WriteString("</" + c.Data + ">")
			}
		}
	}
	return b.String()
}

// collapse folds runs of whitespace into one space and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapseKeepEdges folds whitespace like collapse but keeps a single space
// where the text started or ended with whitespace, so words around inline
// elements stay apart.
func collapseKeepEdges(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	out := collapse(s)
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
