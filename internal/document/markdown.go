package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// plainText reduces markdown to the text a listener should hear. Blocks
// are separated by blank lines so each one ends a sentence; code, HTML
// and images are dropped, and links keep only their text.
func plainText(md []byte) (body, title string) {
	doc := goldmark.New().Parser().Parse(text.NewReader(md))

	var buf strings.Builder
	headingStart := -1

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML,
			*ast.ThematicBreak, *ast.Image:
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			if entering {
				buf.Write(n.Segment.Value(md))
				switch {
				case n.HardLineBreak():
					buf.WriteByte('\n')
				case n.SoftLineBreak():
					buf.WriteByte(' ')
				}
			}

		case *ast.String:
			if entering {
				buf.Write(n.Value)
			}

		case *ast.AutoLink:
			if entering {
				buf.Write(n.Label(md))
			}
			return ast.WalkSkipChildren, nil

		case *ast.Heading:
			if entering {
				if title == "" && headingStart < 0 {
					headingStart = buf.Len()
				}
				return ast.WalkContinue, nil
			}
			if title == "" && headingStart >= 0 {
				title = strings.TrimSpace(buf.String()[headingStart:])
				headingStart = -1
			}
			buf.WriteString("\n\n")

		case *ast.Paragraph, *ast.ListItem:
			if !entering {
				buf.WriteString("\n\n")
			}

		case *ast.TextBlock:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(strings.TrimSpace(buf.String())), title
}

// collapseBlankLines squeezes runs of blank lines to one and trims
// trailing spaces from every line.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
