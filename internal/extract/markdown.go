package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/jcarver/docchat/internal/domain"
)

// extractMarkdown flattens a markdown document to plain text by walking the
// goldmark AST. Formatting is dropped; text content, code blocks, and link
// targets survive so they remain searchable.
func extractMarkdown(source []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Blank line between blocks keeps paragraph boundaries.
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.AutoLink:
			b.Write(node.URL(source))
		case *ast.FencedCodeBlock:
			writeBlockLines(&b, source, node)
		case *ast.CodeBlock:
			writeBlockLines(&b, source, node)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", domain.E(domain.KindExtraction, stage, err)
	}

	return b.String(), nil
}

func writeBlockLines(b *strings.Builder, source []byte, node ast.Node) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}
