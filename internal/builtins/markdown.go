package builtins

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// decodeMarkdown parses Markdown with goldmark and returns its structure as
// a context value: the document headings and fenced code blocks, each with
// their 1-based source line. Scenarios use it to assert on documentation
// content, e.g. that a README still carries a given section.
func decodeMarkdown(source any, _ map[string]any) (any, error) {
	content, err := sourceBytes(source)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(content)
	doc := md.Parser().Parse(reader)

	headings := []any{}
	blocks := []any{}
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			line := 0
			if node.Lines().Len() > 0 {
				line = lineNumber(content, node.Lines().At(0).Start)
			} else if first, ok := node.FirstChild().(*ast.Text); ok {
				line = lineNumber(content, first.Segment.Start)
			}
			headings = append(headings, map[string]any{
				"level": node.Level,
				"text":  headingText(node, content),
				"line":  line,
			})
		case *ast.FencedCodeBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(content))
			}
			line := 0
			if lines.Len() > 0 {
				line = lineNumber(content, lines.At(0).Start)
			}
			blocks = append(blocks, map[string]any{
				"language": string(node.Language(content)),
				"content":  buf.String(),
				"line":     line,
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"headings":    headings,
		"code_blocks": blocks,
	}, nil
}

// headingText gets the text content of a heading node.
func headingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// lineNumber calculates the 1-based line number for a byte offset.
func lineNumber(content []byte, offset int) int {
	return bytes.Count(content[:offset], []byte("\n")) + 1
}
