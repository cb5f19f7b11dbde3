package markdown

import (
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// titleRemover drops every level one heading.
type titleRemover struct{}

func (t *titleRemover) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	var titles []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			if h.Level == 1 {
				titles = append(titles, h)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, n := range titles {
		n.Parent().RemoveChild(n.Parent(), n)
	}
}

// dirAutoTransformer marks text blocks with dir="auto" so right-to-left posts render correctly.
type dirAutoTransformer struct{}

var dirAuto = []byte("auto")

func (t *dirAutoTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindHeading, ast.KindBlockquote,
			ast.KindList, ast.KindListItem, east.KindTable:
			n.SetAttributeString("dir", dirAuto)
		}
		return ast.WalkContinue, nil
	})
}
