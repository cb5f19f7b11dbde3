package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// headingRenderer wraps the content of each heading in a link to its own anchor.
type headingRenderer struct{}

func (r *headingRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
}

func (r *headingRenderer) renderHeading(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	id := headingID(n)

	if entering {
		_, _ = w.WriteString("<h")
		_ = w.WriteByte("0123456"[n.Level])
		if n.Attributes() != nil {
			html.RenderAttributes(w, n, html.HeadingAttributeFilter)
		}
		_ = w.WriteByte('>')
		if id != nil {
			_, _ = w.WriteString(`<a class="autolink-heading" href="#`)
			_, _ = w.Write(util.EscapeHTML(util.URLEscape(id, false)))
			_, _ = w.WriteString(`">`)
		}
		return ast.WalkContinue, nil
	}

	if id != nil {
		_, _ = w.WriteString("</a>")
	}
	_, _ = w.WriteString("</h")
	_ = w.WriteByte("0123456"[n.Level])
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

func headingID(n *ast.Heading) []byte {
	v, ok := n.AttributeString("id")
	if !ok {
		return nil
	}
	id, _ := v.([]byte)
	if len(id) == 0 {
		return nil
	}
	return id
}
