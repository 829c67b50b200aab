package preview

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Runs ahead of goldmark's link parser (priority 200).
const wikiLinkPriority = 199

var documentRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithInlineParsers(util.Prioritized(wikiLinkParser{}, wikiLinkPriority)),
	),
)

// Document renders content as a full CommonMark + GFM fragment. Raw HTML
// in the source is omitted.
func Document(content string) (string, error) {
	var buf bytes.Buffer
	if err := documentRenderer.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("preview: render document: %w", err)
	}
	return buf.String(), nil
}

// wikiLinkParser turns [[target]] into an inert link node.
type wikiLinkParser struct{}

func (wikiLinkParser) Trigger() []byte {
	return []byte{'['}
}

func (wikiLinkParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, seg := block.PeekLine()
	if !bytes.HasPrefix(line, []byte("[[")) {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end <= 0 {
		return nil
	}
	link := ast.NewLink()
	link.Destination = []byte("#")
	link.SetAttributeString("class", []byte("wikilink"))
	link.AppendChild(link, ast.NewTextSegment(text.NewSegment(seg.Start+2, seg.Start+2+end)))
	block.Advance(end + 4)
	return link
}
