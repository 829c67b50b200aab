package preview

import (
	"html"
	"strconv"
	"strings"
)

var unsafeSchemes = []string{"javascript:", "vbscript:", "data:"}

// Render converts note content to display markup. All literal text is
// escaped; wiki links become inert anchors.
func Render(content string) string {
	var b strings.Builder
	renderTokens(&b, Tokenize(content))
	return b.String()
}

func renderTokens(b *strings.Builder, tokens []Token) {
	for _, t := range tokens {
		renderToken(b, t)
	}
}

func renderToken(b *strings.Builder, t Token) {
	switch t.Kind {
	case Text:
		b.WriteString(html.EscapeString(t.Text))
	case Heading:
		level := strconv.Itoa(t.Level)
		b.WriteString("<h" + level + ">")
		renderTokens(b, t.Children)
		b.WriteString("</h" + level + ">")
	case ListItem:
		b.WriteString("<li>")
		renderTokens(b, t.Children)
		b.WriteString("</li>")
	case CodeBlock:
		b.WriteString("<pre><code>")
		b.WriteString(html.EscapeString(t.Text))
		b.WriteString("</code></pre>")
	case Strong:
		b.WriteString("<strong>")
		renderTokens(b, t.Children)
		b.WriteString("</strong>")
	case Emphasis:
		b.WriteString("<em>")
		renderTokens(b, t.Children)
		b.WriteString("</em>")
	case StrongEmphasis:
		b.WriteString("<strong><em>")
		renderTokens(b, t.Children)
		b.WriteString("</em></strong>")
	case WikiLink:
		target := html.EscapeString(t.Text)
		b.WriteString(`<a href="#" class="wikilink" data-target="` + target + `">` + target + "</a>")
	case Link:
		b.WriteString(`<a href="` + html.EscapeString(safeHref(t.Href)) + `">`)
		renderTokens(b, t.Children)
		b.WriteString("</a>")
	case Code:
		b.WriteString("<code>")
		b.WriteString(html.EscapeString(t.Text))
		b.WriteString("</code>")
	case LineBreak:
		b.WriteString("<br>")
	}
}

func safeHref(href string) string {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range unsafeSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "#"
		}
	}
	return href
}
