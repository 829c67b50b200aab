package preview

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bold", "**bold**", "<strong>bold</strong>"},
		{"italic", "*it*", "<em>it</em>"},
		{"bold italic", "***both***", "<strong><em>both</em></strong>"},
		{"italic around bold", "*a **b** c*", "<em>a <strong>b</strong> c</em>"},
		{"headings", "# One\n## Two\n### Three", "<h1>One</h1><br><h2>Two</h2><br><h3>Three</h3>"},
		{"heading needs space", "#tag", "#tag"},
		{"heading then tag", "# Title\n#tag", "<h1>Title</h1><br>#tag"},
		{"four hashes is text", "#### deep", "#### deep"},
		{"heading inline", "## a **b**", "<h2>a <strong>b</strong></h2>"},
		{"wikilink", "see [[Other Note]]", `see <a href="#" class="wikilink" data-target="Other Note">Other Note</a>`},
		{"link", "[site](https://example.com)", `<a href="https://example.com">site</a>`},
		{"inline code", "run `go *test*`", "run <code>go *test*</code>"},
		{"list", "- one\n- two", "<li>one</li><br><li>two</li>"},
		{"dash without space", "-x", "-x"},
		{"unterminated", "**open and `tick", "**open and `tick"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.in); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRender_CodeBlockIsOpaque(t *testing.T) {
	got := Render("before\n```\n# not a heading\n**x** [[y]]\n```\nafter")
	want := "before<br><pre><code>\n# not a heading\n**x** [[y]]\n</code></pre><br>after"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_HeadingAfterCodeBlockLine(t *testing.T) {
	got := Render("```x``` # inline\n# real")
	want := "<pre><code>x</code></pre> # inline<br><h1>real</h1>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_EscapesHTML(t *testing.T) {
	got := Render(`<script>alert("x")</script> **<b>**`)
	if strings.Contains(got, "<script>") || strings.Contains(got, "<b>") {
		t.Fatalf("raw markup leaked: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("expected escaped script tag, got %q", got)
	}
	if !strings.Contains(got, "<strong>&lt;b&gt;</strong>") {
		t.Errorf("expected escaped bold content, got %q", got)
	}
}

func TestRender_EscapesWikiLinkTarget(t *testing.T) {
	got := Render(`[["><img src=x>]]`)
	if strings.Contains(got, "<img") {
		t.Errorf("wikilink target not escaped: %q", got)
	}
}

func TestRender_UnsafeHrefNeutralised(t *testing.T) {
	got := Render("[click](javascript:alert(1)")
	if strings.Contains(got, "javascript:") {
		t.Errorf("javascript href kept: %q", got)
	}
	if !strings.HasPrefix(got, `<a href="#">click</a>`) {
		t.Errorf("got %q", got)
	}
}

func TestTokenize_Kinds(t *testing.T) {
	tokens := Tokenize("# H\n- [[x]]")
	if len(tokens) != 3 {
		t.Fatalf("len(tokens) = %d, want 3: %+v", len(tokens), tokens)
	}
	if tokens[0].Kind != Heading || tokens[0].Level != 1 {
		t.Errorf("tokens[0] = %+v", tokens[0])
	}
	if tokens[1].Kind != LineBreak {
		t.Errorf("tokens[1] = %+v", tokens[1])
	}
	li := tokens[2]
	if li.Kind != ListItem || len(li.Children) != 1 || li.Children[0].Kind != WikiLink || li.Children[0].Text != "x" {
		t.Errorf("tokens[2] = %+v", li)
	}
	if ListItem.String() != "list_item" {
		t.Errorf("ListItem.String() = %q", ListItem.String())
	}
}

func TestDocument(t *testing.T) {
	out, err := Document("# Title\n\nSee [[Other]] and **bold**.\n\n<script>x</script>\n")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !strings.Contains(out, "<h1>Title</h1>") {
		t.Errorf("missing heading: %q", out)
	}
	if !strings.Contains(out, `<a href="#" class="wikilink">Other</a>`) {
		t.Errorf("missing wikilink anchor: %q", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("missing bold: %q", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML leaked: %q", out)
	}
}
