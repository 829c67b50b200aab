// Package preview renders note content to display markup.
//
// Render uses a single-pass tokenizer over a small markdown subset
// (headings, emphasis, wiki links, links, code, bullet lines) so rules
// never rewrite each other's output. Document renders full CommonMark for
// export.
package preview

import "strings"

// Kind identifies a token type.
type Kind int

// Token kinds.
const (
	Text Kind = iota
	Heading
	ListItem
	CodeBlock
	Strong
	Emphasis
	StrongEmphasis
	WikiLink
	Link
	Code
	LineBreak
)

var kindNames = [...]string{
	Text:           "text",
	Heading:        "heading",
	ListItem:       "list_item",
	CodeBlock:      "code_block",
	Strong:         "strong",
	Emphasis:       "emphasis",
	StrongEmphasis: "strong_emphasis",
	WikiLink:       "wikilink",
	Link:           "link",
	Code:           "code",
	LineBreak:      "line_break",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Token is one node of the preview token stream. Text carries the literal
// payload of Text, Code, CodeBlock and WikiLink tokens. Heading, ListItem,
// emphasis and Link tokens carry their inline content in Children.
type Token struct {
	Kind     Kind
	Level    int
	Text     string
	Href     string
	Children []Token
}

// Tokenize splits content into block and inline tokens. Fenced code is cut
// out first so nothing inside it is interpreted.
func Tokenize(content string) []Token {
	var out []Token
	lineStart := true
	for content != "" {
		start := strings.Index(content, "```")
		end := -1
		if start >= 0 {
			end = strings.Index(content[start+3:], "```")
		}
		if end < 0 {
			out = append(out, tokenizeLines(content, lineStart)...)
			break
		}
		out = append(out, tokenizeLines(content[:start], lineStart)...)
		out = append(out, Token{Kind: CodeBlock, Text: content[start+3 : start+3+end]})
		content = content[start+3+end+3:]
		lineStart = false
	}
	return out
}

func tokenizeLines(s string, lineStart bool) []Token {
	var out []Token
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, Token{Kind: LineBreak})
		}
		out = append(out, tokenizeLine(line, lineStart || i > 0)...)
	}
	return out
}

func tokenizeLine(line string, atStart bool) []Token {
	if !atStart {
		return inline(line)
	}
	for level := 3; level >= 1; level-- {
		prefix := strings.Repeat("#", level) + " "
		if strings.HasPrefix(line, prefix) {
			return []Token{{Kind: Heading, Level: level, Children: inline(line[len(prefix):])}}
		}
	}
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		return []Token{{Kind: ListItem, Children: inline(rest)}}
	}
	return inline(line)
}

func inline(s string) []Token {
	var out []Token
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			out = append(out, Token{Kind: Text, Text: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(s); {
		if tok, n, ok := inlineAt(s[i:]); ok {
			flush()
			out = append(out, tok)
			i += n
			continue
		}
		text.WriteByte(s[i])
		i++
	}
	flush()
	return out
}

// inlineAt recognizes a span starting at s[0] and reports its length.
func inlineAt(s string) (Token, int, bool) {
	switch {
	case s[0] == '`':
		if j := strings.IndexByte(s[1:], '`'); j > 0 {
			return Token{Kind: Code, Text: s[1 : 1+j]}, j + 2, true
		}
	case strings.HasPrefix(s, "[["):
		if j := strings.Index(s[2:], "]]"); j >= 0 {
			return Token{Kind: WikiLink, Text: s[2 : 2+j]}, j + 4, true
		}
	case s[0] == '[':
		return markdownLink(s)
	case strings.HasPrefix(s, "***"):
		if tok, n, ok := delimited(s, "***", StrongEmphasis); ok {
			return tok, n, true
		}
		return delimited(s, "**", Strong)
	case strings.HasPrefix(s, "**"):
		return delimited(s, "**", Strong)
	case s[0] == '*':
		return delimited(s, "*", Emphasis)
	}
	return Token{}, 0, false
}

func markdownLink(s string) (Token, int, bool) {
	j := strings.IndexByte(s[1:], ']')
	if j <= 0 || len(s) <= j+2 || s[j+2] != '(' {
		return Token{}, 0, false
	}
	rest := s[j+3:]
	k := strings.IndexByte(rest, ')')
	if k <= 0 {
		return Token{}, 0, false
	}
	return Token{Kind: Link, Href: rest[:k], Children: inline(s[1 : 1+j])}, j + 3 + k + 1, true
}

func delimited(s, marker string, kind Kind) (Token, int, bool) {
	body := s[len(marker):]
	var j int
	if marker == "*" {
		j = closingStar(body)
	} else {
		j = strings.Index(body, marker)
	}
	if j <= 0 {
		return Token{}, 0, false
	}
	return Token{Kind: kind, Children: inline(body[:j])}, 2*len(marker) + j, true
}

// closingStar finds the '*' closing an emphasis span, stepping over
// complete "**" pairs nested inside it.
func closingStar(s string) int {
	for j := 0; j < len(s); j++ {
		if s[j] != '*' {
			continue
		}
		if strings.HasPrefix(s[j:], "**") {
			if k := strings.Index(s[j+2:], "**"); k >= 0 {
				j += k + 3
				continue
			}
		}
		return j
	}
	return -1
}
