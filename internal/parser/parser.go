// Package parser extracts wiki links, tags, and checklist items from note content.
package parser

import (
	"regexp"
	"strings"
)

var (
	// `.` does not cross newlines, so a link payload stays on one line.
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
	taskRe     = regexp.MustCompile(`^\s*- \[( |x|X)\] (.+)$`)
)

// Result holds the derived fields of a note.
type Result struct {
	Links []string
	Tags  []string
}

// Extract returns both derived sequences of content.
func Extract(content string) Result {
	return Result{
		Links: ExtractLinks(content),
		Tags:  ExtractTags(content),
	}
}

// ExtractLinks returns every [[target]] payload verbatim, in order of
// appearance. Duplicates are kept.
func ExtractLinks(content string) []string {
	return submatches(wikilinkRe, content)
}

// ExtractTags returns the word after every '#', in order of appearance.
// Duplicates are kept. Tags inside URLs or code are not distinguished.
func ExtractTags(content string) []string {
	return submatches(tagRe, content)
}

func submatches(re *regexp.Regexp, content string) []string {
	matches := re.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Unique returns seq without repeats, keeping first appearances.
func Unique(seq []string) []string {
	seen := make(map[string]struct{}, len(seq))
	out := make([]string, 0, len(seq))
	for _, s := range seq {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ChecklistItem is a "- [ ] text" line found in note content.
type ChecklistItem struct {
	Line int    `json:"line"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// ExtractTasks returns the markdown checklist items of content with
// 1-based line numbers.
func ExtractTasks(content string) []ChecklistItem {
	out := []ChecklistItem{}
	for i, line := range strings.Split(content, "\n") {
		m := taskRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		out = append(out, ChecklistItem{
			Line: i + 1,
			Text: strings.TrimSpace(m[2]),
			Done: m[1] != " ",
		})
	}
	return out
}
