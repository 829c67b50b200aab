package mirror

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const fence = "---\n"

// Document is a note as it lives in a vault file.
type Document struct {
	ID      string
	Title   string
	Content string
}

type header struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// encodeFile renders d as a front matter block followed by the content,
// which is kept byte for byte.
func encodeFile(d Document) ([]byte, error) {
	meta, err := yaml.Marshal(header{ID: d.ID, Title: d.Title})
	if err != nil {
		return nil, fmt.Errorf("mirror: encode front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(fence)*2 + len(meta) + len(d.Content))
	buf.WriteString(fence)
	buf.Write(meta)
	buf.WriteString(fence)
	buf.WriteString(d.Content)
	return buf.Bytes(), nil
}

// decodeFile splits a vault file into its document. Only a leading block
// whose id parses as a UUID counts as front matter; anything else is
// content, and the title falls back to stem.
func decodeFile(data []byte, stem string) Document {
	raw := string(data)
	plain := Document{Title: stem, Content: raw}

	rest, ok := strings.CutPrefix(raw, fence)
	if !ok {
		return plain
	}
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return plain
	}
	var h header
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &h); err != nil {
		return plain
	}
	if _, err := uuid.Parse(h.ID); err != nil {
		return plain
	}
	if h.Title == "" {
		h.Title = stem
	}
	return Document{ID: h.ID, Title: h.Title, Content: rest[end+1+len(fence):]}
}
