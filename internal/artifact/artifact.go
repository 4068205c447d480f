// Package artifact encodes and decodes note artifacts. Each artifact is
// self-describing: YAML frontmatter carrying {id, title, created} followed
// by the raw note body, so the content store is recoverable even if the
// metadata index is lost.
package artifact

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/gebo/internal/models"
)

const delim = "---"

type frontmatter struct {
	ID      int64  `yaml:"id"`
	Title   string `yaml:"title"`
	Created string `yaml:"created"`
}

// Encode renders a note as an artifact: frontmatter block plus body.
func Encode(n models.Note) ([]byte, error) {
	fm := frontmatter{
		ID:      n.ID,
		Title:   DeriveTitle(n.Content),
		Created: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// Decode parses an artifact back into a note. The frontmatter block must be
// present and carry a positive id; anything else is a corrupt artifact.
func Decode(data []byte) (models.Note, error) {
	head, body, ok := splitFrontmatter(data)
	if !ok {
		return models.Note{}, fmt.Errorf("artifact: missing frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return models.Note{}, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	if fm.ID <= 0 {
		return models.Note{}, fmt.Errorf("artifact: frontmatter has no id")
	}

	created, err := time.Parse(time.RFC3339Nano, fm.Created)
	if err != nil {
		return models.Note{}, fmt.Errorf("artifact: parse created %q: %w", fm.Created, err)
	}

	return models.Note{
		ID:        fm.ID,
		Content:   body,
		CreatedAt: created,
	}, nil
}

// splitFrontmatter separates the YAML block between the leading ---
// delimiters from the body. Returns ok=false when no block is found.
func splitFrontmatter(data []byte) (head []byte, body string, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", false
	}

	head = rest[:idx]
	after := rest[idx+1+len(delim):]
	body = strings.TrimPrefix(string(after), "\n")
	return head, body, true
}

// DeriveTitle returns the first line of content with leading Markdown
// heading markers stripped.
func DeriveTitle(content string) string {
	line := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	line = strings.TrimLeft(line, "#")
	return strings.TrimSpace(line)
}
