// Package utils has small helpers shared by the CLI and the TUI.
package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

var markdownExtensions = []string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}

// ExpandPath expands a leading tilde and any environment variables.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err != nil {
		return os.ExpandEnv(path)
	}
	return os.ExpandEnv(s)
}

// IsMarkdownFile reports whether the path has a markdown extension.
func IsMarkdownFile(path string) bool {
	return slices.Contains(markdownExtensions, strings.ToLower(filepath.Ext(path)))
}

// RemoveFrontmatter strips a leading YAML frontmatter block. The block is
// only removed when its contents actually parse as YAML; a stray --- rule
// at the top of a document stays put.
func RemoveFrontmatter(content []byte) []byte {
	block, body, ok := splitFrontmatter(content)
	if !ok {
		return content
	}
	var meta map[string]any
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return content
	}
	return body
}

// splitFrontmatter cuts content at the first pair of --- fence lines. The
// opening fence must be the very first line.
func splitFrontmatter(c []byte) (block, body []byte, ok bool) {
	head, rest, found := bytes.Cut(c, []byte("\n"))
	if !found || strings.TrimRight(string(head), "\r") != "---" {
		return nil, nil, false
	}
	for i := 0; i <= len(rest); {
		lineEnd := len(rest)
		next := len(rest) + 1
		if j := bytes.IndexByte(rest[i:], '\n'); j >= 0 {
			lineEnd = i + j
			next = lineEnd + 1
		}
		if strings.TrimRight(string(rest[i:lineEnd]), "\r") == "---" {
			if next > len(rest) {
				return rest[:i], nil, true
			}
			return rest[:i], rest[next:], true
		}
		i = next
	}
	return nil, nil, false
}

// WrapCodeBlock fences non-markdown content so it renders as code.
func WrapCodeBlock(s, ext string) string {
	return "```" + strings.TrimPrefix(ext, ".") + "\n" + s + "\n```"
}

// GlamourStyle resolves a style name to a renderer option. A name that is
// not a bundled style is treated as a path to a JSON style file.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if styles.DefaultStyles[style] != nil {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylesFromJSONFile(ExpandPath(style))
}
