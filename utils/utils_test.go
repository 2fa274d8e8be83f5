package utils

import (
	"testing"
)

func TestRemoveFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "yaml frontmatter stripped",
			in:   "---\ntitle: Duet\ntags: [a, b]\n---\n# Hello\n",
			want: "# Hello\n",
		},
		{
			name: "crlf frontmatter stripped",
			in:   "---\r\ntitle: Duet\r\n---\r\nbody\r\n",
			want: "body\r\n",
		},
		{
			name: "no frontmatter",
			in:   "# Hello\n---\n",
			want: "# Hello\n---\n",
		},
		{
			name: "unterminated fence kept",
			in:   "---\ntitle: Duet\n# Hello\n",
			want: "---\ntitle: Duet\n# Hello\n",
		},
		{
			name: "non-yaml block kept",
			in:   "---\n\t{oops: [\n---\nbody\n",
			want: "---\n\t{oops: [\n---\nbody\n",
		},
		{
			name: "closing fence at end of file",
			in:   "---\ntitle: Duet\n---",
			want: "",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(RemoveFrontmatter([]byte(tt.in))); got != tt.want {
				t.Errorf("RemoveFrontmatter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsMarkdownFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"dialog.md", true},
		{"dialog.MD", true},
		{"notes.markdown", true},
		{"a/b/readme.mkdn", true},
		{"dialog.txt", false},
		{"main.go", false},
		{"md", false},
	}
	for _, tt := range tests {
		if got := IsMarkdownFile(tt.path); got != tt.want {
			t.Errorf("IsMarkdownFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWrapCodeBlock(t *testing.T) {
	got := WrapCodeBlock("package main", ".go")
	want := "```go\npackage main\n```"
	if got != want {
		t.Errorf("WrapCodeBlock = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("DUET_TEST_DIR", "/tmp/duet")

	if got := ExpandPath("$DUET_TEST_DIR/clips"); got != "/tmp/duet/clips" {
		t.Errorf("ExpandPath env = %q", got)
	}
	if got := ExpandPath("/plain/path"); got != "/plain/path" {
		t.Errorf("ExpandPath plain = %q", got)
	}
}
