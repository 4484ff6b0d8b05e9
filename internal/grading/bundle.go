package grading

// SourceFile is one file included in a bundle. Path is slash separated and
// relative to the workspace root.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SourceBundle is the ordered, path-deduplicated set of files sent to the grader.
type SourceBundle struct {
	Files    []SourceFile `json:"files"`
	Warnings []string     `json:"warnings,omitempty"`

	seen map[string]struct{}
}

// Add appends a file unless its path is already present. It reports whether the file was added.
func (b *SourceBundle) Add(path, content string) bool {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	if _, ok := b.seen[path]; ok {
		return false
	}
	b.seen[path] = struct{}{}
	b.Files = append(b.Files, SourceFile{Path: path, Content: content})
	return true
}

// Contains reports whether path has already been bundled.
func (b *SourceBundle) Contains(path string) bool {
	_, ok := b.seen[path]
	return ok
}

// Paths lists the bundled paths in bundle order.
func (b SourceBundle) Paths() []string {
	paths := make([]string, 0, len(b.Files))
	for _, file := range b.Files {
		paths = append(paths, file.Path)
	}
	return paths
}

func (b *SourceBundle) warn(message string) {
	b.Warnings = append(b.Warnings, message)
}
