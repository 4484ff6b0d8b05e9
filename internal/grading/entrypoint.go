package grading

import (
	"fmt"
	"os"
	"path/filepath"
)

// EntrypointResolver locates the entry artifact of a project inside a workspace.
type EntrypointResolver struct{}

// Locate returns the absolute path of the variant's entry file below root.
// There is no fallback search: a missing entry is ErrEntrypointNotFound.
func (EntrypointResolver) Locate(root string, variant Variant) (string, error) {
	if variant.Entrypoint == "" {
		return "", fmt.Errorf("%w: variant %s declares no entrypoint", ErrEntrypointNotFound, variant.Kind)
	}

	path := filepath.Join(root, filepath.FromSlash(variant.Entrypoint))
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEntrypointNotFound, variant.Entrypoint)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrEntrypointNotFound, variant.Entrypoint)
	}

	return path, nil
}
