package grading

import (
	"regexp"
	"strings"
)

// ImportResolver lists the module specifiers a source file imports.
type ImportResolver interface {
	Imports(content string) []string
}

// importPattern matches `import <clause> from '<specifier>'`, including clauses
// that span several lines.
var importPattern = regexp.MustCompile(`\bimport\s+[^;'"]*?\s*\bfrom\s*['"]([^'"]+)['"]`)

// RegexImportResolver is a textual import scanner. It does not understand
// comments or template strings.
type RegexImportResolver struct{}

// Imports returns the specifiers in the order they appear, duplicates included.
func (RegexImportResolver) Imports(content string) []string {
	matches := importPattern.FindAllStringSubmatch(content, -1)
	specifiers := make([]string, 0, len(matches))
	for _, match := range matches {
		if spec := strings.TrimSpace(match[1]); spec != "" {
			specifiers = append(specifiers, spec)
		}
	}
	return specifiers
}

// externalPackages are runtime namespaces that never live inside the project.
var externalPackages = []string{
	"react",
	"react-dom",
	"react-router",
	"react-router-dom",
	"react-redux",
	"redux",
	"@reduxjs/toolkit",
	"preact",
	"vue",
	"svelte",
}

func isExternalPackage(specifier string) bool {
	for _, pkg := range externalPackages {
		if specifier == pkg || strings.HasPrefix(specifier, pkg+"/") {
			return true
		}
	}
	return false
}
