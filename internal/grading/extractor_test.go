package grading

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const memoryGameIndex = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="style.css">
  <link rel="icon" href="favicon.ico">
</head>
<body>
  <div class="board"></div>
  <script src="script.js"></script>
</body>
</html>`

func TestCollectHTMLAssetsOrdersScriptsBeforeStylesheets(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": memoryGameIndex,
		"script.js":  "const cards = [];",
		"style.css":  ".board { display: grid; }",
	})
	variant := mustVariant(t, "Memory Game")

	entry, err := EntrypointResolver{}.Locate(root, variant)
	require.NoError(t, err)

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, entry, variant)
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "script.js", "style.css"}, bundle.Paths())
	require.Equal(t, "const cards = [];", bundle.Files[1].Content)
	require.Empty(t, bundle.Warnings)
}

func TestCollectHTMLAssetsStrictVariantFailsOnMissingAsset(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": memoryGameIndex,
		"style.css":  "body {}",
	})
	variant := mustVariant(t, "Memory Game")

	_, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "index.html"), variant)
	require.ErrorIs(t, err, ErrFileRead)
	require.Contains(t, err.Error(), "script.js")
}

func TestCollectHTMLAssetsLenientVariantWarns(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": memoryGameIndex,
		"style.css":  "body {}",
	})
	variant := mustVariant(t, "Memory Game")
	variant.StrictAssets = false

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "index.html"), variant)
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "style.css"}, bundle.Paths())
	require.Len(t, bundle.Warnings, 1)
	require.Contains(t, bundle.Warnings[0], "script.js")
}

func TestCollectHTMLAssetsSkipsRemoteAndNormalisesReferences(t *testing.T) {
	markup := `<html><head>
<script src="https://cdn.example.com/lib.js"></script>
<script src="/js/app.js?v=3"></script>
<link rel="Stylesheet preload" href="css/main.css#top">
</head></html>`
	root := writeTree(t, map[string]string{
		"index.html":   markup,
		"js/app.js":    "app()",
		"css/main.css": "main {}",
	})
	variant := mustVariant(t, "Memory Game")

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "index.html"), variant)
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "js/app.js", "css/main.css"}, bundle.Paths())
	require.Len(t, bundle.Warnings, 1)
	require.Contains(t, bundle.Warnings[0], "cdn.example.com")
}

func TestCollectHTMLAssetsRejectsEscapingPaths(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `<script src="../../etc/passwd"></script>`,
	})
	variant := mustVariant(t, "Memory Game")

	_, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "index.html"), variant)
	require.ErrorIs(t, err, ErrFileRead)
	require.ErrorIs(t, err, errOutsideWorkspace)
}

func TestCollectImportsResolvesComponentsOnce(t *testing.T) {
	main := `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App'
import { Board } from "./Board"
import {
  Cell,
} from './Board'
import './index.css'
`
	root := writeTree(t, map[string]string{
		"src/main.jsx":  main,
		"src/App.jsx":   "export default function App() {}",
		"src/Board.jsx": "export const Board = () => null",
	})
	variant := mustVariant(t, "Shopping Cart")

	entry, err := EntrypointResolver{}.Locate(root, variant)
	require.NoError(t, err)

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, entry, variant)
	require.NoError(t, err)
	require.Equal(t, []string{"src/main.jsx", "src/App.jsx", "src/Board.jsx"}, bundle.Paths())
	require.Empty(t, bundle.Warnings)
}

func TestCollectImportsWarnsOnUnresolvedImport(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.jsx": "import Missing from './Missing'\nimport App from './App.jsx'\n",
		"src/App.jsx":  "export default 1",
	})
	variant := mustVariant(t, "Custom Test Cases")

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "src", "main.jsx"), variant)
	require.NoError(t, err)
	require.Equal(t, []string{"src/main.jsx", "src/App.jsx"}, bundle.Paths())
	require.Len(t, bundle.Warnings, 1)
	require.Contains(t, bundle.Warnings[0], "./Missing")
}

func TestCollectImportsSkipsBinaryFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.jsx": "import logo from './logo.png'\n",
		"src/logo.png": "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01",
	})
	variant := mustVariant(t, "Shopping Cart")

	bundle, err := NewExtractor(nil, zerolog.Nop()).Collect(root, filepath.Join(root, "src", "main.jsx"), variant)
	require.NoError(t, err)
	require.Equal(t, []string{"src/main.jsx"}, bundle.Paths())
	require.Len(t, bundle.Warnings, 1)
}

func TestEntrypointResolverReportsMissingEntry(t *testing.T) {
	root := writeTree(t, map[string]string{"README.md": "hi"})

	_, err := EntrypointResolver{}.Locate(root, mustVariant(t, "Memory Game"))
	require.ErrorIs(t, err, ErrEntrypointNotFound)

	_, err = EntrypointResolver{}.Locate(root, mustVariant(t, "Shopping Cart"))
	require.ErrorIs(t, err, ErrEntrypointNotFound)
}

func TestRegexImportResolverKeepsOrderAndDuplicates(t *testing.T) {
	content := "import a from './a'\nimport b from \"./b\"\nimport { c } from './a'\nconst x = 'import y from z'"
	require.Equal(t, []string{"./a", "./b", "./a"}, RegexImportResolver{}.Imports(content))
}

func TestIsExternalPackage(t *testing.T) {
	require.True(t, isExternalPackage("react"))
	require.True(t, isExternalPackage("react-dom/client"))
	require.True(t, isExternalPackage("@reduxjs/toolkit"))
	require.False(t, isExternalPackage("./react"))
	require.False(t, isExternalPackage("reactive"))
}
