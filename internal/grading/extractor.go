package grading

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// componentExtension is appended to import specifiers that do not name a file literally.
const componentExtension = ".jsx"

var errOutsideWorkspace = errors.New("path escapes the workspace")

// Extractor collects the source bundle for a project.
type Extractor struct {
	imports ImportResolver
	logger  zerolog.Logger
}

// NewExtractor builds an extractor. A nil resolver falls back to RegexImportResolver.
func NewExtractor(resolver ImportResolver, logger zerolog.Logger) *Extractor {
	if resolver == nil {
		resolver = RegexImportResolver{}
	}

	return &Extractor{
		imports: resolver,
		logger:  logger.With().Str("component", "source_extractor").Logger(),
	}
}

// Collect reads the entry file at entry and every in-scope file it references.
// The entry file is always the first bundle member and failing to read it is fatal.
func (e *Extractor) Collect(root, entry string, variant Variant) (SourceBundle, error) {
	var bundle SourceBundle

	entryRel, err := relativePath(root, entry)
	if err != nil {
		return SourceBundle{}, fmt.Errorf("%w: %s: %w", ErrFileRead, entry, err)
	}

	data, err := os.ReadFile(entry)
	if err != nil {
		return SourceBundle{}, fmt.Errorf("%w: %s: %w", ErrFileRead, entryRel, err)
	}
	content := string(data)
	bundle.Add(entryRel, content)

	switch variant.Strategy {
	case StrategyHTMLAssets:
		err = e.collectHTMLAssets(root, content, variant, &bundle)
	case StrategyImports:
		err = e.collectImports(root, content, variant, &bundle)
	default:
		err = fmt.Errorf("%w: unsupported extraction strategy %s", ErrUnknownKind, variant.Strategy)
	}
	if err != nil {
		return SourceBundle{}, err
	}

	e.logger.Debug().
		Strs("files", bundle.Paths()).
		Int("warnings", len(bundle.Warnings)).
		Str("strategy", variant.Strategy.String()).
		Msg("source bundle collected")

	return bundle, nil
}

func (e *Extractor) collectHTMLAssets(root, markup string, variant Variant, bundle *SourceBundle) error {
	assets, err := scanHTMLAssets(markup)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileRead, variant.Entrypoint, err)
	}

	refs := make([]string, 0, len(assets.Scripts)+len(assets.Stylesheets))
	refs = append(refs, assets.Scripts...)
	refs = append(refs, assets.Stylesheets...)

	for _, ref := range refs {
		if isRemoteReference(ref) {
			e.warn(bundle, fmt.Sprintf("skipping remote asset %s", ref))
			continue
		}

		target := stripQuery(ref)
		if target == "" {
			continue
		}
		// A leading slash addresses the workspace root, same as a relative reference.
		target = strings.TrimLeft(target, "/")

		path, err := resolveWithin(root, root, target)
		if err != nil {
			if failErr := e.auxiliaryFailure(bundle, variant, ref, err); failErr != nil {
				return failErr
			}
			continue
		}

		if err := e.addAuxiliary(root, path, variant, bundle); err != nil {
			return err
		}
	}

	return nil
}

func (e *Extractor) collectImports(root, content string, variant Variant, bundle *SourceBundle) error {
	sourceDir := filepath.Join(root, filepath.FromSlash(variant.SourceDir))

	resolved := make([]string, 0)
	unique := make(map[string]struct{})

	for _, specifier := range e.imports.Imports(content) {
		if variant.ExcludeExternal && isExternalPackage(specifier) {
			e.logger.Debug().Str("import", specifier).Msg("skipping external package import")
			continue
		}

		path, err := resolveImport(root, sourceDir, specifier)
		if err != nil {
			e.warn(bundle, fmt.Sprintf("unresolved import %s: %v", specifier, err))
			continue
		}

		if _, ok := unique[path]; ok {
			continue
		}
		unique[path] = struct{}{}
		resolved = append(resolved, path)
	}

	for _, path := range resolved {
		if err := e.addAuxiliary(root, path, variant, bundle); err != nil {
			return err
		}
	}

	return nil
}

// addAuxiliary reads a secondary file into the bundle. Failures are warnings
// unless the variant is strict.
func (e *Extractor) addAuxiliary(root, path string, variant Variant, bundle *SourceBundle) error {
	rel, err := relativePath(root, path)
	if err != nil {
		return e.auxiliaryFailure(bundle, variant, path, err)
	}
	if bundle.Contains(rel) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return e.auxiliaryFailure(bundle, variant, rel, err)
	}

	if !isText(data) {
		return e.auxiliaryFailure(bundle, variant, rel, fmt.Errorf("not a text file (%s)", mimetype.Detect(data).String()))
	}

	e.logger.Debug().Str("file", rel).Msg("reading file")
	bundle.Add(rel, string(data))
	return nil
}

func (e *Extractor) auxiliaryFailure(bundle *SourceBundle, variant Variant, ref string, cause error) error {
	if variant.StrictAssets {
		return fmt.Errorf("%w: %s: %w", ErrFileRead, ref, cause)
	}
	e.warn(bundle, fmt.Sprintf("skipping %s: %v", ref, cause))
	return nil
}

func (e *Extractor) warn(bundle *SourceBundle, message string) {
	e.logger.Warn().Msg(message)
	bundle.warn(message)
}

// resolveImport resolves specifier against sourceDir, retrying with the
// component extension when the literal path is not a file.
func resolveImport(root, sourceDir, specifier string) (string, error) {
	path, err := resolveWithin(root, sourceDir, specifier)
	if err != nil {
		return "", err
	}

	if isRegularFile(path) {
		return path, nil
	}
	if withExt := path + componentExtension; isRegularFile(withExt) {
		return withExt, nil
	}

	return "", fmt.Errorf("no file at %s or %s%s", specifier, specifier, componentExtension)
}

// resolveWithin joins ref onto base and rejects results outside root.
func resolveWithin(root, base, ref string) (string, error) {
	path := filepath.Join(base, filepath.FromSlash(ref))
	if _, err := relativePath(root, path); err != nil {
		return "", err
	}
	return path, nil
}

func relativePath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideWorkspace
	}
	return filepath.ToSlash(rel), nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for mime := mimetype.Detect(data); mime != nil; mime = mime.Parent() {
		if mime.Is("text/plain") {
			return true
		}
	}
	return false
}
