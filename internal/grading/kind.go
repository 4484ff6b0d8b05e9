package grading

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a submitted project.
type Kind string

const (
	KindHTMLAsset    Kind = "html_asset"
	KindComponentApp Kind = "component_app"
	KindCustom       Kind = "custom"
)

// Strategy selects how the source bundle is collected.
type Strategy int

const (
	// StrategyHTMLAssets scans the entry markup for script and stylesheet references.
	StrategyHTMLAssets Strategy = iota + 1
	// StrategyImports scans the entry module for import statements.
	StrategyImports
)

func (s Strategy) String() string {
	switch s {
	case StrategyHTMLAssets:
		return "html_assets"
	case StrategyImports:
		return "imports"
	default:
		return "unknown"
	}
}

// Variant pairs a project kind with its rubric and extraction behaviour.
type Variant struct {
	Kind       Kind
	Title      string
	Subject    string
	Entrypoint string
	SourceDir  string
	Strategy   Strategy
	Criteria   []string

	// RequestCriteria means the rubric comes from the request instead of Criteria.
	RequestCriteria bool
	// StrictAssets turns unreadable auxiliary files into ErrFileRead.
	StrictAssets bool
	// ExcludeExternal skips imports naming known runtime packages.
	ExcludeExternal bool
}

var memoryGameCriteria = []string{
	"Create a basic HTML layout with a container for the game board.",
	"Include a header with the game title and a restart button.",
	"Implement the game logic to handle card flipping.",
	"Implement a shuffle function to randomize the card positions.",
	"Track the state of the game (flipped cards, found pairs).",
	"Implement logic to check for matching pairs.",
	"Add a restart function that resets the game board.",
	"Clean, well-documented code for HTML, CSS, and JS.",
	"A responsive design for desktop and mobile.",
	"A README file explaining the project setup and play instructions.",
}

var shoppingCartCriteria = []string{
	"Display a list of available products with their name and description.",
	"Users can add items to the cart by clicking the 'Add to Cart' button.",
	"When an item is added, the cart quantity number should increase.",
	"Change 'Add to Cart' button to 'Remove from Cart' once the item is added.",
	"Users can remove items from the cart by clicking the 'Remove from Cart' button.",
	"When an item is removed, the cart quantity number should decrease.",
	"Change 'Remove from Cart' button back to 'Add to Cart' once the item is removed.",
}

var variants = map[string]Variant{
	"memory game": {
		Kind:         KindHTMLAsset,
		Title:        "Memory Game",
		Subject:      "HTML, CSS and JavaScript",
		Entrypoint:   "index.html",
		Strategy:     StrategyHTMLAssets,
		Criteria:     memoryGameCriteria,
		StrictAssets: true,
	},
	"shopping cart": {
		Kind:            KindComponentApp,
		Title:           "Shopping Cart",
		Subject:         "React",
		Entrypoint:      "src/main.jsx",
		SourceDir:       "src",
		Strategy:        StrategyImports,
		Criteria:        shoppingCartCriteria,
		ExcludeExternal: true,
	},
	"custom test cases": {
		Kind:            KindCustom,
		Title:           "Custom Test Cases",
		Subject:         "React",
		Entrypoint:      "src/main.jsx",
		SourceDir:       "src",
		Strategy:        StrategyImports,
		RequestCriteria: true,
		ExcludeExternal: true,
	},
}

// LookupVariant returns the variant registered for a project title.
// Matching ignores case and surrounding whitespace.
func LookupVariant(title string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(title))
	variant, ok := variants[key]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownKind, title)
	}
	variant.Criteria = append([]string(nil), variant.Criteria...)
	return variant, nil
}

// Request is an accepted evaluation request. It is not modified after NewRequest returns.
type Request struct {
	RepoURL  string
	Variant  Variant
	Criteria []string
}

// NewRequest validates the inputs and selects the variant for title once.
func NewRequest(repoURL, title string, customCriteria []string) (Request, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return Request{}, fmt.Errorf("%w: repository url is required", ErrInvalidRequest)
	}

	variant, err := LookupVariant(title)
	if err != nil {
		return Request{}, err
	}

	criteria := variant.Criteria
	if variant.RequestCriteria {
		criteria = cleanCriteria(customCriteria)
	}
	if len(criteria) == 0 {
		return Request{}, fmt.Errorf("%w: no criteria supplied", ErrInvalidRubric)
	}

	seen := make(map[string]struct{}, len(criteria))
	for _, criterion := range criteria {
		if _, dup := seen[criterion]; dup {
			return Request{}, fmt.Errorf("%w: duplicate criterion %q", ErrInvalidRubric, criterion)
		}
		seen[criterion] = struct{}{}
	}

	return Request{
		RepoURL:  repoURL,
		Variant:  variant,
		Criteria: criteria,
	}, nil
}

// cleanCriteria collapses each criterion onto a single line so it cannot break
// the numbered rubric lines of the prompt.
func cleanCriteria(input []string) []string {
	result := make([]string, 0, len(input))
	for _, item := range input {
		collapsed := strings.Join(strings.Fields(item), " ")
		if collapsed != "" {
			result = append(result, collapsed)
		}
	}
	return result
}
