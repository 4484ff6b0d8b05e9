package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/app"
	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one repository and print the result as JSON",
	Long: `Evaluate clones the repository, grades it and prints the feedback.

Examples:
  grader evaluate --repo https://github.com/alice/memory-game --title "Memory Game"
  grader evaluate --repo https://github.com/bob/cart --title "Custom Test Cases" \
    --criteria "Lists products" --criteria "Adds items to the cart"
  grader evaluate --repo https://github.com/alice/memory-game --title "Memory Game" --dry-run`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringP("repo", "r", "", "repository URL to clone")
	evaluateCmd.Flags().StringP("title", "t", "", `project title ("Memory Game", "Shopping Cart" or "Custom Test Cases")`)
	evaluateCmd.Flags().StringArrayP("criteria", "c", nil, "custom rubric criterion (repeatable)")
	evaluateCmd.Flags().Bool("dry-run", false, "print the grading prompt instead of calling the AI reviewer")
	_ = evaluateCmd.MarkFlagRequired("repo")
	_ = evaluateCmd.MarkFlagRequired("title")
}

// errGraderDisabled is returned by the grader used for dry runs.
var errGraderDisabled = errors.New("grader disabled for dry run")

type disabledGrader struct{}

func (disabledGrader) Complete(context.Context, ai.CompletionRequest) (string, error) {
	return "", errGraderDisabled
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	repo, _ := cmd.Flags().GetString("repo")
	title, _ := cmd.Flags().GetString("title")
	criteria, _ := cmd.Flags().GetStringArray("criteria")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.Options{Offline: dryRun}
	if dryRun {
		opts.Grader = disabledGrader{}
	}

	application, err := app.New(ctx, cfg, commandLogger(cmd), opts)
	if err != nil {
		return err
	}
	defer application.Close()

	payload := dto.EvaluateRequest{RepoURL: repo, Title: title, CustomTestCases: criteria}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if dryRun {
		preview, err := application.Service.Preview(ctx, payload)
		if err != nil {
			return err
		}
		return encoder.Encode(preview)
	}

	result, err := application.Service.Evaluate(ctx, payload)
	if err != nil {
		return err
	}
	return encoder.Encode(map[string]interface{}{"feedback": result})
}
