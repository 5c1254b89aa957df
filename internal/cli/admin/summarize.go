package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ckr-labs/roofkb/internal/config"
	"github.com/ckr-labs/roofkb/internal/domain"
)

func SummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <category>",
		Short: "Generate a category summary",
		Long:  "Generate an AI summary of a knowledge category enriched with operational metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runSummarize(args[0], outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSummarize(category, outputFormat string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.summarySvc == nil {
		return fmt.Errorf("summaries not configured: OPENAI_API_KEY required")
	}

	summary, err := a.summarySvc.Summarize(ctx, domain.Category(category))
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Category: %s (%d files, %d chunks used)\n\n", summary.Category, summary.FileCount, summary.ChunksUsed)
	fmt.Println(summary.Summary)
	return nil
}
