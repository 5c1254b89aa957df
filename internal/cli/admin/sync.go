package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ckr-labs/roofkb/internal/config"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage category sync rules",
		Long:  "Create, list and execute rules that propagate files between categories",
	}

	cmd.AddCommand(SyncCreateCmd())
	cmd.AddCommand(SyncListCmd())
	cmd.AddCommand(SyncRunCmd())

	return cmd
}

func SyncCreateCmd() *cobra.Command {
	var (
		source   string
		target   string
		strategy string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a sync rule",
		Long:  "Create a rule that mirrors or merges files from one category into another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncCreate(args[0], source, target, strategy, priority)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source category")
	cmd.Flags().StringVar(&target, "target", "", "Target category")
	cmd.Flags().StringVar(&strategy, "strategy", "mirror", "Sync strategy (mirror or merge)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Execution priority (higher runs first)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")

	return cmd
}

func runSyncCreate(name, source, target, strategy string, priority int) error {
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

	rule, err := a.syncSvc.CreateRule(ctx, service.CreateSyncRuleInput{
		Name:           name,
		SourceCategory: domain.Category(source),
		TargetCategory: domain.Category(target),
		Strategy:       domain.SyncStrategy(strategy),
		Priority:       priority,
	})
	if err != nil {
		return fmt.Errorf("failed to create sync rule: %w", err)
	}

	fmt.Printf("Sync rule created: %s (%s)\n", rule.Name, rule.ID)
	fmt.Printf("  %s -> %s [%s]\n", rule.SourceCategory, rule.TargetCategory, rule.Strategy)
	return nil
}

func SyncListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync rules",
		Long:  "List every configured sync rule ordered by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runSyncList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSyncList(outputFormat string) error {
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

	rules, err := a.syncSvc.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sync rules: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(rules))
		for i, rule := range rules {
			entry := map[string]interface{}{
				"id":              rule.ID,
				"name":            rule.Name,
				"source_category": rule.SourceCategory,
				"target_category": rule.TargetCategory,
				"strategy":        rule.Strategy,
				"priority":        rule.Priority,
				"active":          rule.Active,
			}
			if rule.LastSync != nil {
				entry["last_sync"] = rule.LastSync
			}
			data[i] = entry
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(rules) == 0 {
		fmt.Println("No sync rules found")
		return nil
	}
	fmt.Println("Sync rules:")
	for _, rule := range rules {
		status := "active"
		if !rule.Active {
			status = "inactive"
		}
		lastSync := "never"
		if rule.LastSync != nil {
			lastSync = rule.LastSync.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %s: %s %s -> %s [%s, priority %d, %s, last sync: %s]\n",
			rule.ID, rule.Name, rule.SourceCategory, rule.TargetCategory,
			rule.Strategy, rule.Priority, status, lastSync)
	}
	return nil
}

func SyncRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [rule-id]",
		Short: "Execute sync rules",
		Long:  "Run one sync rule by id, or every active rule in priority order when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSyncRun,
	}

	return cmd
}

func runSyncRun(cmd *cobra.Command, args []string) error {
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

	var results []*service.SyncResult
	if len(args) == 1 {
		result, err := a.syncSvc.ExecuteRule(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to execute sync rule: %w", err)
		}
		results = append(results, result)
	} else {
		results, err = a.syncSvc.ExecuteActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to execute sync rules: %w", err)
		}
	}

	for _, result := range results {
		fmt.Printf("Rule %s: %d synced, %d skipped\n", result.RuleID, result.Synced, result.Skipped)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	if len(results) == 0 {
		fmt.Println("No active sync rules to run")
	}
	return nil
}
