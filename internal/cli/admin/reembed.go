package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ckr-labs/roofkb/internal/config"
	"github.com/ckr-labs/roofkb/internal/domain"
)

// ReembedCmd returns the reembed command
func ReembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed [file-id-or-key]",
		Short: "Re-chunk and re-embed knowledge files",
		Long:  "Queue an embedding pass for one file, or for every active file when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReembed,
	}

	return cmd
}

func runReembed(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		detail, err := a.fileSvc.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.fileSvc.ReEmbed(ctx, detail.File.ID); err != nil {
			return err
		}
		fmt.Printf("queued re-embedding for %s\n", detail.File.FileKey)
		return nil
	}

	queued := 0
	for _, category := range domain.Categories() {
		files, err := a.fileRepo.ListByCategory(ctx, category)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := a.fileSvc.ReEmbed(ctx, f.ID); err != nil {
				a.log.Error().Err(err).Str("file_key", f.FileKey).Msg("failed to queue re-embedding")
				continue
			}
			queued++
		}
	}

	fmt.Printf("queued re-embedding for %d files\n", queued)
	return nil
}
