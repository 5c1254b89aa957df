package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ckr-labs/roofkb/internal/cli"
	"github.com/ckr-labs/roofkb/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roofkbd",
		Short: "Roofing knowledge base daemon and CLI",
		Long:  "Roofing knowledge base daemon for running the API server and managing files, sync rules and embeddings",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ReembedCmd())
	rootCmd.AddCommand(admin.SyncCmd())
	rootCmd.AddCommand(admin.SummarizeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
