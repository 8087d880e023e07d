package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	opts := defaultServeOptions()
	root := &cobra.Command{
		Use:           "litertd",
		Short:         "On-device LLM bridge daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	addServeFlags(root, opts)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	addServeFlags(serveCmd, opts)
	root.AddCommand(serveCmd)

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List model bundles in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListModels(opts)
		},
	}
	modelsCmd.Flags().StringVar(&opts.ModelsDir, "models-dir", opts.ModelsDir, "Directory to scan for *.task/*.litertlm model bundles")
	root.AddCommand(modelsCmd)

	return root
}

// splitCSV splits a comma-separated flag value, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
