package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/match"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bnmatch",
		Short:         "Match blank nodes of two merged knowledge graphs by embedding distance",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMatchCmd(), newEvaluateCmd(), newFileNameCmd())
	return root
}

type matchFlags struct {
	embeddings string
	model      string
	epochs     int
	dim        int
	outDir     string
}

func newMatchCmd() *cobra.Command {
	f := &matchFlags{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Greedily match graph A blank nodes to graph B blank nodes and write the mapping file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.embeddings, "embeddings", util.GetEnv("BNMATCH_EMBEDDINGS"), "entity embeddings CSV export")
	cmd.Flags().StringVar(&f.model, "model", util.GetEnvString("BNMATCH_MODEL", "TransE"), "embedding model name used in the file name")
	cmd.Flags().IntVar(&f.epochs, "epochs", util.GetEnvInt("BNMATCH_EPOCHS", 0), "training epochs used in the file name")
	cmd.Flags().IntVar(&f.dim, "dim", 0, "embedding dimension used in the file name (default: read from the CSV)")
	cmd.Flags().StringVar(&f.outDir, "out", ".", "directory to write the mapping file to")
	return cmd
}

func runMatch(cmd *cobra.Command, f *matchFlags) error {
	if f.embeddings == "" {
		return fmt.Errorf("--embeddings is required")
	}
	file, err := os.Open(f.embeddings)
	if err != nil {
		return fmt.Errorf("failed to open embeddings: %w", err)
	}
	defer file.Close()

	_, table, err := embedding.ReadCSV(file)
	if err != nil {
		return err
	}
	dim := f.dim
	if dim <= 0 {
		if dim, err = table.Dim(); err != nil {
			return err
		}
	}

	a, b := embedding.SplitBlank(table)
	logger.Info("Matching blank nodes", "a", len(a), "b", len(b), "dim", dim)
	m, err := match.Greedy(a, b)
	if err != nil {
		return err
	}

	path := filepath.Join(f.outDir, mapping.FileName(f.model, f.epochs, dim))
	if err := mapping.WriteFile(path, m); err != nil {
		return err
	}
	printReport(cmd, mapping.Evaluate(m))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func newEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <mapping-file>",
		Short: "Count pairs whose ids differ after removing the graph prefixes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mapping.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				logger.Warn("Mapping reuses an entity", "err", err)
			}
			printReport(cmd, mapping.Evaluate(m))
			return nil
		},
	}
}

func newFileNameCmd() *cobra.Command {
	var model string
	var epochs, dim int
	cmd := &cobra.Command{
		Use:   "filename",
		Short: "Print the mapping file name for a model, epoch count and dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), mapping.FileName(model, epochs, dim))
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "TransE", "embedding model name")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "training epochs")
	cmd.Flags().IntVar(&dim, "dim", 0, "embedding dimension")
	return cmd
}

func printReport(cmd *cobra.Command, r mapping.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "pairs=%d correct=%d uri_diffs=%d accuracy=%.4f\n", r.Pairs, r.Correct, r.URIDiffs, r.Accuracy)
}
