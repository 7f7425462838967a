package main

import (
	"fmt"
	"os"

	"cvalign/internal/graph"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the graph from a jobs CSV",
	Long:  "Builds a fresh knowledge graph from a jobs dataset and replaces the artifact content. A running worker picks it up after SIGHUP.",
	RunE:  runRebuild,
}

var rebuildCSV string

func init() {
	rebuildCmd.Flags().StringVarP(&rebuildCSV, "csv", "c", "", "Path to the jobs CSV dataset (required)")
	if err := rebuildCmd.MarkFlagRequired("csv"); err != nil {
		panic(fmt.Sprintf("failed to mark csv flag as required: %v", err))
	}
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(rebuildCSV)
	if err != nil {
		return fmt.Errorf("failed to open dataset %s: %w", rebuildCSV, err)
	}
	defer f.Close()

	st, err := graph.OpenStore(cmd.Context(), dbPath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := graph.Rebuild(cmd.Context(), f, st, seed)
	if err != nil {
		return fmt.Errorf("failed to rebuild graph: %w", err)
	}
	logger.Printf("kgworker status=rebuilt db=%s nodes=%d edges=%d jobs=%d skills=%d companies=%d",
		dbPath, stats.TotalNodes, stats.TotalEdges, stats.JobNodes, stats.SkillNodes, stats.CompanyNodes)
	return nil
}
