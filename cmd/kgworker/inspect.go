package main

import (
	"encoding/json"
	"fmt"
	"os"

	"cvalign/internal/graph"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print graph counters as JSON",
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of the graph",
	RunE:  runExport,
}

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Path to output snapshot JSON file (required)")
	if err := exportCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}
	rootCmd.AddCommand(statsCmd, exportCmd)
}

func loadGraph(cmd *cobra.Command) (*graph.Graph, error) {
	st, err := graph.OpenStore(cmd.Context(), dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	defer st.Close()
	return st.Load(cmd.Context(), seed)
}

func runStats(cmd *cobra.Command, _ []string) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g.Stats())
}

func runExport(cmd *cobra.Command, _ []string) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	if err := graph.ExportJSON(g, exportOut); err != nil {
		return err
	}
	logger.Printf("kgworker status=exported db=%s out=%s", dbPath, exportOut)
	return nil
}
