// Package main is the knowledge graph worker. The API server spawns it with
// "serve" and talks NDJSON over stdin/stdout; the other commands maintain the
// graph artifact offline.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "kgworker",
	Short:        "Knowledge graph worker for CVAlign",
	Long:         "kgworker owns the SQLite knowledge graph artifact. It serves graph queries to the API server and rebuilds, inspects or exports the graph from the command line.",
	SilenceUsage: true,
}

var (
	dbPath string
	seed   uint64
)

// stdout carries the protocol in serve mode, so logs always go to stderr.
var logger = log.New(os.Stderr, "", log.LstdFlags)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("KG_DB_PATH", "careerhunt_kg.db"), "Path to the knowledge graph SQLite file")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 42, "Seed for embedding initialisation")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
