package main

import (
	"os"
	"os/signal"
	"syscall"

	"cvalign/internal/graph"
	"cvalign/internal/kgrpc"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer graph requests on stdin/stdout",
	Long:  "Reads one JSON request per line from stdin and writes one JSON response per line to stdout until stdin closes. SIGHUP reloads the artifact from disk.",
	RunE:  runServe,
}

var serveMaxInFlight int

func init() {
	serveCmd.Flags().IntVar(&serveMaxInFlight, "max-in-flight", 8, "Maximum requests handled concurrently")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := graph.NewService(dbPath, seed, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Printf("kgworker status=error op=close err=%v", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				svc.Reload()
			}
		}
	}()

	logger.Printf("kgworker status=serving db=%s max_in_flight=%d", dbPath, serveMaxInFlight)
	err := kgrpc.NewServer(svc, serveMaxInFlight, logger).Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Printf("kgworker status=stopped")
	return nil
}
