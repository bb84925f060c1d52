package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/exam-grader/internal/server"
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var (
	serverAddr string
	rpcTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "gradectl",
	Short: "Grade exam answer sheets",
	Long: `gradectl grades spreadsheets of exam answers with a text classification
service. It can grade a file locally or talk to a running gradingd.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", getEnvOrDefault("GRADER_ADDR", "localhost:8080"), "gradingd gRPC address")
	rootCmd.PersistentFlags().DurationVar(&rpcTimeout, "timeout", 30*time.Second, "timeout for a single request")
}

// withClient dials gradingd and runs fn with a request-scoped context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *server.Client) error) error {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect %s: %w", serverAddr, err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()
	return fn(ctx, server.NewClient(conn))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
