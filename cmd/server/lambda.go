package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chat-proxy/internal/functionurl"
)

// Lambda allows about 500ms between SIGTERM and the kill.
const lambdaShutdownTimeout = 500 * time.Millisecond

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve Lambda function URL invocations",
	Long: `Serve Lambda function URL invocations through the same router as "serve".

The function URL must use InvokeMode RESPONSE_STREAM so streamed chat
responses reach the browser incrementally.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		a.logger.Info("Starting Lambda handler", "model", a.cfg.Model)
		functionurl.Start(a.router, func() {
			ctx, cancel := context.WithTimeout(context.Background(), lambdaShutdownTimeout)
			defer cancel()
			a.logger.Info("Lambda runtime shutting down")
			a.close(ctx)
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
