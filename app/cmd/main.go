package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"docqa/app/bootstrap"
	"docqa/app/config"
	"docqa/app/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docqa",
		Short:        "Document question answering backend",
		SilenceUsage: true,
	}

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := build(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.Config.ServerAddr
			}
			s := server.NewServer(addr, server.Deps{
				Ingester:      app.Ingestor,
				Answerer:      app.Answerer,
				Metrics:       app.Metrics,
				Logger:        app.Logger,
				UploadLimitMB: app.Config.UploadLimitMB,
			})
			return s.Run(ctx)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (defaults to SERVER_ADDR)")

	var asJSON bool
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.Answerer.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(answer)
			}
			fmt.Fprintln(out, answer.Answer)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range answer.Sources {
					fmt.Fprintf(out, "- %s by %s (%s)\n", s.Title, s.Author, s.Filename)
				}
			}
			return nil
		},
	}
	ask.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")

	root.AddCommand(serve, ask)
	return root
}

func build(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, cfg.Logger())
}
