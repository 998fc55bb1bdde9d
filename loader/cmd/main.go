package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"docqa/app/bootstrap"
	"docqa/app/config"
	"docqa/service"
	"docqa/types"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docqa-loader",
		Short:        "Bulk ingestion of local documents",
		SilenceUsage: true,
	}

	var title, author, description string
	ingest := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, chunk, embed and store local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logger()
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			var failed []error
			total, ingested := 0, 0
			for _, path := range args {
				if ctx.Err() != nil {
					break
				}
				data, err := os.ReadFile(path)
				if err != nil {
					failed = append(failed, err)
					continue
				}

				name := filepath.Base(path)
				meta, err := types.ParseMetadata(metadataJSON(title, author, description), name)
				if err != nil {
					logger.Warn("ignoring malformed metadata", "filename", name, "error", err)
				}

				n, err := app.Ingestor.Ingest(ctx, types.Document{
					Filename:    name,
					ContentType: mime.TypeByExtension(filepath.Ext(name)),
					Data:        data,
					Metadata:    meta,
				})
				if err != nil {
					logger.Error("ingestion failed", "path", path, "error", err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				total += n
				ingested++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks\n", path, n)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %d of %d files\n", total, ingested, len(args))
			return errors.Join(failed...)
		},
	}
	ingest.Flags().StringVar(&title, "title", "", "document title (defaults to the filename)")
	ingest.Flags().StringVar(&author, "author", "", "document author")
	ingest.Flags().StringVar(&description, "description", "", "document description")

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Ingest files dropped into LOADER_SOURCE_DIR until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logger()
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			w, err := service.NewWatcher(service.WatcherConfig{
				SourceDir:  cfg.LoaderSourceDir,
				ArchiveDir: cfg.LoaderArchiveDir,
				BadDir:     cfg.LoaderBadDir,
				SettleTime: cfg.LoaderSettleTime,
			}, app.Ingestor, logger.With("component", "watcher"))
			if err != nil {
				return err
			}
			w.Run(ctx)
			return nil
		},
	}

	root.AddCommand(ingest, watch)
	return root
}

func metadataJSON(title, author, description string) string {
	if title == "" && author == "" && description == "" {
		return ""
	}
	raw, _ := json.Marshal(types.Metadata{Title: title, Author: author, Description: description})
	return string(raw)
}
