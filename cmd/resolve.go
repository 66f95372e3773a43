package main

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/terms-extractor/internal/engine"
	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/model"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the terms of one document",
	Long:  "Loads a document from a local path or a http(s)://, ftp:// or file:// URL, runs the strategy chain and prints the validated result as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		entity, _ := cmd.Flags().GetString("entity")
		source, _ := cmd.Flags().GetString("source")
		text, _ := cmd.Flags().GetString("text")
		fallback, _ := cmd.Flags().GetBool("fallback")
		if source == "" && text == "" {
			return eris.New("one of --source or --text is required")
		}
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		doc := model.Document{EntityID: entity, Text: text}
		if source != "" {
			content, err := fetcher.New(cfg.Fetch).Fetch(ctx, source)
			if err != nil {
				return eris.Wrap(err, "resolve: fetch document")
			}
			doc.Content = content
			doc.Name = filepath.Base(source)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rt, err := initRuntime(ctx, st, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer rt.Close()

		var resp *engine.Response
		if fallback {
			resp, err = rt.Service.ResolveWithFallback(ctx, doc)
		} else {
			resp, err = rt.Service.Resolve(ctx, doc)
		}
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		return printJSON(os.Stdout, resp)
	},
}

func init() {
	resolveCmd.Flags().String("entity", "", "entity (product code) the document belongs to (required)")
	resolveCmd.Flags().String("source", "", "document path or URL")
	resolveCmd.Flags().String("text", "", "document text, instead of --source")
	resolveCmd.Flags().Bool("fallback", false, "use the fallback chain; never fails, flags manual review")
	_ = resolveCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(resolveCmd)
}
