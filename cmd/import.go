package main

import (
	"context"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/engine"
	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/mapping"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <path-or-url>",
	Short: "Import domain mappings or register policy documents",
	Long:  "Loads domain mappings from YAML, JSON, XLSX or an underwriting CSV export into the store. With --documents the source is a ZIP of PDFs or text files, each registered under its file stem for cache warmup.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		format, _ := cmd.Flags().GetString("format")
		charset, _ := cmd.Flags().GetString("charset")
		documents, _ := cmd.Flags().GetBool("documents")

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		data, err := fetcher.New(cfg.Fetch).Fetch(ctx, source)
		if err != nil {
			return eris.Wrap(err, "import: fetch source")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if documents {
			n, err := importDocuments(ctx, st, data)
			if err != nil {
				return err
			}
			zap.L().Info("documents registered", zap.Int("count", n), zap.String("source", source))
			return nil
		}

		f := mapping.Format(format)
		if f == "" {
			if f, err = mapping.DetectFormat(filepath.Base(source)); err != nil {
				return eris.Wrap(err, "import")
			}
		}
		n, err := importMappings(ctx, st, f, data, charset)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.Int64("mappings", n),
			zap.String("format", string(f)),
			zap.String("source", source),
		)
		return nil
	},
}

func importMappings(ctx context.Context, st store.Store, f mapping.Format, data []byte, charset string) (int64, error) {
	mappings, err := mapping.Load(ctx, f, data, mapping.Options{Charset: charset})
	if err != nil {
		return 0, eris.Wrap(err, "import: load mappings")
	}
	if len(mappings) == 0 {
		return 0, eris.New("import: source holds no mappings")
	}
	n, err := st.UpsertDomainMappings(ctx, mappings)
	if err != nil {
		return 0, eris.Wrap(err, "import: upsert mappings")
	}
	return n, nil
}

// importDocuments registers every document in a ZIP archive. Text
// extraction runs once here so warmup does not repeat it.
func importDocuments(ctx context.Context, st store.Store, data []byte) (int, error) {
	entries, err := fetcher.ReadDocuments(data)
	if err != nil {
		return 0, eris.Wrap(err, "import: read archive")
	}

	rt, err := initRuntime(ctx, st, prometheus.NewRegistry(), noBackends())
	if err != nil {
		return 0, err
	}
	defer rt.Close()

	return registerEntries(ctx, rt.Service, entries), nil
}

func registerEntries(ctx context.Context, svc *engine.Service, entries []fetcher.ArchiveEntry) int {
	n := 0
	for _, e := range entries {
		doc := model.Document{EntityID: e.Stem, Name: e.Name, Content: e.Data}
		if err := svc.RegisterDocument(ctx, doc); err != nil {
			zap.L().Warn("skipping document", zap.String("entry", e.Name), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

func init() {
	importCmd.Flags().String("format", "", "yaml, json, xlsx or csv (default from the file extension)")
	importCmd.Flags().String("charset", "", "source encoding for CSV exports, e.g. euc-kr")
	importCmd.Flags().Bool("documents", false, "source is a ZIP of policy documents")
	rootCmd.AddCommand(importCmd)
}
