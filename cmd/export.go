package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/mapping"
	"github.com/sells-group/terms-extractor/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export learned patterns or domain mappings to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		kind, _ := cmd.Flags().GetString("kind")
		out, _ := cmd.Flags().GetString("out")
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")

		if kind != "patterns" && kind != "mappings" {
			return eris.Errorf("unknown export kind %q (want patterns or mappings)", kind)
		}
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "export: create output")
		}
		defer f.Close() //nolint:errcheck

		n, err := export(ctx, f, st, kind, !all, limit)
		if err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("kind", kind),
			zap.Int("rows", n),
			zap.String("out", out),
		)
		return f.Close()
	},
}

func export(ctx context.Context, w io.Writer, st store.Store, kind string, activeOnly bool, limit int) (int, error) {
	switch kind {
	case "patterns":
		patterns, err := learning.New(st, cfg.Learning).Patterns(ctx, activeOnly)
		if err != nil {
			return 0, eris.Wrap(err, "export: list patterns")
		}
		return len(patterns), mapping.ExportPatterns(w, patterns)
	default:
		mappings, err := st.ListDomainMappings(ctx, limit)
		if err != nil {
			return 0, eris.Wrap(err, "export: list mappings")
		}
		return len(mappings), mapping.ExportMappings(w, mappings)
	}
}

func init() {
	exportCmd.Flags().String("kind", "patterns", "patterns or mappings")
	exportCmd.Flags().String("out", "", "output .xlsx path (required)")
	exportCmd.Flags().Bool("all", false, "include deactivated patterns")
	exportCmd.Flags().Int("limit", 10000, "maximum mappings to export")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
