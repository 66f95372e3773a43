package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/model"
)

// -- correct --

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record a human correction of an extracted result",
	Long:  "Stores the correction, learns a pattern for every field it changes and records a few-shot example when useful. --original and --corrected take result JSON (insuTerm, payTerm, ageRange, renew, specialNotes).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		entity, _ := cmd.Flags().GetString("entity")
		originalJSON, _ := cmd.Flags().GetString("original")
		correctedJSON, _ := cmd.Flags().GetString("corrected")
		reason, _ := cmd.Flags().GetString("reason")
		textFile, _ := cmd.Flags().GetString("text-file")

		original, err := parseResult(originalJSON)
		if err != nil {
			return eris.Wrap(err, "correct: parse --original")
		}
		corrected, err := parseResult(correctedJSON)
		if err != nil {
			return eris.Wrap(err, "correct: parse --corrected")
		}
		var sourceText string
		if textFile != "" {
			b, err := os.ReadFile(textFile)
			if err != nil {
				return eris.Wrap(err, "correct: read --text-file")
			}
			sourceText = string(b)
		}

		if err := cfg.Validate("learn"); err != nil {
			return err
		}
		st, pipeline, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := pipeline.LogCorrection(ctx, learning.Correction{
			EntityID:   entity,
			Original:   original,
			Corrected:  corrected,
			SourceText: sourceText,
			Reason:     reason,
		})
		if err != nil {
			return eris.Wrap(err, "correct")
		}

		zap.L().Info("correction recorded",
			zap.String("id", rec.ID),
			zap.String("entity_id", rec.EntityID),
		)
		return printJSON(os.Stdout, rec)
	},
}

// parseResult decodes result JSON. Missing fields become the sentinel.
func parseResult(s string) (model.Result, error) {
	var r model.Result
	if s == "" {
		return r.Normalize(), nil
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return model.Result{}, err
	}
	return r.Normalize(), nil
}

// -- stats --

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		if err := cfg.Validate("learn"); err != nil {
			return err
		}
		st, pipeline, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := pipeline.Statistics(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		if asJSON {
			return printJSON(os.Stdout, stats)
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

func formatStats(out io.Writer, s *model.Statistics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Corrections:\t%d\n", s.TotalCorrections)
	_, _ = fmt.Fprintf(w, "Patterns:\t%d\n", s.TotalPatterns)
	_, _ = fmt.Fprintf(w, "Examples:\t%d\n", s.TotalExamples)
	_, _ = fmt.Fprintf(w, "Accuracy:\t%.1f%% (%+.1f)\n", s.CurrentAccuracy, s.AccuracyImprovement)
	if s.Trend != nil {
		_, _ = fmt.Fprintf(w, "Since %s:\t%+.1f\n", s.Trend.Since.Format("2006-01-02"), s.Trend.Change)
	}

	fields := make([]string, 0, len(s.FieldAccuracy))
	for f := range s.FieldAccuracy {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "  %s\t%.1f%%\n", f, s.FieldAccuracy[model.Field(f)])
	}
	_ = w.Flush()
}

// -- learn --

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run a batch learning pass",
	Long:  "Learns pending corrections, reports systemic issues and refreshes few-shot examples for the most corrected entities. --backlog drains every pending correction; --maintain deactivates low-scoring patterns.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		backlog, _ := cmd.Flags().GetBool("backlog")
		maintain, _ := cmd.Flags().GetBool("maintain")

		if err := cfg.Validate("learn"); err != nil {
			return err
		}
		st, pipeline, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		switch {
		case maintain:
			n, err := pipeline.Maintain(ctx)
			if err != nil {
				return eris.Wrap(err, "learn: maintain")
			}
			return printJSON(os.Stdout, map[string]int{"deactivated": n})
		case backlog:
			report, err := pipeline.ProcessBacklog(ctx)
			if err != nil {
				return eris.Wrap(err, "learn: backlog")
			}
			return printJSON(os.Stdout, report)
		default:
			report, err := pipeline.BatchLearn(ctx)
			if err != nil {
				return eris.Wrap(err, "learn: batch")
			}
			return printJSON(os.Stdout, report)
		}
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	correctCmd.Flags().String("entity", "", "entity the corrected document belongs to (required)")
	correctCmd.Flags().String("original", "", "result JSON as extracted")
	correctCmd.Flags().String("corrected", "", "result JSON after review (required)")
	correctCmd.Flags().String("reason", "", "why the result was wrong")
	correctCmd.Flags().String("text-file", "", "file holding the document text")
	_ = correctCmd.MarkFlagRequired("entity")
	_ = correctCmd.MarkFlagRequired("corrected")

	statsCmd.Flags().Bool("json", false, "print as JSON")

	learnCmd.Flags().Bool("backlog", false, "process every pending correction")
	learnCmd.Flags().Bool("maintain", false, "deactivate patterns that score below the floor")
	learnCmd.MarkFlagsMutuallyExclusive("backlog", "maintain")

	rootCmd.AddCommand(correctCmd, statsCmd, learnCmd)
}
