package strategy

import (
	"context"

	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/probe"
)

// TextScan runs the probe heuristics over the document text.
type TextScan struct{}

func (TextScan) Name() string                   { return "Text Scan" }
func (TextScan) Kind() Kind                     { return KindTextScan }
func (TextScan) Priority() int                  { return 2 }
func (TextScan) Available(context.Context) bool { return true }

func (TextScan) Extract(_ context.Context, doc model.Document) (model.Result, error) {
	r := probe.Scan(doc.Text)
	if r.IsEmpty() {
		return r, nil
	}
	return r.WithNote("text scan").WithSource(model.SourceTextScan), nil
}

func (TextScan) ScoreConfidence(r model.Result) int {
	return fieldScore(r, 25)
}
