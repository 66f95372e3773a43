//go:build !integration

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/mapping"
	"github.com/sells-group/terms-extractor/internal/model"
)

const seedYAML = `
mappings:
  - entity_id: A1
    name: 종신보험
    insuTerm: 종신
    payTerm: 10년납, 20년납
    ageRange: 15~70
    renew: 비갱신형
  - entity_id: B2
    insuTerm: 80세만기
`

func TestImportMappings(t *testing.T) {
	ctx := context.Background()
	_, st, _ := newTestRuntime(t)

	n, err := importMappings(ctx, st, mapping.FormatYAML, []byte(seedYAML), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	m, err := st.GetDomainMapping(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "10년납, 20년납", m.Payment)

	_, err = importMappings(ctx, st, mapping.FormatYAML, []byte("mappings: []"), "")
	assert.ErrorContains(t, err, "no mappings")
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRegisterEntries(t *testing.T) {
	ctx := context.Background()
	rt, st, _ := newTestRuntime(t)

	entries, err := fetcher.ReadDocuments(zipOf(t, map[string]string{
		"docs/21686.txt": policyText,
		"docs/empty.txt": "",
		"readme.md":      "ignored",
	}))
	require.NoError(t, err)

	n := registerEntries(ctx, rt.Service, entries)
	assert.Equal(t, 1, n)

	docs, err := st.ListDocuments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "21686", docs[0].EntityID)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	rt, st, _ := newTestRuntime(t)

	_, err := importMappings(ctx, st, mapping.FormatYAML, []byte(seedYAML), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := export(ctx, &buf, st, "mappings", true, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err := mapping.LoadXLSX(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].EntityID)

	original := model.EmptyResult("").With(model.FieldPayment, "10년납")
	_, err = rt.Service.LogCorrection(ctx, learning.Correction{
		EntityID:  "A1",
		Original:  original,
		Corrected: original.With(model.FieldPayment, "10년납, 20년납"),
	})
	require.NoError(t, err)

	buf.Reset()
	n, err = export(ctx, &buf, st, "patterns", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rows, err := fetcher.ReadXLSXBytes(buf.Bytes(), fetcher.XLSXOptions{SheetName: "patterns"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[1][0])
}
