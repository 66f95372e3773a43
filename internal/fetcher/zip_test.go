package fetcher

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZIP(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadDocuments(t *testing.T) {
	data := buildZIP(t, map[string]string{
		"docs/A1.pdf":     "%PDF-1.4 fake",
		"docs/B2.TXT":     "보험기간 종신",
		"docs/notes.csv":  "a,b",
		"docs/.DS_Store":  "junk",
		"docs/sub/C3.txt": "납입기간 20년납",
	})

	entries, err := ReadDocuments(data)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	sort.Slice(entries, func(i, j int) bool { return entries[i].Stem < entries[j].Stem })
	assert.Equal(t, "A1", entries[0].Stem)
	assert.Equal(t, "docs/A1.pdf", entries[0].Name)
	assert.Equal(t, "%PDF-1.4 fake", string(entries[0].Data))
	assert.Equal(t, "B2", entries[1].Stem)
	assert.Equal(t, "C3", entries[2].Stem)
	assert.Equal(t, "납입기간 20년납", string(entries[2].Data))
}

func TestReadDocuments_SkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("folder/")
	require.NoError(t, err)
	fw, err := w.Create("folder/A1.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("text"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := ReadDocuments(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A1", entries[0].Stem)
}

func TestReadDocuments_Empty(t *testing.T) {
	entries, err := ReadDocuments(buildZIP(t, map[string]string{}))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadDocuments_NotAZip(t *testing.T) {
	_, err := ReadDocuments([]byte("plain text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}
