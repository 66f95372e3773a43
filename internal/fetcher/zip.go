package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ArchiveEntry is one document read from a ZIP archive.
type ArchiveEntry struct {
	// Name is the entry path inside the archive.
	Name string
	// Stem is the base name without extension, used as the entity ID.
	Stem string
	Data []byte
}

// documentExts are the entry types ReadDocuments keeps.
var documentExts = map[string]bool{".pdf": true, ".txt": true}

// ReadDocuments returns the PDF and text entries of a ZIP archive held in
// memory. Directories, hidden files and entries over MaxDocumentBytes are
// skipped.
func ReadDocuments(data []byte) ([]ArchiveEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	var entries []ArchiveEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(strings.ReplaceAll(f.Name, "\\", "/"))
		base := path.Base(name)
		ext := strings.ToLower(path.Ext(base))
		if strings.HasPrefix(base, ".") || !documentExts[ext] {
			continue
		}
		if f.UncompressedSize64 > MaxDocumentBytes {
			continue
		}

		body, err := readEntry(f)
		if err != nil {
			return entries, err
		}
		entries = append(entries, ArchiveEntry{
			Name: name,
			Stem: strings.TrimSuffix(base, path.Ext(base)),
			Data: body,
		})
	}
	return entries, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	// The header size can lie; cap the actual read as well.
	body, err := io.ReadAll(io.LimitReader(rc, MaxDocumentBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "zip: read entry %s", f.Name)
	}
	if len(body) > MaxDocumentBytes {
		return nil, eris.Errorf("zip: entry %s exceeds %d bytes", f.Name, MaxDocumentBytes)
	}
	return body, nil
}
