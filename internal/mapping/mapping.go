// Package mapping loads underwriting term mappings from seed files and
// exports learned patterns for review.
package mapping

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/model"
)

// Format is a mapping file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks the format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", eris.Errorf("mapping: unsupported file type %q", filepath.Ext(name))
	}
}

// Options tunes Load.
type Options struct {
	// Charset of CSV input. Underwriting exports are usually "euc-kr".
	Charset string
}

// Load parses data in the given format. Mappings without an entity ID are
// dropped and later duplicates of an entity replace earlier ones.
func Load(ctx context.Context, format Format, data []byte, opts Options) ([]model.DomainMapping, error) {
	var (
		out []model.DomainMapping
		err error
	)
	switch format {
	case FormatYAML:
		out, err = LoadYAML(data)
	case FormatJSON:
		out, err = fetcher.ReadJSONArray[model.DomainMapping](ctx, bytes.NewReader(data))
		if err != nil {
			err = eris.Wrap(err, "mapping: parse json")
		}
	case FormatXLSX:
		out, err = LoadXLSX(data)
	case FormatCSV:
		out, err = LoadCSV(ctx, bytes.NewReader(data), opts.Charset)
	default:
		return nil, eris.Errorf("mapping: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return dedupe(out), nil
}

// yamlFile accepts either a bare list or a document with a mappings key.
type yamlFile struct {
	Mappings []model.DomainMapping `yaml:"mappings"`
}

// LoadYAML parses a YAML mapping seed file.
func LoadYAML(data []byte) ([]model.DomainMapping, error) {
	var list []model.DomainMapping
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc yamlFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "mapping: parse yaml")
	}
	return doc.Mappings, nil
}

func dedupe(in []model.DomainMapping) []model.DomainMapping {
	index := make(map[string]int, len(in))
	out := make([]model.DomainMapping, 0, len(in))
	for _, m := range in {
		m.EntityID = strings.TrimSpace(m.EntityID)
		if m.EntityID == "" {
			continue
		}
		m = fillSentinels(m)
		if i, ok := index[m.EntityID]; ok {
			out[i] = m
			continue
		}
		index[m.EntityID] = len(out)
		out = append(out, m)
	}
	return out
}

func fillSentinels(m model.DomainMapping) model.DomainMapping {
	for _, v := range []*string{&m.Coverage, &m.Payment, &m.AgeRange, &m.Renewal} {
		*v = strings.TrimSpace(*v)
		if *v == "" {
			*v = model.Sentinel
		}
	}
	return m
}

// orderedSet keeps first-seen order of distinct non-empty values.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" || model.IsSentinel(v) {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func (s *orderedSet) join() string {
	if len(s.items) == 0 {
		return model.Sentinel
	}
	return strings.Join(s.items, ", ")
}
