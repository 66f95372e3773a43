package mapping

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/model"
)

// headerAliases maps accepted header spellings to mapping columns.
var headerAliases = map[string]string{
	"entity_id": "entity", "entityid": "entity", "code": "entity", "insucd": "entity",
	"name": "name", "product_name": "name",
	"insuterm": "coverage", "coverage": "coverage", "보험기간": "coverage",
	"payterm": "payment", "payment": "payment", "납입기간": "payment",
	"agerange": "age", "age_range": "age", "가입나이": "age",
	"renew": "renewal", "renewal": "renewal", "갱신여부": "renewal",
}

// LoadXLSX reads mappings from the first sheet of a workbook. The first row
// is a header naming the columns; an entity column is required.
func LoadXLSX(data []byte) ([]model.DomainMapping, error) {
	rows, err := fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "mapping: read xlsx")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
		if c, ok := headerAliases[key]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	if _, ok := cols["entity"]; !ok {
		return nil, eris.New("mapping: xlsx header has no entity column")
	}

	cell := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]model.DomainMapping, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, model.DomainMapping{
			EntityID: cell(row, "entity"),
			Name:     cell(row, "name"),
			Coverage: cell(row, "coverage"),
			Payment:  cell(row, "payment"),
			AgeRange: cell(row, "age"),
			Renewal:  cell(row, "renewal"),
		})
	}
	return out, nil
}

var patternHeader = []string{
	"entity_id", "field", "value", "confidence", "score", "grade",
	"apply_count", "success_count", "source", "priority", "active", "updated_at",
}

// ExportPatterns writes scored patterns to w as a workbook with one sheet.
func ExportPatterns(w io.Writer, patterns []learning.ScoredPattern) error {
	rows := make([][]string, 0, len(patterns))
	for _, p := range patterns {
		updated := ""
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			p.EntityID,
			string(p.Field),
			p.Value,
			strconv.Itoa(p.Confidence),
			strconv.Itoa(p.Score),
			p.Grade,
			strconv.Itoa(p.ApplyCount),
			strconv.Itoa(p.SuccessCount),
			string(p.Source),
			strconv.Itoa(p.Priority),
			strconv.FormatBool(p.Active),
			updated,
		})
	}
	return fetcher.WriteXLSX(w, fetcher.Sheet{Name: "patterns", Header: patternHeader, Rows: rows})
}

// ExportMappings writes mappings to w in the layout LoadXLSX reads.
func ExportMappings(w io.Writer, mappings []model.DomainMapping) error {
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{m.EntityID, m.Name, m.Coverage, m.Payment, m.AgeRange, m.Renewal})
	}
	return fetcher.WriteXLSX(w, fetcher.Sheet{
		Name:   "mappings",
		Header: []string{"entity_id", "name", "insuTerm", "payTerm", "ageRange", "renew"},
		Rows:   rows,
	})
}
