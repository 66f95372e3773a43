package mapping

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/model"
	"github.com/sells-group/terms-extractor/internal/probe"
)

// Column positions in an underwriting code mapping export.
const (
	colCode = iota
	colProductName
	colProductGroup
	colTypeLabel
	colMainCode
	colPeriodLabel
	colPeriodValue
	colPeriodKind
	colPayTerm
	colEntryAgeM
	colEntryAgeF
	colClassTag
	colSrcFile

	uwColumns
)

// uwRow is one (code, period, pay term) line of the export.
type uwRow struct {
	code      string
	name      string
	typeLabel string
	period    string
	payTerm   string
	ageM      string
	ageF      string
}

type group struct {
	rows []uwRow
}

// LoadCSV reads an underwriting code mapping export: a header line followed
// by rows of at least 13 columns, one per (code, period, pay term). Rows are
// merged per code into a single mapping.
func LoadCSV(ctx context.Context, r io.Reader, charset string) ([]model.DomainMapping, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{
		HasHeader:  true,
		TrimSpace:  true,
		LazyQuotes: true,
		Charset:    charset,
		MinFields:  uwColumns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "mapping: read uw csv")
	}

	groups := make(map[string]*group)
	for _, rec := range rows {
		row := uwRow{
			code:      rec[colCode],
			name:      rec[colProductName],
			typeLabel: rec[colTypeLabel],
			period:    rec[colPeriodLabel],
			payTerm:   normalizePayTerm(rec[colPayTerm]),
			ageM:      rec[colEntryAgeM],
			ageF:      rec[colEntryAgeF],
		}
		if row.code == "" {
			continue
		}
		g, ok := groups[row.code]
		if !ok {
			g = &group{}
			groups[row.code] = g
		}
		g.rows = append(g.rows, row)
	}

	out := make([]model.DomainMapping, 0, len(groups))
	for _, code := range sortedKeys(groups) {
		out = append(out, groups[code].mapping(code))
	}

	zap.L().Debug("mapping: loaded uw csv",
		zap.Int("rows", len(rows)),
		zap.Int("codes", len(out)),
	)
	return out, nil
}

func (g *group) mapping(code string) model.DomainMapping {
	var coverage, payment orderedSet
	name := ""
	lo, hi, found := 0, 0, false

	for _, r := range g.rows {
		coverage.add(r.period)
		payment.add(r.payTerm)
		if name == "" {
			name = r.name
		}
		for _, a := range []string{r.ageM, r.ageF} {
			l, h, ok := probe.ParseAgeRange(a)
			if !ok || !probe.SaneAges(l, h) {
				continue
			}
			if !found || l < lo {
				lo = l
			}
			if !found || h > hi {
				hi = h
			}
			found = true
		}
	}

	age := model.Sentinel
	if found {
		age = fmt.Sprintf("%d~%d", lo, hi)
	}

	return model.DomainMapping{
		EntityID: code,
		Name:     name,
		Coverage: coverage.join(),
		Payment:  payment.join(),
		AgeRange: age,
		Renewal:  renewalFor(code, g.rows[0].typeLabel),
	}
}

// normalizePayTerm strips the billing frequency: "월납(10년납)" becomes
// "10년납".
func normalizePayTerm(v string) string {
	v = strings.TrimSpace(v)
	open := strings.Index(v, "(")
	end := strings.LastIndex(v, ")")
	if open > 0 && end > open && strings.HasSuffix(v[:open], "납") {
		return strings.TrimSpace(v[open+1 : end])
	}
	return v
}

// renewalFor trusts an explicit type label, otherwise rider codes starting
// with 8 are renewable.
func renewalFor(code, typeLabel string) string {
	switch {
	case strings.Contains(typeLabel, "비갱신"):
		return "비갱신형"
	case strings.Contains(typeLabel, "갱신"):
		return "갱신형"
	case strings.HasPrefix(code, "8"):
		return "갱신형"
	default:
		return "비갱신형"
	}
}

func sortedKeys(m map[string]*group) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
