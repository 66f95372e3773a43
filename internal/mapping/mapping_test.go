package mapping

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/sells-group/terms-extractor/internal/fetcher"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/model"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"seed.yaml":           FormatYAML,
		"seed.YML":            FormatYAML,
		"mappings.json":       FormatJSON,
		"review.xlsx":         FormatXLSX,
		"UW_CODE_MAPPING.csv": FormatCSV,
	}
	for name, want := range tests {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := DetectFormat("mapping.xml")
	require.Error(t, err)
}

func TestLoad_YAMLList(t *testing.T) {
	data := []byte(`
- entity_id: A1
  name: 종신보험
  insuTerm: 종신
  payTerm: 10년납, 20년납
  ageRange: 15~80
  renew: 비갱신형
- entity_id: B2
  insuTerm: 90세만기
`)
	got, err := Load(context.Background(), FormatYAML, data, Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "종신", got[0].Coverage)
	assert.Equal(t, "10년납, 20년납", got[0].Payment)
	assert.Equal(t, model.Sentinel, got[1].Payment)
	assert.Equal(t, model.Sentinel, got[1].Renewal)
}

func TestLoad_YAMLDocument(t *testing.T) {
	data := []byte(`
mappings:
  - entity_id: A1
    insuTerm: 종신
  - entity_id: ""
    insuTerm: 종신
  - entity_id: A1
    insuTerm: 80세만기
`)
	got, err := Load(context.Background(), FormatYAML, data, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "80세만기", got[0].Coverage)
}

func TestLoad_YAMLInvalid(t *testing.T) {
	_, err := Load(context.Background(), FormatYAML, []byte("mappings: [unclosed"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapping: parse yaml")
}

func TestLoad_JSON(t *testing.T) {
	data := []byte(`[{"entity_id":"A1","insuTerm":"종신","payTerm":"전기납","ageRange":"0~60","renew":"갱신형"}]`)
	got, err := Load(context.Background(), FormatJSON, data, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "전기납", got[0].Payment)
	assert.Equal(t, "갱신형", got[0].Renewal)

	_, err = Load(context.Background(), FormatJSON, []byte(`{"entity_id":"A1"}`), Options{})
	require.Error(t, err)
}

func TestLoad_UnknownFormat(t *testing.T) {
	_, err := Load(context.Background(), Format("xml"), nil, Options{})
	require.Error(t, err)
}

const uwHeader = "CODE,PRODUCT_NAME,PRODUCT_GROUP,TYPE_LABEL,MAIN_CODE,PERIOD_LABEL,PERIOD_VALUE,PERIOD_KIND,PAY_TERM,ENTRY_AGE_M,ENTRY_AGE_F,CLASS_TAG,SRC_FILE\n"

func TestLoadCSV_GroupsRowsByCode(t *testing.T) {
	data := uwHeader +
		"21686,무배당 종신보험,종신,주계약,21686,종신,999,L,월납(10년납),15~70세,15~70세,MAIN,a.pdf\n" +
		"21686,무배당 종신보험,종신,주계약,21686,종신,999,L,월납(20년납),15~65세,15~68세,MAIN,a.pdf\n" +
		"21686,무배당 종신보험,종신,주계약,21686,90세만기,90,X,월납(20년납),20~60세,20~60세,MAIN,a.pdf\n" +
		"81957,암진단특약,특약,갱신형,21686,10년만기,10,N,전기납,15~80세,15~80세,RIDER,a.pdf\n" +
		"short,row\n"

	got, err := LoadCSV(context.Background(), strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	main := got[0]
	assert.Equal(t, "21686", main.EntityID)
	assert.Equal(t, "무배당 종신보험", main.Name)
	assert.Equal(t, "종신, 90세만기", main.Coverage)
	assert.Equal(t, "10년납, 20년납", main.Payment)
	assert.Equal(t, "15~70", main.AgeRange)
	assert.Equal(t, "비갱신형", main.Renewal)

	rider := got[1]
	assert.Equal(t, "81957", rider.EntityID)
	assert.Equal(t, "전기납", rider.Payment)
	assert.Equal(t, "갱신형", rider.Renewal)
}

func TestLoadCSV_EUCKR(t *testing.T) {
	raw := uwHeader + "30001,정기보험,정기,주계약,30001,80세만기,80,X,월납(전기납),만19세~60세,,MAIN,b.pdf\n"
	encoded, err := korean.EUCKR.NewEncoder().String(raw)
	require.NoError(t, err)

	got, err := Load(context.Background(), FormatCSV, []byte(encoded), Options{Charset: "euc-kr"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "정기보험", got[0].Name)
	assert.Equal(t, "80세만기", got[0].Coverage)
	assert.Equal(t, "전기납", got[0].Payment)
	assert.Equal(t, "19~60", got[0].AgeRange)
}

func TestLoadCSV_NoUsableAges(t *testing.T) {
	data := uwHeader + "40001,상품,그룹,,40001,종신,,,일시납,미정,,,\n"
	got, err := LoadCSV(context.Background(), strings.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Sentinel, got[0].AgeRange)
	assert.Equal(t, "일시납", got[0].Payment)
}

func TestNormalizePayTerm(t *testing.T) {
	assert.Equal(t, "10년납", normalizePayTerm("월납(10년납)"))
	assert.Equal(t, "전기납", normalizePayTerm(" 월납(전기납) "))
	assert.Equal(t, "20년납", normalizePayTerm("20년납"))
	assert.Equal(t, "(기타)", normalizePayTerm("(기타)"))
}

func TestRenewalFor(t *testing.T) {
	assert.Equal(t, "비갱신형", renewalFor("81000", "비갱신형"))
	assert.Equal(t, "갱신형", renewalFor("21000", "갱신형"))
	assert.Equal(t, "갱신형", renewalFor("81000", "특약"))
	assert.Equal(t, "비갱신형", renewalFor("21000", ""))
}

func TestLoadXLSX_HeaderAliases(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fetcher.WriteXLSX(&buf, fetcher.Sheet{
		Name:   "Sheet1",
		Header: []string{"보험기간", "CODE", "Pay Term", "ageRange"},
		Rows: [][]string{
			{"종신", "A1", "20년납", "15~60"},
			{"90세만기", "B2"},
		},
	}))

	got, err := Load(context.Background(), FormatXLSX, buf.Bytes(), Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.DomainMapping{
		EntityID: "A1", Coverage: "종신", Payment: "20년납", AgeRange: "15~60", Renewal: model.Sentinel,
	}, got[0])
	assert.Equal(t, model.Sentinel, got[1].Payment)
}

func TestLoadXLSX_NoEntityColumn(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, fetcher.WriteXLSX(&buf, fetcher.Sheet{
		Name:   "Sheet1",
		Header: []string{"insuTerm"},
		Rows:   [][]string{{"종신"}},
	}))
	_, err := LoadXLSX(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entity column")
}

func TestExportMappings_RoundTrip(t *testing.T) {
	in := []model.DomainMapping{
		{EntityID: "A1", Name: "종신보험", Coverage: "종신", Payment: "10년납", AgeRange: "15~70", Renewal: "비갱신형"},
	}
	var buf bytes.Buffer
	require.NoError(t, ExportMappings(&buf, in))

	got, err := LoadXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestExportPatterns(t *testing.T) {
	updated := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	patterns := []learning.ScoredPattern{{
		LearnedPattern: model.LearnedPattern{
			EntityID:     "A1",
			Field:        model.FieldCoverage,
			Value:        "종신",
			Confidence:   90,
			ApplyCount:   4,
			SuccessCount: 3,
			Source:       model.LearningSourceUserCorrection,
			Priority:     50,
			Active:       true,
			UpdatedAt:    updated,
		},
		Score: 88,
		Grade: "A",
	}}

	var buf bytes.Buffer
	require.NoError(t, ExportPatterns(&buf, patterns))

	rows, err := fetcher.ReadXLSXBytes(buf.Bytes(), fetcher.XLSXOptions{SheetName: "patterns"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, patternHeader, rows[0])
	assert.Equal(t, []string{
		"A1", string(model.FieldCoverage), "종신", "90", "88", "A", "4", "3",
		string(model.LearningSourceUserCorrection), "50", "true", "2026-03-01 09:30:00",
	}, rows[1])
}
