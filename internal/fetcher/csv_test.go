package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func TestStreamCSV_Basic(t *testing.T) {
	input := "A1,종신,20년납\nB2,90세만기,10년납\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A1", "종신", "20년납"}, rows[0])
	assert.Equal(t, []string{"B2", "90세만기", "10년납"}, rows[1])
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b|c\n1|2|3\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: '|'})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "CODE,PERIOD_LABEL\nA1,종신\nB2,80세만기\n"
	headerCh := make(chan []string, 1)

	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A1", "종신"}, rows[0])
	assert.Equal(t, []string{"CODE", "PERIOD_LABEL"}, <-headerCh)
}

func TestStreamCSV_MinFields(t *testing.T) {
	input := "A1,종신,20년납\nshort\nB2,종신,전기납\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{MinFields: 3})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "B2", rows[1][0])
}

func TestStreamCSV_EUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("A1,종신,20년납\n")
	require.NoError(t, err)

	rows, err := ReadCSV(context.Background(), strings.NewReader(encoded), CSVOptions{Charset: "euc-kr"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"A1", "종신", "20년납"}, rows[0])
}

func TestStreamCSV_UnknownCharset(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a,b\n"), CSVOptions{Charset: "klingon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("a,b,c\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	count := 0
	for range rowCh {
		count++
		if count == 5 {
			cancel()
		}
	}

	// The reader may finish before it notices the cancellation.
	if err := <-errCh; err != nil {
		assert.Contains(t, err.Error(), "context cancelled")
	}
}

func TestStreamCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "a,b,c\n1,\"hello \"world\",3\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{LazyQuotes: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " A1 , 종신 \n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"A1", "종신"}, rows[0])
}

func TestStreamCSV_Comment(t *testing.T) {
	input := "# exported mapping\nA1,종신\n# trailer\nB2,종신\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{Comment: '#'})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStreamCSV_MalformedRow(t *testing.T) {
	input := "a,b\n1,\"unterminated\n"
	_, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}
