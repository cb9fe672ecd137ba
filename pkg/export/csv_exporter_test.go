package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFillsMissingKeys(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"d_date", "hijri_date"},
		Rows:    []map[string]string{{"d_date": "2025-03-01"}, {"d_date": "2025-03-02", "hijri_date": "2 Ramadan 1446"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "d_date,hijri_date\n2025-03-01,\n2025-03-02,2 Ramadan 1446\n", string(out))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPlainRefusesQuotedFields(t *testing.T) {
	data := Dataset{Headers: []string{"hijri_date"}, Rows: []map[string]string{{"hijri_date": "1 Ramadan, 1446"}}}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"1 Ramadan, 1446"`)

	_, err = NewCSVExporter(Plain()).Render(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}
