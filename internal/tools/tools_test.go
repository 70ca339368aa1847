package tools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-rate-mcp/internal/rates"
)

func TestDescriptorSchema(t *testing.T) {
	d := Descriptor()
	assert.Equal(t, "exchange-rates", d.Name)
	assert.Equal(t, "Get the latest exchange rates", d.Description)

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
			Default     any    `json:"default"`
			Items       *struct {
				Type string `json:"type"`
			} `json:"items"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(d.Parameters, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Empty(t, schema.Required)

	base := schema.Properties["base"]
	assert.Equal(t, "string", base.Type)
	assert.Equal(t, "The base currency", base.Description)
	assert.Equal(t, "USD", base.Default)

	symbols := schema.Properties["symbols"]
	assert.Equal(t, "array", symbols.Type)
	require.NotNil(t, symbols.Items)
	assert.Equal(t, "string", symbols.Items.Type)
}

func TestDescriptorIsStable(t *testing.T) {
	first := List()
	first[0].Parameters[0] = 'x'
	second := List()
	require.Len(t, second, 1)
	assert.Equal(t, byte('{'), second[0].Parameters[0])
}

func TestBuildResult(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	q := rates.NewQuery("EUR", []string{"USD", "GBP"})
	set := rates.RateSet{Base: "EUR", Date: "2024-01-01", Rates: map[string]float64{"USD": 1.08, "GBP": 0.86}}

	res := BuildResult(q, set, now)
	assert.Equal(t, "EUR", res.Content.Base)
	assert.Equal(t, "2024-01-01", res.Content.Date)
	assert.Equal(t, set.Rates, res.Content.Rates)
	assert.Equal(t, "exchange-rate-mcp", res.Metadata.Source)
	assert.Equal(t, "2024-01-01T12:30:00Z", res.Metadata.Timestamp)
	assert.Equal(t, "EUR", res.Metadata.BaseCurrency)
	assert.Equal(t, "USD,GBP", res.Metadata.Symbols)
}

func TestBuildResultWithoutSymbols(t *testing.T) {
	res := BuildResult(rates.NewQuery("", nil), rates.RateSet{Base: "USD", Date: "2024-01-01"}, time.Now())

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"symbols"`)
	assert.Contains(t, string(b), `"rates":{}`)
}
