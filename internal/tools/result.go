package tools

import (
	"time"

	"exchange-rate-mcp/internal/rates"
	"exchange-rate-mcp/pkg/protocol"
)

// BuildResult wraps a fetched rate set and the query that produced it.
func BuildResult(q rates.Query, set rates.RateSet, now time.Time) protocol.ToolResult {
	table := set.Rates
	if table == nil {
		table = map[string]float64{}
	}
	return protocol.ToolResult{
		Content: protocol.RateContent{
			Base:  set.Base,
			Date:  set.Date,
			Rates: table,
		},
		Metadata: protocol.ToolMetadata{
			Source:       Source,
			Timestamp:    now.Format(time.RFC3339),
			BaseCurrency: q.Base,
			Symbols:      q.SymbolList(),
		},
	}
}
