// Package tools holds the static exchange-rates tool descriptor and builds
// its result payload.
package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"exchange-rate-mcp/pkg/protocol"
)

const (
	// ExchangeRates is the name of the only tool this server exposes.
	ExchangeRates = "exchange-rates"
	// Source tags every result produced by this server.
	Source = "exchange-rate-mcp"
)

// rateParameters mirrors protocol.RateParameters with schema annotations.
type rateParameters struct {
	Base    string   `json:"base,omitempty" jsonschema:"description=The base currency,default=USD"`
	Symbols []string `json:"symbols,omitempty" jsonschema:"description=The target currencies"`
}

var descriptor = protocol.ToolDescriptor{
	Name:        ExchangeRates,
	Description: "Get the latest exchange rates",
	Parameters:  mustSchema(&rateParameters{}),
}

// Descriptor returns the exchange-rates tool descriptor.
func Descriptor() protocol.ToolDescriptor {
	d := descriptor
	d.Parameters = append(json.RawMessage(nil), descriptor.Parameters...)
	return d
}

// List returns every tool the server exposes.
func List() []protocol.ToolDescriptor {
	return []protocol.ToolDescriptor{Descriptor()}
}

func mustSchema(v any) json.RawMessage {
	r := &jsonschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
}
