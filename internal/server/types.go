package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"

	"exchange-rate-mcp/internal/rates"
	"exchange-rate-mcp/internal/tools"
	"exchange-rate-mcp/pkg/protocol"
)

// toolRequest is one of listToolsRequest or callToolRequest.
type toolRequest interface {
	isToolRequest()
}

type listToolsRequest struct{}

type callToolRequest struct {
	Name  string
	Query rates.Query
}

func (listToolsRequest) isToolRequest() {}
func (callToolRequest) isToolRequest()  {}

// parseRequest validates the envelope and decodes its params into the shape
// the method expects.
func parseRequest(req protocol.Request) (toolRequest, *jsonrpc2.Error) {
	switch req.Method {
	case protocol.MethodListTools:
		return listToolsRequest{}, nil
	case protocol.MethodCallTool:
		return parseCallTool(req.Params)
	default:
		return nil, methodNotFound(req.Method)
	}
}

// parseCallTool checks the tool name before looking at its parameters.
func parseCallTool(raw json.RawMessage) (toolRequest, *jsonrpc2.Error) {
	var params struct {
		Name       json.RawMessage `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, internalError(fmt.Errorf("invalid params: %w", err))
		}
	}

	name := rawText(params.Name)
	if name != tools.ExchangeRates {
		return nil, unknownTool(name)
	}

	var args struct {
		Base    *string  `json:"base"`
		Symbols []string `json:"symbols"`
	}
	if !isNull(params.Parameters) {
		if err := json.Unmarshal(params.Parameters, &args); err != nil {
			return nil, internalError(fmt.Errorf("invalid parameters: %w", err))
		}
	}
	base := ""
	if args.Base != nil {
		base = *args.Base
	}
	return callToolRequest{Name: name, Query: rates.NewQuery(base, args.Symbols)}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawText renders a JSON value for messages: strings unquoted, anything else verbatim.
func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
