// Package protocol defines the JSON-RPC shaped envelopes exchanged on POST /tools.
package protocol

import (
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
)

// Version is the only protocol tag the server emits.
const Version = "2.0"

const (
	MethodListTools = "listTools"
	MethodCallTool  = "callTool"
)

// Request is the inbound envelope. Params stay raw until the dispatcher
// decides which shape it expects.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the outbound envelope. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// NewResult builds a success envelope for id.
func NewResult(id *jsonrpc2.ID, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error envelope for id.
func NewError(id *jsonrpc2.ID, code int64, message string) Response {
	return Response{JSONRPC: Version, ID: id, Error: &jsonrpc2.Error{Code: code, Message: message}}
}

// CallToolParams is the params object of a callTool request.
type CallToolParams struct {
	Name       string         `json:"name"`
	Parameters RateParameters `json:"parameters"`
}

// RateParameters are the arguments of the exchange-rates tool.
type RateParameters struct {
	Base    string   `json:"base,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// ToolDescriptor describes a callable tool. Parameters holds a JSON schema.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ListToolsResult is the result payload of listTools.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// RateContent is the exchange rate table carried in a tool result.
type RateContent struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// ToolMetadata describes where and when a tool result was produced.
type ToolMetadata struct {
	Source       string `json:"source"`
	Timestamp    string `json:"timestamp"`
	BaseCurrency string `json:"baseCurrency"`
	Symbols      string `json:"symbols,omitempty"`
}

// ToolResult is the result payload of a successful callTool.
type ToolResult struct {
	Content  RateContent  `json:"content"`
	Metadata ToolMetadata `json:"metadata"`
}

// CallToolResponse is the client side view of a callTool response.
type CallToolResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id"`
	Result  *ToolResult     `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// ListToolsResponse is the client side view of a listTools response.
type ListToolsResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *jsonrpc2.ID     `json:"id"`
	Result  *ListToolsResult `json:"result,omitempty"`
	Error   *jsonrpc2.Error  `json:"error,omitempty"`
}
