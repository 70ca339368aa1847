package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"exchange-rate-mcp/internal/metrics"
	"exchange-rate-mcp/internal/rates"
	"exchange-rate-mcp/internal/tools"
	"exchange-rate-mcp/pkg/protocol"
)

// Handle dispatches one envelope. Every outcome, including a panic further
// down, is answered in-band with the request id echoed.
func (s *Server) Handle(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while handling request", "method", req.Method, "panic", r)
			resp = errorResponse(req.ID, internalError(fmt.Errorf("%v", r)))
		}
		s.metrics.ObserveRequest(req.Method, codeLabel(resp))
	}()

	parsed, rpcErr := parseRequest(req)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}

	switch r := parsed.(type) {
	case listToolsRequest:
		return protocol.NewResult(req.ID, protocol.ListToolsResult{Tools: tools.List()})
	case callToolRequest:
		set, err := s.fetch(ctx, r.Query)
		if err != nil {
			s.log.Error("error processing exchange rate request", "base", r.Query.Base, "err", err)
			return errorResponse(req.ID, upstreamFailure(err))
		}
		return protocol.NewResult(req.ID, tools.BuildResult(r.Query, set, s.now()))
	default:
		return errorResponse(req.ID, internalError(fmt.Errorf("unhandled request %T", parsed)))
	}
}

// fetch consults the cache, then the upstream. Only live upstream answers are cached.
func (s *Server) fetch(ctx context.Context, q rates.Query) (rates.RateSet, error) {
	key := cacheKey(q)
	if set, ok := s.cache.Get(key); ok {
		s.metrics.ObserveFetch(metrics.OutcomeCached, 0)
		return set, nil
	}

	start := time.Now()
	set, err := s.fetcher.Fetch(ctx, q)
	took := time.Since(start)
	switch {
	case err != nil:
		s.metrics.ObserveFetch(metrics.OutcomeError, took)
	case set.Fallback:
		s.metrics.ObserveFetch(metrics.OutcomeFallback, took)
	default:
		s.metrics.ObserveFetch(metrics.OutcomeOK, took)
		s.cache.Set(key, set)
	}
	return set, err
}

func errorResponse(id *jsonrpc2.ID, e *jsonrpc2.Error) protocol.Response {
	return protocol.NewError(id, e.Code, e.Message)
}

func unknownTool(name string) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Unknown tool: " + name}
}

func methodNotFound(method string) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not found: " + method}
}

func upstreamFailure(err error) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "Exchange rate error: " + err.Error()}
}

func internalError(err error) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "Internal error: " + err.Error()}
}

func codeLabel(resp protocol.Response) string {
	if resp.Error == nil {
		return "0"
	}
	return strconv.FormatInt(resp.Error.Code, 10)
}
