package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/sourcegraph/jsonrpc2"

	"exchange-rate-mcp/internal/rates"
	"exchange-rate-mcp/internal/server"
	"exchange-rate-mcp/pkg/protocol"
)

type stubFetcher struct {
	last rates.Query
	err  error
}

func (s *stubFetcher) Fetch(_ context.Context, q rates.Query) (rates.RateSet, error) {
	s.last = q
	if s.err != nil {
		return rates.RateSet{}, s.err
	}
	return rates.RateSet{Base: q.Base, Date: "2024-01-01", Rates: map[string]float64{"EUR": 0.92, "GBP": 0.78}}, nil
}

func newClient(url string) *Client {
	c := New(url, nil)
	c.Logger = log.New(io.Discard)
	return c
}

func TestClientAgainstServer(t *testing.T) {
	Convey("Given a running tools server", t, func() {
		fetcher := &stubFetcher{}
		srv := httptest.NewServer(server.New(server.Options{Fetcher: fetcher, Logger: log.New(io.Discard)}).Router())
		defer srv.Close()
		c := newClient(srv.URL)

		Convey("GetExchangeRates returns the tool result", func() {
			res, err := c.GetExchangeRates(context.Background(), "eur", []string{"GBP"})
			So(err, ShouldBeNil)
			So(res.Content.Base, ShouldEqual, "EUR")
			So(res.Content.Rates["GBP"], ShouldEqual, 0.78)
			So(res.Metadata.Symbols, ShouldEqual, "GBP")
			So(fetcher.last.Symbols, ShouldResemble, []string{"GBP"})
		})

		Convey("An empty base is sent as USD", func() {
			res, err := c.GetExchangeRates(context.Background(), "", nil)
			So(err, ShouldBeNil)
			So(res.Metadata.BaseCurrency, ShouldEqual, "USD")
		})

		Convey("An error envelope surfaces as a jsonrpc2 error", func() {
			fetcher.err = errors.New("down")
			_, err := c.GetExchangeRates(context.Background(), "USD", nil)
			var rpcErr *jsonrpc2.Error
			So(errors.As(err, &rpcErr), ShouldBeTrue)
			So(rpcErr.Code, ShouldEqual, jsonrpc2.CodeInternalError)
			So(rpcErr.Message, ShouldStartWith, "Exchange rate error:")
		})

		Convey("ListTools returns the single tool", func() {
			list, err := c.ListTools(context.Background())
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].Name, ShouldEqual, "exchange-rates")
		})
	})
}

func TestClientHTTPFailures(t *testing.T) {
	Convey("Given an endpoint that rejects requests", t, func() {
		var gotAuth, gotID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			gotID = string(body)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
		}))
		defer srv.Close()

		c := newClient(srv.URL)
		c.Token = "secret"
		c.NewID = func() string { return "fixed-id" }

		_, err := c.GetExchangeRates(context.Background(), "USD", nil)

		Convey("The status and body are reported", func() {
			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(se.Body, ShouldContainSubstring, "unauthorized")
		})

		Convey("The token and id are sent", func() {
			So(gotAuth, ShouldEqual, "Bearer secret")
			So(gotID, ShouldContainSubstring, `"id":"fixed-id"`)
		})
	})
}

func TestPrompt(t *testing.T) {
	Convey("Given a rate table", t, func() {
		content := protocol.RateContent{Base: "USD", Date: "2024-01-01", Rates: map[string]float64{"GBP": 0.78, "EUR": 0.92}}

		Convey("FormatRates sorts by code", func() {
			So(FormatRates(content.Rates), ShouldEqual, "EUR: 0.92\nGBP: 0.78")
		})

		Convey("BuildPrompt embeds base, date and rates", func() {
			p := BuildPrompt(content, "")
			So(p, ShouldContainSubstring, "(base: USD, date: 2024-01-01)")
			So(p, ShouldContainSubstring, "EUR: 0.92\nGBP: 0.78")
			So(p, ShouldContainSubstring, "if I have 1000 USD")
		})

		Convey("A custom question replaces the default", func() {
			p := BuildPrompt(content, "Is the pound strong?")
			So(p, ShouldContainSubstring, "Is the pound strong?")
			So(strings.Contains(p, "1000 USD"), ShouldBeFalse)
		})
	})
}

func TestSaveConversation(t *testing.T) {
	Convey("SaveConversation overwrites the file", t, func() {
		path := filepath.Join(t.TempDir(), "conversation.txt")
		So(os.WriteFile(path, []byte("old content that is longer"), 0o644), ShouldBeNil)

		So(SaveConversation(path, "p", "r"), ShouldBeNil)
		b, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, "\nPROMPT:\np\n\nRESPONSE:\nr\n")
	})
}
