// Package bridge talks to the Gasyard bridge backend for cross-chain
// transfer quotes. The on-chain leg of a bridge lives in the tool layer;
// this package only covers the pricing API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "ChainPilot/internal/errors"
)

// QuoteRequest asks for pricing of a cross-chain transfer. Network fields
// are the bridge backend's numeric network identifiers, the amount is in
// minor units of the input asset.
type QuoteRequest struct {
	InputNetwork     int    `json:"inputNetwork"`
	OutputNetwork    int    `json:"outputNetwork"`
	InputTokenAmount string `json:"inputTokenAmount"`
}

// Quote is the backend's answer.
type Quote struct {
	OutputValueInUSD  string `json:"outputValueInUSD"`
	FeesInUSD         string `json:"feesInUSD"`
	OutputTokenAmount string `json:"outputTokenAmount"`
}

// Client calls the quote endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option tunes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a quote client for the given backend base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuote prices a cross-chain transfer. Transport failures and non-2xx
// answers surface as UPSTREAM_QUOTE errors.
func (c *Client) FetchQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamQuote, err, "encode quote request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamQuote, err, "build quote request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamQuote, err, "call quote endpoint")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamQuote, err, "read quote response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, xerrors.New(xerrors.CodeUpstreamQuote,
			fmt.Sprintf("quote endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 256)))
	}

	quote := &Quote{}
	if err := json.Unmarshal(body, quote); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamQuote, err, "decode quote response")
	}
	return quote, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
