package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

// TokenSource supplies the bearer token for pull requests. The oauth2
// client-credentials provider in the auth package implements it.
type TokenSource interface {
	GetToken() (string, error)
}

// HTTPFetcher pulls open calls from the dispatch REST API.
type HTTPFetcher struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

// NewHTTPFetcher creates a fetcher for the given API base URL. tokens may be
// nil when the API runs without authentication.
func NewHTTPFetcher(baseURL string, tokens TokenSource) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
	}
}

// FetchOpenCalls returns the authoritative open-call list.
func (f *HTTPFetcher) FetchOpenCalls(ctx context.Context, driverID string) ([]model.Call, error) {
	u := fmt.Sprintf("%s/api/calls/open?driver_id=%s", f.baseURL, url.QueryEscape(driverID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if f.tokens != nil {
		token, err := f.tokens.GetToken()
		if err != nil {
			return nil, fmt.Errorf("fetch token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch open calls: unexpected status %d", resp.StatusCode)
	}
	var calls []model.Call
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		return nil, fmt.Errorf("decode open calls: %w", err)
	}
	return calls, nil
}
