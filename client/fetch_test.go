package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noachFrank/DriverApp-sub001/core/model"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetToken() (string, error) { return s.token, s.err }

func TestFetchOpenCalls(t *testing.T) {
	calls := []model.Call{
		{ID: "ride-1", State: model.CallOpen, Attributes: model.CallAttributes{
			PickupAddress: "12 Main St", ScheduledAt: time.Now().Add(time.Hour).UTC(),
		}},
	}
	var gotPath, gotAuth, gotDriver string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDriver = r.URL.Query().Get("driver_id")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(calls)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, staticTokens{token: "tok"})
	got, err := f.FetchOpenCalls(context.Background(), "drv 1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ride-1", got[0].ID)
	require.Equal(t, "/api/calls/open", gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "drv 1", gotDriver)
}

func TestFetchOpenCallsNoTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, nil)
	got, err := f.FetchOpenCalls(context.Background(), "drv-1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFetchOpenCallsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, nil)
	_, err := f.FetchOpenCalls(context.Background(), "drv-1")
	require.Error(t, err)
}

func TestFetchOpenCallsTokenFailure(t *testing.T) {
	f := NewHTTPFetcher("http://localhost:0", staticTokens{err: context.DeadlineExceeded})
	_, err := f.FetchOpenCalls(context.Background(), "drv-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
