package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndBody(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orderIds":[4,5]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "").WithToken("tok")
	ids, err := c.PlaceOrders(context.Background(), 7, []string{"1", "2"}, []string{"10", "20"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, ids)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "POST /api/auctions/7/orders", gotPath)
	assert.Equal(t, []string{"10", "20"}, gotBody["sellAmounts"])
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "limit=5&offset=10", r.URL.RawQuery)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"auction has not ended"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Auctions(context.Background(), 5, 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "auction has not ended", apiErr.Message)
}

func TestClientPlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Fees(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
}
