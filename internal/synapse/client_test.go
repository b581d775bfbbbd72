package synapse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openbuilders/synapse-batch/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		BaseURL:      url + "/",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Fingerprint:  "fp",
		OAuthKey:     "oauth",
		UserIP:       "10.0.0.1",
	}
}

func TestClient_CreateBatch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/u1/nodes/n1/trans/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "client-id|client-secret", r.Header.Get("X-SP-GATEWAY"))
		assert.Equal(t, "oauth|fp", r.Header.Get("X-SP-USER"))
		assert.Equal(t, "10.0.0.1", r.Header.Get("X-SP-USER-IP"))

		_, err := uuid.Parse(r.Header.Get("X-SP-IDEMPOTENCY-KEY"))
		assert.NoError(t, err)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"transactions": [{"note": "hi"}]}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "trans": []}`)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), server.Client())

	payload := map[string]any{
		"transactions": []map[string]string{{"note": "hi"}},
	}

	body, err := client.CreateBatch(context.Background(), "u1", "n1", payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "trans": []}`, string(body))
}

func TestClient_CreateNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1/nodes", r.URL.Path)

		var doc map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "IC-DEPOSIT-US", doc["type"])

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), server.Client())

	_, err := client.CreateNode(context.Background(), "u1",
		map[string]string{"type": "IC-DEPOSIT-US"})
	require.NoError(t, err)
}

func TestClient_CreateBatch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"en": "Invalid field value supplied."}, "error_code": "200", "http_code": "400", "success": false}`)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), server.Client())

	body, err := client.CreateBatch(context.Background(), "u1", "n1", struct{}{})
	require.Error(t, err)
	assert.Nil(t, body)
	assert.ErrorIs(t, err, errors.ErrTransport)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "error_code: 200")
	assert.Contains(t, err.Error(), "Invalid field value supplied.")
}

func TestClient_CreateBatch_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer server.Close()

	client := New(testConfig(server.URL), server.Client())

	_, err := client.CreateBatch(context.Background(), "u1", "n1", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_body: upstream down")
}

func TestClient_CreateBatch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(testConfig(server.URL), nil)

	_, err := client.CreateBatch(context.Background(), "u1", "n1", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransport)
}

func TestClient_CreateBatch_UnsupportedPayload(t *testing.T) {
	client := New(testConfig("http://localhost"), nil)

	_, err := client.CreateBatch(context.Background(), "u1", "n1", make(chan int))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrTransport)
}

func TestClient_RateLimited(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RequestsPerSecond = 100

	client := New(config, server.Client())

	for i := 0; i < 3; i++ {
		_, err := client.CreateNode(context.Background(), "u1", struct{}{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestClient_CancelledBeforeSending(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RequestsPerSecond = 100

	client := New(config, server.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateBatch(ctx, "u1", "n1", struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
