package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Health(t *testing.T) {
	t.Parallel()

	h := NewHTTP(newFixtureServer(t), HTTPConfig{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mcp/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_RPC_NoAuth(t *testing.T) {
	t.Parallel()

	h := NewHTTP(newFixtureServer(t), HTTPConfig{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp, err := http.Post(srv.URL+"/mcp/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_RPC_APIKeyRequired(t *testing.T) {
	t.Parallel()

	h := NewHTTP(newFixtureServer(t), HTTPConfig{Auth: AuthConfig{Mode: AuthAPIKey, APIKeys: map[string]string{"secret-key": "user"}}})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	resp, err := http.Post(srv.URL+"/mcp/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret-key")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestHTTP_RPC_BodyTooLarge(t *testing.T) {
	t.Parallel()

	h := NewHTTP(newFixtureServer(t), HTTPConfig{MaxBodyBytes: 16})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","padding":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)
	resp, err := http.Post(srv.URL+"/mcp/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
