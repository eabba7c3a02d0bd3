package httpapi

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(404))
	assert.Equal(t, "5xx", statusLabel(500))
}

func TestPresence(t *testing.T) {
	assert.Equal(t, "configured", presence(true))
	assert.Equal(t, "not_configured", presence(false))
}

func TestHandleStartSyncRejectsEmptyCollections(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	app := s.Router()

	req := httptest.NewRequest("POST", "/api/sync/notion", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var p problem
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "BadRequest", p.ErrorCode)
}

func TestHandleStartSyncDryRunSkipsEngine(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	app := s.Router()

	req := httptest.NewRequest("POST", "/api/sync/notion", strings.NewReader(`{"dry_run":true,"databases":["study-notes"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandleListReviewIgnoresUnsupportedStatus(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	app := s.Router()

	req := httptest.NewRequest("GET", "/api/review?status=approved", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, float64(0), out["count"])
}
